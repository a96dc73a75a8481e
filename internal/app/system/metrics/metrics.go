// internal/app/system/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments for the service.
//
// All Record methods are safe on a nil receiver, so handlers and the
// expiration processor can run without metrics in tests.
type Collector struct {
	certificatesCreated prometheus.Counter
	statusTransitions   *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	rosterRows          *prometheus.CounterVec

	expirationRuns       *prometheus.CounterVec
	expirationRunSeconds prometheus.Histogram
	certificatesExpired  prometheus.Counter
	certificatesSkipped  *prometheus.CounterVec
	expirationItemErrors prometheus.Counter

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its instruments with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		certificatesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coverdesk_certificates_created_total",
			Help: "Total number of certificates issued.",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coverdesk_status_transitions_total",
			Help: "Total number of applied certificate status transitions.",
		}, []string{"from", "to"}),
		transitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coverdesk_transitions_rejected_total",
			Help: "Total number of refused certificate status transitions.",
		}, []string{"reason"}),
		rosterRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coverdesk_roster_rows_total",
			Help: "Total number of roster rows processed by CSV import, by result.",
		}, []string{"result"}),
		expirationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coverdesk_expiration_runs_total",
			Help: "Total number of expiration runs by trigger and result.",
		}, []string{"trigger", "result"}),
		expirationRunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coverdesk_expiration_run_seconds",
			Help:    "Duration of expiration runs in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		certificatesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coverdesk_certificates_expired_total",
			Help: "Total number of certificates expired by the processor.",
		}),
		certificatesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coverdesk_certificates_skipped_total",
			Help: "Total number of certificates skipped by the processor, by reason.",
		}, []string{"reason"}),
		expirationItemErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coverdesk_expiration_item_errors_total",
			Help: "Total number of per-certificate errors during expiration runs.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coverdesk_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coverdesk_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coverdesk_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.certificatesCreated,
		c.statusTransitions,
		c.transitionsRejected,
		c.rosterRows,
		c.expirationRuns,
		c.expirationRunSeconds,
		c.certificatesExpired,
		c.certificatesSkipped,
		c.expirationItemErrors,
		c.httpInFlight,
		c.httpRequests,
		c.httpDuration,
	)

	return c
}

// RecordCertificateCreated records an issued certificate.
func (c *Collector) RecordCertificateCreated() {
	if c == nil {
		return
	}
	c.certificatesCreated.Inc()
}

// RecordTransition records an applied status transition.
func (c *Collector) RecordTransition(from, to string) {
	if c == nil {
		return
	}
	c.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordTransitionRejected records a refused status transition.
func (c *Collector) RecordTransitionRejected(reason string) {
	if c == nil {
		return
	}
	c.transitionsRejected.WithLabelValues(reason).Inc()
}

// RecordRosterImport records the row outcomes of one CSV roster import.
func (c *Collector) RecordRosterImport(created, updated, failed int) {
	if c == nil {
		return
	}
	c.rosterRows.WithLabelValues("created").Add(float64(created))
	c.rosterRows.WithLabelValues("updated").Add(float64(updated))
	c.rosterRows.WithLabelValues("failed").Add(float64(failed))
}

// RecordRunCompleted records a finished expiration run and its duration.
func (c *Collector) RecordRunCompleted(trigger string, duration time.Duration) {
	if c == nil {
		return
	}
	c.expirationRuns.WithLabelValues(trigger, "completed").Inc()
	c.expirationRunSeconds.Observe(duration.Seconds())
}

// RecordRunFailed records an expiration run that could not complete.
func (c *Collector) RecordRunFailed(trigger string) {
	if c == nil {
		return
	}
	c.expirationRuns.WithLabelValues(trigger, "failed").Inc()
}

// RecordCertificateExpired records one certificate expired by the processor.
func (c *Collector) RecordCertificateExpired() {
	if c == nil {
		return
	}
	c.certificatesExpired.Inc()
}

// RecordCertificateSkipped records one certificate skipped by the processor.
func (c *Collector) RecordCertificateSkipped(reason string) {
	if c == nil {
		return
	}
	c.certificatesSkipped.WithLabelValues(reason).Inc()
}

// RecordItemError records a per-certificate error inside an expiration run.
func (c *Collector) RecordItemError() {
	if c == nil {
		return
	}
	c.expirationItemErrors.Inc()
}

// Middleware instruments HTTP requests with request counts, latencies, and
// an in-flight gauge. Routes are labeled by chi route pattern, not raw path,
// to keep label cardinality bounded.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			next.ServeHTTP(w, r)
			return
		}

		c.httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		c.httpInFlight.Dec()

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		c.httpRequests.WithLabelValues(r.Method, route, status).Inc()
		c.httpDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// statusWriter captures the response status code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
