// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coverdesk/coverdesk/internal/app/system/auditlog"
	"github.com/coverdesk/coverdesk/internal/app/system/expiry"
	"github.com/coverdesk/coverdesk/internal/app/system/metrics"
	"github.com/coverdesk/coverdesk/internal/app/system/workers"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Everything here is built once in ConnectDB and shared by the HTTP
// handlers and the background jobs. The expiration Processor in
// particular must be a single instance: its per-organization run locks
// and last-run summaries only work if the manual trigger endpoint and
// the scheduled sweeps go through the same object.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	Audit     *auditlog.Logger
	Processor *expiry.Processor

	// Workers is nil when workers_enabled is false.
	Workers *workers.Runner
}
