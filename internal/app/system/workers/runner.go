// internal/app/system/workers/runner.go
//
// Package workers runs the scheduled background jobs: the daily expiration
// sweep, the annual catch-up sweep, and housekeeping.
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultJobTimeout bounds a single tick when the job does not set its own
// timeout. Sweeps across many organizations can legitimately run for
// minutes, so the default is generous.
const DefaultJobTimeout = 15 * time.Minute

// Job is one periodic background task. Run receives a context that expires
// after Timeout (or DefaultJobTimeout); a job that overruns it sees its
// store operations fail rather than being forcibly stopped.
type Job struct {
	Name       string
	Interval   time.Duration
	RunAtStart bool
	Timeout    time.Duration
	Run        func(ctx context.Context) error
}

// Runner drives a set of jobs, one goroutine each.
type Runner struct {
	log    *zap.Logger
	jobs   []Job
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewRunner(logger *zap.Logger, jobs ...Job) *Runner {
	return &Runner{
		log:    logger,
		jobs:   jobs,
		stopCh: make(chan struct{}),
	}
}

// Start launches every job's loop.
func (r *Runner) Start() {
	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.runJob(job)
		r.log.Info("background job started",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval),
			zap.Bool("run_at_start", job.RunAtStart))
	}
}

// Stop signals every job to stop and waits for in-flight ticks to finish.
// A tick that already started completes; it is not cancelled.
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.log.Info("background jobs stopped")
}

func (r *Runner) runJob(job Job) {
	defer r.wg.Done()

	if job.RunAtStart {
		r.tick(job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.tick(job)
		}
	}
}

func (r *Runner) tick(job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started := time.Now()
	if err := job.Run(ctx); err != nil {
		r.log.Error("background job failed",
			zap.String("job", job.Name),
			zap.Duration("took", time.Since(started)),
			zap.Error(err))
		return
	}
	r.log.Debug("background job completed",
		zap.String("job", job.Name),
		zap.Duration("took", time.Since(started)))
}
