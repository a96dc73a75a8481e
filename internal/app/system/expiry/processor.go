// internal/app/system/expiry/processor.go
//
// Package expiry implements the certificate expiration processor: for one
// organization, find every active certificate whose membership year no longer
// matches its group's currently active year and transition it to expired,
// with full accounting of skips and failures.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	accountstore "github.com/coverdesk/coverdesk/internal/app/store/accounts"
	categorystore "github.com/coverdesk/coverdesk/internal/app/store/categories"
	certificatestore "github.com/coverdesk/coverdesk/internal/app/store/certificates"
	organizationstore "github.com/coverdesk/coverdesk/internal/app/store/organizations"
	yearsettingstore "github.com/coverdesk/coverdesk/internal/app/store/yearsettings"
	"github.com/coverdesk/coverdesk/internal/app/system/auditlog"
	"github.com/coverdesk/coverdesk/internal/app/system/metrics"
	"github.com/coverdesk/coverdesk/internal/domain/lifecycle"
	"github.com/coverdesk/coverdesk/internal/domain/models"
	"github.com/coverdesk/coverdesk/internal/domain/years"
)

// Run trigger labels, bounded for metrics.
const (
	TriggerManual = "manual"
	TriggerDaily  = "daily"
	TriggerAnnual = "annual"
)

var (
	// ErrMissingOrganizationScope means a run was requested with no target
	// organization. Runs never sweep across tenants.
	ErrMissingOrganizationScope = errors.New("expiry: organization scope required")

	// ErrRunInProgress means another run for the same organization has the
	// per-organization lock.
	ErrRunInProgress = errors.New("expiry: run already in progress for organization")
)

// Defaults for Options.
const (
	DefaultBatchSize  = 50
	DefaultBatchDelay = 250 * time.Millisecond
)

// Options tunes a Processor. Zero values take the defaults.
type Options struct {
	// BatchSize is how many certificates are processed between delays.
	BatchSize int
	// BatchDelay is the pause between batches. It throttles load on the
	// store; it is not a correctness mechanism.
	BatchDelay time.Duration
	// Lookback is how many recent membership-year labels the candidate
	// query covers. Certificates staler than the window are not picked up
	// in one pass.
	Lookback int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = DefaultBatchDelay
	}
	if o.Lookback <= 0 {
		o.Lookback = years.DefaultLookback
	}
	return o
}

// Processor runs expirations. All run state lives in the per-run RunResult;
// the processor itself only holds store handles and the per-organization
// locks that keep concurrent runs for one tenant from interleaving.
type Processor struct {
	orgs       *organizationstore.Store
	certs      *certificatestore.Store
	accounts   *accountstore.Store
	categories *categorystore.Store
	settings   *yearsettingstore.Store

	audit   *auditlog.Logger
	metrics *metrics.Collector
	log     *zap.Logger
	opts    Options

	mu      sync.Mutex
	locks   map[primitive.ObjectID]*sync.Mutex
	lastRun map[primitive.ObjectID]*RunResult
}

// New creates a Processor over the given database. audit and collector may
// be nil (tests); logger must not be.
func New(db *mongo.Database, audit *auditlog.Logger, collector *metrics.Collector, logger *zap.Logger, opts Options) *Processor {
	return &Processor{
		orgs:       organizationstore.New(db),
		certs:      certificatestore.New(db),
		accounts:   accountstore.New(db),
		categories: categorystore.New(db),
		settings:   yearsettingstore.New(db),
		audit:      audit,
		metrics:    collector,
		log:        logger,
		opts:       opts.withDefaults(),
		locks:      map[primitive.ObjectID]*sync.Mutex{},
		lastRun:    map[primitive.ObjectID]*RunResult{},
	}
}

func (p *Processor) orgLock(orgID primitive.ObjectID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.locks[orgID]
	if !ok {
		m = &sync.Mutex{}
		p.locks[orgID] = m
	}
	return m
}

// LastRun returns the most recent result for an organization, if this
// processor has run for it since startup.
func (p *Processor) LastRun(orgID primitive.ObjectID) (*RunResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.lastRun[orgID]
	return r, ok
}

func (p *Processor) storeLastRun(orgID primitive.ObjectID, r *RunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRun[orgID] = r
}

// Run executes one expiration pass for the organization. trigger labels the
// invocation source for metrics; reason is a free-text audit tag; actorID is
// the requesting user for manual triggers, nil for scheduled ones.
//
// Only structural failures (missing scope, a failed candidate query, an
// overlapping run) return an error. Per-certificate problems are recorded
// in the result and never abort the pass.
func (p *Processor) Run(ctx context.Context, orgID primitive.ObjectID, trigger string, actorID *primitive.ObjectID, reason string) (*RunResult, error) {
	return p.run(ctx, orgID, trigger, actorID, reason, p.opts.Lookback)
}

func (p *Processor) run(ctx context.Context, orgID primitive.ObjectID, trigger string, actorID *primitive.ObjectID, reason string, lookback int) (*RunResult, error) {
	if orgID.IsZero() {
		p.metrics.RecordRunFailed(trigger)
		return nil, ErrMissingOrganizationScope
	}

	lock := p.orgLock(orgID)
	if !lock.TryLock() {
		return nil, ErrRunInProgress
	}
	defer lock.Unlock()

	started := time.Now().UTC()
	p.audit.ExpirationRunStarted(ctx, orgID, actorID, reason)

	// The window is seeded from the calendar; group settings remain the
	// source of truth for what actually expires.
	window := years.Window(started, lookback)
	candidates, err := p.certs.FindByYearWindow(ctx, orgID, window)
	if err != nil {
		p.audit.ExpirationRunFailed(ctx, orgID, reason, err)
		p.metrics.RecordRunFailed(trigger)
		return nil, fmt.Errorf("expiry: load candidates: %w", err)
	}

	// The store query is year-scoped only; narrow to active here so a
	// back-to-back rerun finds nothing left to expire.
	active := make([]models.Certificate, 0, len(candidates))
	for _, c := range candidates {
		if c.Status == string(lifecycle.StatusActive) {
			active = append(active, c)
		}
	}

	result := newRunResult(orgID.Hex(), trigger, reason, started)

	for start := 0; start < len(active); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(active))
		for i := start; i < end; i++ {
			p.processOne(ctx, orgID, &active[i], result)
		}
		if end < len(active) {
			time.Sleep(p.opts.BatchDelay)
		}
	}

	result.DurationMillis = time.Since(started).Milliseconds()

	p.audit.ExpirationRunCompleted(ctx, orgID, reason,
		result.TotalProcessed, result.TotalExpired, result.TotalSkipped, result.Errors)
	p.metrics.RecordRunCompleted(trigger, time.Since(started))
	p.log.Info("expiration run completed",
		zap.String("organization_id", orgID.Hex()),
		zap.String("trigger", trigger),
		zap.Int("candidates", len(candidates)),
		zap.Int("processed", result.TotalProcessed),
		zap.Int("expired", result.TotalExpired),
		zap.Int("skipped", result.TotalSkipped),
		zap.Int("errors", result.Errors),
		zap.Duration("took", time.Since(started)),
	)

	p.storeLastRun(orgID, result)
	return result, nil
}

// processOne resolves the disposition of a single certificate. A panic or
// error in one certificate must not abort the run, so everything is caught
// here and recorded on the result.
func (p *Processor) processOne(ctx context.Context, orgID primitive.ObjectID, cert *models.Certificate, res *RunResult) {
	defer func() {
		if r := recover(); r != nil {
			p.itemError(ctx, res, cert, fmt.Errorf("panic: %v", r))
		}
	}()

	res.TotalProcessed++
	res.PerOrganization.InsurancesChecked++

	if !cert.HasAccountLink() {
		p.skip(res, cert, SkipNoAccountLink)
		return
	}
	if cert.MembershipYear == "" {
		p.skip(res, cert, SkipNoMembershipYear)
		return
	}

	businessID, err := p.accounts.ResolveBusinessID(ctx, cert.AccountID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		p.skip(res, cert, SkipAccountNotFound)
		return
	}
	if err != nil {
		p.itemError(ctx, res, cert, err)
		return
	}

	// Membership can lapse while the insurance runs on; no active category
	// for the certificate's year is a legitimate state, not a data error.
	cat, err := p.categories.FindActiveCategory(ctx, orgID, businessID, cert.MembershipYear)
	if errors.Is(err, mongo.ErrNoDocuments) {
		p.skip(res, cert, SkipNoActiveCategory)
		return
	}
	if err != nil {
		p.itemError(ctx, res, cert, err)
		return
	}

	if cat.GroupLabel == "" {
		p.skip(res, cert, SkipNoGroupLabel)
		return
	}
	group := cat.GroupLabel

	stats := res.PerOrganization.GroupStats[group]
	stats.Checked++
	res.PerOrganization.GroupStats[group] = stats

	activeYear, err := p.settings.GetActiveYear(ctx, orgID, group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		p.skip(res, cert, SkipNoActiveSettings)
		return
	}
	if err != nil {
		p.itemError(ctx, res, cert, err)
		return
	}

	if cert.MembershipYear == activeYear {
		// The common case: the certificate's year is still the group's
		// active year.
		p.skip(res, cert, SkipYearCurrent)
		return
	}

	if _, err := p.certs.ApplyTransition(ctx, cert.ID, lifecycle.StatusExpired, lifecycle.PrivilegeSystem); err != nil {
		p.itemError(ctx, res, cert, err)
		return
	}

	res.TotalExpired++
	res.PerOrganization.InsurancesExpired++
	stats = res.PerOrganization.GroupStats[group]
	stats.Expired++
	res.PerOrganization.GroupStats[group] = stats

	p.audit.CertificateExpired(ctx, orgID, cert.ID, cert.MembershipYear, group)
	p.metrics.RecordCertificateExpired()
	p.log.Debug("certificate expired",
		zap.String("certificate_id", cert.ID.Hex()),
		zap.String("membership_year", cert.MembershipYear),
		zap.String("group_label", group),
		zap.String("active_year", activeYear),
	)
}

func (p *Processor) skip(res *RunResult, cert *models.Certificate, reason SkipReason) {
	res.TotalSkipped++
	res.PerOrganization.InsurancesSkipped++
	res.SkippedByReason[string(reason)]++

	switch reason {
	case SkipNoAccountLink, SkipAccountNotFound:
		res.TotalSkippedNoAccount++
	case SkipNoActiveCategory:
		res.TotalSkippedNoCategory++
	}

	p.metrics.RecordCertificateSkipped(string(reason))
	p.log.Debug("certificate skipped",
		zap.String("certificate_id", cert.ID.Hex()),
		zap.String("reason", string(reason)),
	)
}

func (p *Processor) itemError(ctx context.Context, res *RunResult, cert *models.Certificate, err error) {
	res.Errors++
	res.PerOrganization.Errors++
	res.ItemErrors = append(res.ItemErrors, ItemError{
		CertificateID: cert.ID.Hex(),
		Error:         err.Error(),
	})

	p.audit.ExpirationItemError(ctx, cert.OrganizationID, cert.ID, err)
	p.metrics.RecordItemError()
	p.log.Warn("expiration item error",
		zap.String("certificate_id", cert.ID.Hex()),
		zap.Error(err),
	)
}
