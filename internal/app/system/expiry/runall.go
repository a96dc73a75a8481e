// internal/app/system/expiry/runall.go
package expiry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultOrgRate is how many organizations per second a sweep starts.
const DefaultOrgRate = rate.Limit(1)

// AllResult aggregates a sweep across every active organization. Runs are
// keyed by organization ID; organizations whose run could not start at all
// land in Failed with the reason.
type AllResult struct {
	Organizations int                   `json:"organizations"`
	TotalExpired  int                   `json:"totalExpired"`
	Runs          map[string]*RunResult `json:"runs"`
	Failed        map[string]string     `json:"failed,omitempty"`
}

// RunAll executes one expiration pass for every active organization,
// sequentially and rate limited. lookback overrides the configured window
// when positive; the annual catch-up sweep passes a deeper one. One
// organization's structural failure is recorded and the sweep moves on;
// only a cancelled context or a failed organization listing stops it.
func (p *Processor) RunAll(ctx context.Context, trigger, reason string, lookback int) (*AllResult, error) {
	if lookback <= 0 {
		lookback = p.opts.Lookback
	}

	orgs, err := p.orgs.ListActive(ctx)
	if err != nil {
		p.metrics.RecordRunFailed(trigger)
		return nil, fmt.Errorf("expiry: list organizations: %w", err)
	}

	limiter := rate.NewLimiter(DefaultOrgRate, 1)
	out := &AllResult{
		Organizations: len(orgs),
		Runs:          map[string]*RunResult{},
		Failed:        map[string]string{},
	}

	for _, org := range orgs {
		if err := limiter.Wait(ctx); err != nil {
			return out, err
		}

		res, err := p.run(ctx, org.ID, trigger, nil, reason, lookback)
		if err != nil {
			// An overlapping manual run holds the org lock; note it and
			// keep sweeping.
			if errors.Is(err, ErrRunInProgress) {
				out.Failed[org.ID.Hex()] = ErrRunInProgress.Error()
				continue
			}
			out.Failed[org.ID.Hex()] = err.Error()
			p.log.Error("expiration sweep: organization run failed",
				zap.String("organization_id", org.ID.Hex()),
				zap.Error(err),
			)
			continue
		}

		out.Runs[org.ID.Hex()] = res
		out.TotalExpired += res.TotalExpired
	}

	if len(out.Failed) == 0 {
		out.Failed = nil
	}
	return out, nil
}
