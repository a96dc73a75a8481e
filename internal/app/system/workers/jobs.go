// internal/app/system/workers/jobs.go
package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/store/oauthstate"
	"github.com/coverdesk/coverdesk/internal/app/system/expiry"
)

// DailyExpirationJob sweeps every active organization with the standard
// lookback window. It runs once at startup so a restarted instance does not
// wait a full interval to catch up.
func DailyExpirationJob(proc *expiry.Processor, logger *zap.Logger, interval, timeout time.Duration) Job {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return Job{
		Name:       "daily-expiration-sweep",
		Interval:   interval,
		RunAtStart: true,
		Timeout:    timeout,
		Run: func(ctx context.Context) error {
			res, err := proc.RunAll(ctx, expiry.TriggerDaily, "scheduled daily sweep", 0)
			if err != nil {
				return err
			}
			if res.TotalExpired > 0 || res.Failed != nil {
				logger.Info("daily expiration sweep finished",
					zap.Int("organizations", res.Organizations),
					zap.Int("expired", res.TotalExpired),
					zap.Int("failed", len(res.Failed)))
			}
			return nil
		},
	}
}

// AnnualCatchupJob checks the date hourly and, once per year on the
// configured month and day, sweeps with a deeper lookback to pick up
// certificates the daily window no longer reaches.
func AnnualCatchupJob(proc *expiry.Processor, logger *zap.Logger, month time.Month, day, lookback int, timeout time.Duration) Job {
	lastYear := 0
	return Job{
		Name:     "annual-expiration-catchup",
		Interval: time.Hour,
		Timeout:  timeout,
		Run: func(ctx context.Context) error {
			now := time.Now().UTC()
			if now.Month() != month || now.Day() != day || now.Year() == lastYear {
				return nil
			}
			lastYear = now.Year()

			res, err := proc.RunAll(ctx, expiry.TriggerAnnual, "annual catch-up sweep", lookback)
			if err != nil {
				return err
			}
			logger.Info("annual catch-up sweep finished",
				zap.Int("organizations", res.Organizations),
				zap.Int("expired", res.TotalExpired),
				zap.Int("lookback_years", lookback))
			return nil
		},
	}
}

// OAuthStateCleanupJob removes expired OAuth state tokens. This is a backup
// for when MongoDB's TTL index cleanup is delayed.
func OAuthStateCleanupJob(states *oauthstate.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			count, err := states.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OAuth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}
