// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/store/audit"
	"github.com/coverdesk/coverdesk/internal/app/store/oauthstate"
	"github.com/coverdesk/coverdesk/internal/app/system/auditlog"
	"github.com/coverdesk/coverdesk/internal/app/system/expiry"
	"github.com/coverdesk/coverdesk/internal/app/system/indexes"
	"github.com/coverdesk/coverdesk/internal/app/system/metrics"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/app/system/workers"
)

// ConnectDB establishes the MongoDB connection and builds the shared
// backends that both the HTTP layer and the background jobs depend on:
// the metrics registry, the audit logger, the expiration processor, and
// the worker runner. WAFFLE passes the returned DBDeps to every later
// hook by value, so anything that must be a singleton is constructed
// here.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	clientOpts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(appCfg.MongoDatabase)
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize))

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	auditLogger := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:       appCfg.AuditLogAuth,
		Admin:      appCfg.AuditLogAdmin,
		Lifecycle:  appCfg.AuditLogLifecycle,
		Expiration: appCfg.AuditLogExpiration,
	})

	processor := expiry.New(db, auditLogger, collector, logger, expiry.Options{
		BatchSize:  appCfg.ExpiryBatchSize,
		BatchDelay: appCfg.ExpiryBatchDelay,
		Lookback:   appCfg.ExpiryLookbackYears,
	})

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		Registry:      registry,
		Metrics:       collector,
		Audit:         auditLogger,
		Processor:     processor,
	}

	if appCfg.WorkersEnabled {
		deps.Workers = workers.NewRunner(logger,
			workers.DailyExpirationJob(processor, logger, appCfg.SweepInterval, appCfg.JobTimeout),
			workers.AnnualCatchupJob(processor, logger, time.Month(appCfg.AnnualMonth), appCfg.AnnualDay, appCfg.AnnualLookbackYears, appCfg.JobTimeout),
			workers.OAuthStateCleanupJob(oauthstate.New(db), logger),
		)
	}

	return deps, nil
}

// EnsureSchema creates the indexes every collection relies on. Each
// ensure call is idempotent, so repeated startups are safe.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	if err := audit.New(deps.MongoDatabase).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure audit indexes: %w", err)
	}
	if err := oauthstate.New(deps.MongoDatabase).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure oauth state indexes: %w", err)
	}
	logger.Info("MongoDB indexes ensured")
	return nil
}
