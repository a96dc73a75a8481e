// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"

	"github.com/coverdesk/coverdesk/internal/app/system/expiry"
	"github.com/coverdesk/coverdesk/internal/app/system/timeouts"
	"github.com/coverdesk/coverdesk/internal/domain/years"
)

// appConfigKeys defines the configuration keys for CoverDesk.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: COVERDESK_MONGO_URI, COVERDESK_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "coverdesk", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "coverdesk-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_lifecycle", Default: "all", Desc: "Certificate lifecycle event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_expiration", Default: "all", Desc: "Expiration run event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Base URL for OAuth callbacks
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for OAuth callbacks"},

	// Expiration processor tuning
	{Name: "expiry_batch_size", Default: expiry.DefaultBatchSize, Desc: "Certificates processed per expiration batch"},
	{Name: "expiry_batch_delay", Default: "250ms", Desc: "Pause between expiration batches (e.g., 250ms, 1s)"},
	{Name: "expiry_lookback_years", Default: years.DefaultLookback, Desc: "Membership year labels treated as current by the daily sweep"},

	// Background job scheduling
	{Name: "sweep_interval", Default: "24h", Desc: "Interval between daily expiration sweeps"},
	{Name: "annual_sweep_month", Default: 7, Desc: "Month (1-12) of the annual catch-up sweep"},
	{Name: "annual_sweep_day", Default: 1, Desc: "Day of month for the annual catch-up sweep"},
	{Name: "annual_lookback_years", Default: 5, Desc: "Wider year lookback used by the annual catch-up sweep"},
	{Name: "job_timeout", Default: "15m", Desc: "Per-tick timeout for background jobs"},
	{Name: "workers_enabled", Default: true, Desc: "Run the background expiration sweeps in this process"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email for the initial admin user (seeded only on an empty install)"},
	{Name: "admin_password", Default: "", Desc: "Password for the initial admin user"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
// CoreConfig comes from the shared WAFFLE layer; AppConfig is specific
// to this app and can be extended as the app grows.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, COVERDESK_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "COVERDESK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	// Store operation timeouts come from TIMEOUT_* env vars; everything
	// after this point (including the connect-time ping) uses them.
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("store timeouts configured from environment", zap.Int("applied", n))
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),

		// Audit logging
		AuditLogAuth:       appValues.String("audit_log_auth"),
		AuditLogAdmin:      appValues.String("audit_log_admin"),
		AuditLogLifecycle:  appValues.String("audit_log_lifecycle"),
		AuditLogExpiration: appValues.String("audit_log_expiration"),

		// Google OAuth
		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		// Base URL
		BaseURL: appValues.String("base_url"),

		// Expiration processor
		ExpiryBatchSize:     appValues.Int("expiry_batch_size"),
		ExpiryBatchDelay:    appValues.Duration("expiry_batch_delay", expiry.DefaultBatchDelay),
		ExpiryLookbackYears: appValues.Int("expiry_lookback_years"),

		// Background jobs
		SweepInterval:       appValues.Duration("sweep_interval", 24*time.Hour),
		AnnualMonth:         appValues.Int("annual_sweep_month"),
		AnnualDay:           appValues.Int("annual_sweep_day"),
		AnnualLookbackYears: appValues.Int("annual_lookback_years"),
		JobTimeout:          appValues.Duration("job_timeout", 15*time.Minute),
		WorkersEnabled:      appValues.Bool("workers_enabled"),

		// Admin bootstrap
		AdminEmail:    appValues.String("admin_email"),
		AdminPassword: appValues.String("admin_password"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
//
// CoverDesk validates the MongoDB URI format and the annual-sweep date
// to catch configuration errors early, before attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.AnnualMonth < 1 || appCfg.AnnualMonth > 12 {
		return fmt.Errorf("annual_sweep_month must be 1-12, got %d", appCfg.AnnualMonth)
	}
	if appCfg.AnnualDay < 1 || appCfg.AnnualDay > 31 {
		return fmt.Errorf("annual_sweep_day must be 1-31, got %d", appCfg.AnnualDay)
	}

	// Half-configured OAuth is almost always a deployment mistake.
	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		return fmt.Errorf("google_client_id and google_client_secret must be set together")
	}

	return nil
}
