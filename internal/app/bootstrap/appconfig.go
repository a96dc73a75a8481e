// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig is where everything specific to CoverDesk lives: the MongoDB
// connection, session cookies, audit-log routing, Google OAuth, and the
// knobs for the expiration sweeps.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connections in the driver pool
	MongoMinPoolSize uint64 // Min connections kept warm in the driver pool

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: coverdesk-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Audit log routing. Each category is "all" (db+log), "db", "log", or "off".
	AuditLogAuth       string // login, logout, failed logins
	AuditLogAdmin      string // user/org/account CRUD, roster imports, year changes
	AuditLogLifecycle  string // certificate transitions and edits
	AuditLogExpiration string // expiration run summaries and per-item records

	// Google OAuth configuration (blank disables the Google sign-in flow)
	GoogleClientID     string
	GoogleClientSecret string

	// Base URL for OAuth callbacks (e.g., "https://coverdesk.example.com")
	BaseURL string

	// Expiration processor tuning
	ExpiryBatchSize     int           // Certificates fetched and transitioned per batch
	ExpiryBatchDelay    time.Duration // Pause between batches to throttle store load
	ExpiryLookbackYears int           // Membership year labels considered current by the daily sweep

	// Background job scheduling
	SweepInterval       time.Duration // How often the daily expiration sweep runs
	AnnualMonth         int           // Month (1-12) of the annual catch-up sweep
	AnnualDay           int           // Day of month for the annual catch-up sweep
	AnnualLookbackYears int           // Wider lookback used by the annual catch-up
	JobTimeout          time.Duration // Per-tick timeout for background jobs
	WorkersEnabled      bool          // Set false to run the HTTP surface without background sweeps

	// Admin bootstrap: seeds the first admin user on an empty install.
	AdminEmail    string
	AdminPassword string
}
