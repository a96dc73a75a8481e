// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	accountsfeature "github.com/coverdesk/coverdesk/internal/app/features/accounts"
	auditlogfeature "github.com/coverdesk/coverdesk/internal/app/features/auditlog"
	authgooglefeature "github.com/coverdesk/coverdesk/internal/app/features/authgoogle"
	certificatesfeature "github.com/coverdesk/coverdesk/internal/app/features/certificates"
	expirationfeature "github.com/coverdesk/coverdesk/internal/app/features/expiration"
	healthfeature "github.com/coverdesk/coverdesk/internal/app/features/health"
	heartbeatfeature "github.com/coverdesk/coverdesk/internal/app/features/heartbeat"
	loginfeature "github.com/coverdesk/coverdesk/internal/app/features/login"
	logoutfeature "github.com/coverdesk/coverdesk/internal/app/features/logout"
	organizationsfeature "github.com/coverdesk/coverdesk/internal/app/features/organizations"
	userinfofeature "github.com/coverdesk/coverdesk/internal/app/features/userinfo"
	usersfeature "github.com/coverdesk/coverdesk/internal/app/features/users"
	"github.com/coverdesk/coverdesk/internal/app/store/oauthstate"
	userstore "github.com/coverdesk/coverdesk/internal/app/store/users"
	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/app/system/metrics"
	"github.com/coverdesk/coverdesk/internal/app/system/ratelimit"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: the shared backends bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// CoverDesk is a JSON API: every feature mounts a chi sub-router, the
// session middleware loads the current user into context, and the
// metrics middleware records request counts and latencies per route
// pattern.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Create the session manager using app config.
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Set up the UserFetcher so LoadSessionUser fetches fresh user data on
	// each request. This ensures role changes and disabled accounts take
	// effect immediately.
	users := userstore.New(deps.MongoDatabase)
	sessionMgr.SetUserFetcher(users)

	r := chi.NewRouter()

	// Request metrics first so they cover every route, including 401s the
	// session middleware produces further in.
	r.Use(deps.Metrics.Middleware)

	// Global auth middleware: loads SessionUser into context if logged in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	// Probes for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	heartbeatHandler := heartbeatfeature.NewHandler()
	r.Mount("/heartbeat", heartbeatfeature.Routes(heartbeatHandler))

	// Prometheus scrape endpoint, restricted to this app's registry.
	r.Handle("/metrics", metrics.Handler(deps.Registry))

	// Authentication
	loginHandler := loginfeature.NewHandler(users, sessionMgr, deps.Audit, ratelimit.NewLoginLimiter(), logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, deps.Audit, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	// Google sign-in only mounts when credentials are configured; the
	// password flow is always available.
	if appCfg.GoogleClientID != "" {
		googleHandler := authgooglefeature.NewHandler(users, oauthstate.New(deps.MongoDatabase), sessionMgr, deps.Audit,
			appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
		r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
	}

	userinfofeature.MountRoutes(r, userinfofeature.NewHandler())

	// Certificate lifecycle
	certHandler := certificatesfeature.NewHandler(deps.MongoDatabase, deps.Audit, deps.Metrics, logger)
	r.Mount("/certificates", certificatesfeature.Routes(certHandler, sessionMgr))

	// Organizations own their expiration sub-resource, so the expiration
	// handler is passed into the organizations router.
	expirationHandler := expirationfeature.NewHandler(deps.MongoDatabase, deps.Processor, logger)
	orgHandler := organizationsfeature.NewHandler(deps.MongoDatabase, deps.Audit, logger)
	r.Mount("/organizations", organizationsfeature.Routes(orgHandler, expirationHandler, sessionMgr))

	// Insured member roster
	accountsHandler := accountsfeature.NewHandler(deps.MongoDatabase, deps.Audit, deps.Metrics, logger)
	r.Mount("/accounts", accountsfeature.Routes(accountsHandler, sessionMgr))

	// Admin surfaces: sign-in accounts and the audit trail.
	usersHandler := usersfeature.NewHandler(deps.MongoDatabase, deps.Audit, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	auditHandler := auditlogfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	return r, nil
}
