// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/go-chi/chi/v5"

	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Routes mounts the audit query endpoints under the path where this
// router is mounted (typically "/audit" from bootstrap).
//
// The audit trail spans every tenant and includes login failures, so it
// is admin-only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))

		pr.Get("/", h.ServeList)
		pr.Get("/failed-logins", h.ServeFailedLogins)
		pr.Get("/certificates/{certificateID}", h.ServeCertificateHistory)
		pr.Get("/users/{userID}", h.ServeUserHistory)
	})

	return r
}
