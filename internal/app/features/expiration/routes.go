// internal/app/features/expiration/routes.go
package expiration

import (
	"github.com/go-chi/chi/v5"

	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Routes builds the expiration sub-router. The organizations feature mounts
// it at /{orgID}/expiration, so the orgID route parameter comes from the
// parent pattern.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// Anyone in the organization can see how the last run went.
		pr.Get("/last", h.ServeLastRun)

		// Triggering a run requires lifecycle privilege.
		pr.Group(func(lr chi.Router) {
			lr.Use(sm.RequireRole(models.RoleAdmin, models.RoleOperator))
			lr.Post("/", h.HandleTrigger)
		})
	})

	return r
}
