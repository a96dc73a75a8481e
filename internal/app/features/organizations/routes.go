// internal/app/features/organizations/routes.go
package organizations

import (
	"github.com/go-chi/chi/v5"

	"github.com/coverdesk/coverdesk/internal/app/features/expiration"
	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Routes mounts the organization API. Typically:
// r.Mount("/organizations", organizations.Routes(handler, expirationHandler, sessionMgr))
func Routes(h *Handler, exp *expiration.Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.HandleList)
		pr.Get("/{orgID}", h.HandleGet)
		pr.Get("/{orgID}/groups", h.ServeGroupYears)

		// Year flips start expirations, so they need lifecycle privilege.
		pr.Group(func(lr chi.Router) {
			lr.Use(sm.RequireRole(models.RoleAdmin, models.RoleOperator))
			lr.Put("/{orgID}/groups/{label}/year", h.HandleSetYear)
		})

		// Tenant administration is admin-only.
		pr.Group(func(ar chi.Router) {
			ar.Use(sm.RequireRole(models.RoleAdmin))
			ar.Post("/", h.HandleCreate)
			ar.Put("/{orgID}", h.HandleUpdate)
			ar.Delete("/{orgID}", h.HandleDelete)
		})
	})

	// The expiration feature guards its own routes.
	r.Mount("/{orgID}/expiration", expiration.Routes(exp, sm))

	return r
}
