// internal/app/features/certificates/routes.go
package certificates

import (
	"github.com/go-chi/chi/v5"

	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Routes mounts the certificate API. Typically:
// r.Mount("/certificates", certificates.Routes(handler, sessionMgr))
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// Reads; per-certificate access is checked in the handlers.
		pr.Get("/", h.ServeList)
		pr.Get("/stats", h.ServeStats)
		pr.Get("/expiring", h.ServeExpiring)
		pr.Get("/export.csv", h.ServeExportCSV)
		pr.Get("/number/{number}", h.ServeGetByNumber)
		pr.Get("/{certID}", h.ServeGet)

		// Writes require lifecycle privilege.
		pr.Group(func(lr chi.Router) {
			lr.Use(sm.RequireRole(models.RoleAdmin, models.RoleOperator))
			lr.Post("/", h.HandleCreate)
			lr.Post("/{certID}/transition", h.HandleTransition)
			lr.Put("/{certID}/endorsement", h.HandleEndorsement)
			lr.Put("/{certID}/access", h.HandleAccessMarkers)
		})
	})

	return r
}
