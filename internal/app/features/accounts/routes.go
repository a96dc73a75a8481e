// internal/app/features/accounts/routes.go
package accounts

import (
	"github.com/go-chi/chi/v5"

	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Routes mounts the account API. Typically:
// r.Mount("/accounts", accounts.Routes(handler, sessionMgr))
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Get("/{accountID}", h.ServeGet)

		// Roster changes require lifecycle privilege.
		pr.Group(func(wr chi.Router) {
			wr.Use(sm.RequireRole(models.RoleAdmin, models.RoleOperator))
			wr.Post("/", h.HandleCreate)
			wr.Post("/import.csv", h.HandleImportCSV)
		})
	})

	return r
}
