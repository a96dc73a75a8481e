// internal/app/features/users/routes.go
package users

import (
	"github.com/go-chi/chi/v5"

	"github.com/coverdesk/coverdesk/internal/app/system/auth"
	"github.com/coverdesk/coverdesk/internal/domain/models"
)

// Routes mounts the user admin API. All of it is admin-only; operators
// manage rosters and certificates, not accounts.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(ar chi.Router) {
		ar.Use(sm.RequireSignedIn)
		ar.Use(sm.RequireRole(models.RoleAdmin))

		ar.Get("/", h.ServeList)
		ar.Post("/", h.HandleCreate)
		ar.Get("/{userID}", h.ServeGet)
		ar.Put("/{userID}", h.HandleUpdate)
		ar.Put("/{userID}/status", h.HandleSetStatus)
		ar.Put("/{userID}/password", h.HandleSetPassword)
		ar.Delete("/{userID}", h.HandleDelete)
	})

	return r
}
