// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the user-management API, typically at "/users":
//
//	r.Mount("/users", users.Routes(users.NewHandler(db, audit, m, logger), sessionMgr))
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))

		pr.Get("/", h.ServeList)
		pr.Post("/", h.HandleCreate)
		pr.Get("/stats", h.ServeStats)
		pr.Post("/sessions/cleanup", h.HandleCleanup)

		pr.Get("/{id}", h.ServeGet)
		pr.Patch("/{id}", h.HandlePatch)
		pr.Delete("/{id}", h.HandleDelete)
		pr.Patch("/{id}/status", h.HandleStatus)

		pr.Get("/{id}/sessions", h.ServeSessions)
		pr.Delete("/{id}/sessions", h.HandleRevokeAll)
		pr.Delete("/{id}/sessions/{token}", h.HandleRevokeSession)
	})

	return r
}
