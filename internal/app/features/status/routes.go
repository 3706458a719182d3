// internal/app/features/status/routes.go
package status

import (
	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the diagnostics report, typically at "/system".
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))
		pr.Get("/diagnostics", h.Serve)
	})
	return r
}
