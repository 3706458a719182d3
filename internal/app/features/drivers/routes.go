// internal/app/features/drivers/routes.go
package drivers

import (
	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts driver verification review under "/drivers".
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))

		pr.Get("/verifications", h.ServeVerifications)
		pr.Get("/{id}", h.ServeDriver)
		pr.Patch("/{id}/documents/{doc}", h.HandleReviewDocument)
		pr.Patch("/{id}/verification", h.HandleReviewVerification)
	})

	return r
}
