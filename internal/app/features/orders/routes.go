// internal/app/features/orders/routes.go
package orders

import (
	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the order console under "/orders".
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))

		pr.Get("/", h.ServeList)
		pr.Get("/stats", h.ServeStats)

		pr.Get("/{id}", h.ServeGet)
		pr.Delete("/{id}", h.HandleDelete)
		pr.Post("/{id}/approve", h.HandleApprove)
		pr.Post("/{id}/reject", h.HandleReject)
		pr.Post("/{id}/reverse", h.HandleReverse)
		pr.Post("/{id}/broadcast", h.HandleBroadcast)
		pr.Post("/{id}/assign", h.HandleAssign)
		pr.Post("/{id}/cancel", h.HandleCancel)
		pr.Patch("/{id}/status", h.HandleStatus)
		pr.Get("/{id}/eligible-drivers", h.ServeEligibleDrivers)
		pr.Get("/{id}/assignment", h.ServeAssignment)
	})

	return r
}
