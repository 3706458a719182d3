// internal/app/features/users/status.go
package users

import (
	"context"
	"net/http"

	"github.com/dalemusser/fleetdesk/internal/app/features/shared"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/authz"
	"github.com/dalemusser/fleetdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fleetdesk/internal/app/system/inputval"
	"github.com/dalemusser/fleetdesk/internal/app/system/normalize"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
)

// HandleStatus handles PATCH /users/{id}/status.
//
// Suspended, Banned and Blocked need a reason. Any status other than
// Active also revokes every session token of the user.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id", "user")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var req statusRequest
	if err := inputval.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	status := normalize.UserStatus(req.Status)
	if !models.IsValidUserStatus(status) {
		respond.Error(w, r, h.Log, apierr.Validation("invalid status").
			WithDetails(map[string]any{"status": req.Status, "allowed": models.UserStatuses}))
		return
	}
	reason := htmlsanitize.Text(req.Reason)
	if sanctionStatuses[status] {
		if err := inputval.Required("reason", reason); err != nil {
			respond.Error(w, r, h.Log, err)
			return
		}
	}
	actor := authz.ActorID(r)
	if id == actor && status != models.StatusActive {
		respond.Error(w, r, h.Log, apierr.Forbidden("You cannot deactivate your own account"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}
	if target.Role == models.RoleAdmin && !authz.CanManageAdmins(r) {
		respond.Error(w, r, h.Log, apierr.Forbidden("Only superadmins can change an admin's status"))
		return
	}

	revoke := status != models.StatusActive
	revoked, err := h.Users.SetStatus(ctx, id, status, reason, revoke)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}

	h.Metrics.SessionsRevoked(revoked)
	h.AuditLog.UserStatusChanged(ctx, r, actor, id, status, reason, revoked)
	respond.OK(w, statusResponse{ID: id.Hex(), Status: status, Reason: reason, RevokedSessions: revoked})
}
