// internal/app/features/users/edit.go
package users

import (
	"context"
	"net/http"

	"github.com/dalemusser/fleetdesk/internal/app/features/shared"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/authz"
	"github.com/dalemusser/fleetdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fleetdesk/internal/app/system/inputval"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.uber.org/zap"
)

// HandlePatch handles PATCH /users/{id}. Only the fields present in the
// body change. Editing an admin account requires a superadmin.
func (h *Handler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id", "user")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	var req patchRequest
	if err := inputval.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	patch := userstore.Patch{Email: req.Email, Phone: req.Phone, AdminRole: req.AdminRole}
	if req.FullName != nil {
		name := htmlsanitize.Text(*req.FullName)
		if name == "" {
			respond.Error(w, r, h.Log, inputval.Required("fullName", name))
			return
		}
		patch.FullName = &name
	}
	if patch.Empty() {
		respond.Error(w, r, h.Log, apierr.Validation("Missing required fields: nothing to update"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	target, err := h.Users.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}
	if target.Role == models.RoleAdmin && target.ID != authz.ActorID(r) && !authz.CanManageAdmins(r) {
		respond.Error(w, r, h.Log, apierr.Forbidden("Only superadmins can edit other admin accounts"))
		return
	}
	if patch.AdminRole != nil {
		if target.Role != models.RoleAdmin {
			respond.Error(w, r, h.Log, apierr.Validation("adminRole applies to admin accounts only"))
			return
		}
		if !authz.CanManageAdmins(r) {
			respond.Error(w, r, h.Log, apierr.Forbidden("Only superadmins can change admin roles"))
			return
		}
	}

	u, err := h.Users.Update(ctx, id, patch)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}

	h.AuditLog.UserUpdated(ctx, r, authz.ActorID(r), id, changedFields(req))
	respond.OK(w, viewOf(*u))
}

func changedFields(req patchRequest) []string {
	var out []string
	if req.FullName != nil {
		out = append(out, "fullName")
	}
	if req.Email != nil {
		out = append(out, "email")
	}
	if req.Phone != nil {
		out = append(out, "phone")
	}
	if req.AdminRole != nil {
		out = append(out, "adminRole")
	}
	return out
}

// HandleDelete handles DELETE /users/{id}. The document is removed
// physically. Support staff cannot delete and nobody can delete themselves.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !authz.CanDestroy(r) {
		respond.Error(w, r, h.Log, apierr.Forbidden("Forbidden: only admins can delete users"))
		return
	}
	id, err := shared.ObjectIDParam(r, "id", "user")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	actor := authz.ActorID(r)
	if id == actor {
		respond.Error(w, r, h.Log, apierr.Forbidden("You cannot delete your own account"))
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
		respond.Error(w, r, h.Log, apierr.Forbidden("Only superadmins can delete admin accounts"))
		return
	}

	n, err := h.Users.Delete(ctx, id)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}
	if n == 0 {
		respond.Error(w, r, h.Log, apierr.NotFound("user"))
		return
	}

	h.Log.Info("user deleted", zap.String("user_id", id.Hex()), zap.String("actor_id", actor.Hex()))
	h.AuditLog.UserDeleted(ctx, r, actor, id)
	respond.OK(w, map[string]any{"id": id.Hex(), "deleted": true})
}
