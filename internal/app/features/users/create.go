// internal/app/features/users/create.go
package users

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/authutil"
	"github.com/dalemusser/fleetdesk/internal/app/system/authz"
	"github.com/dalemusser/fleetdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fleetdesk/internal/app/system/inputval"
	"github.com/dalemusser/fleetdesk/internal/app/system/normalize"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
)

// HandleCreate handles POST /users.
//
// Missing required fields are 400, a taken email is 409. New drivers start
// with every document and the overall verification pending.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := inputval.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if err := authutil.ValidatePassword(req.Password); err != nil {
		respond.Error(w, r, h.Log, apierr.Validation(err.Error()).
			WithDetails(map[string]string{"password": authutil.PasswordRules()}))
		return
	}
	if req.Role == models.RoleAdmin && !authz.CanManageAdmins(r) {
		respond.Error(w, r, h.Log, apierr.Forbidden("Only superadmins can create admin accounts"))
		return
	}
	status := normalize.UserStatus(req.Status)
	if status != "" && !models.IsValidUserStatus(status) {
		respond.Error(w, r, h.Log, apierr.Validation("invalid status").
			WithDetails(map[string]any{"status": req.Status, "allowed": models.UserStatuses}))
		return
	}
	vehicle := normalize.Token(req.VehicleType)
	if vehicle != "" && !models.IsValidVehicleType(vehicle) {
		respond.Error(w, r, h.Log, apierr.Validation("invalid vehicle type").
			WithDetails(map[string]any{"vehicleType": req.VehicleType, "allowed": models.VehicleTypes}))
		return
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.Wrap(apierr.CodeInternal, err, "could not hash password"))
		return
	}

	u := models.User{
		FullName:     htmlsanitize.Text(req.FullName),
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         req.Role,
		AdminRole:    req.AdminRole,
		Status:       status,
	}
	if u.Role == models.RoleDriver {
		now := time.Now().UTC()
		pending := models.DocumentReview{Status: models.ReviewPending}
		u.Verification = &models.Verification{
			OverallStatus: models.ReviewPending,
			Documents:     models.VerificationDocuments{License: pending, Registration: pending, Insurance: pending},
			SubmittedAt:   &now,
		}
		if vehicle != "" {
			u.VehicleDetails = &models.VehicleDetails{Type: vehicle}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	created, err := h.Users.Create(ctx, u)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}

	h.AuditLog.UserCreated(ctx, r, authz.ActorID(r), created.ID, created.Role)
	respond.Created(w, viewOf(created))
}
