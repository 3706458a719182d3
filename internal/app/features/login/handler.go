// internal/app/features/login/handler.go
package login

import (
	"context"
	"net/http"
	"time"

	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/auditlog"
	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/app/system/authutil"
	"github.com/dalemusser/fleetdesk/internal/app/system/inputval"
	"github.com/dalemusser/fleetdesk/internal/app/system/normalize"
	"github.com/dalemusser/fleetdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter
}

func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, audit *auditlog.Logger, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	if limiter == nil {
		limiter = ratelimit.NewLoginLimiter()
	}
	return &Handler{
		Users:      userstore.New(db),
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
		Limiter:    limiter,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type loginResponse struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	AdminRole string `json:"adminRole"`
}

// maxDeviceLen bounds the user agent stored with a session token.
const maxDeviceLen = 256

var errBadCredentials = apierr.New(apierr.CodeUnauthorized, "Invalid email or password")

// HandleLogin handles POST /login.
//
// Unknown email and wrong password give the same 401. A correct password on
// an account that is not an Active admin is 403.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := inputval.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	email := normalize.Email(req.Email)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if ok, reason := h.Limiter.Check(ctx, r, email); !ok {
		h.Log.Warn("login rate limited", zap.String("ip", ratelimit.ClientIP(r)), zap.String("email", email))
		respond.Error(w, r, h.Log, apierr.New(apierr.CodeRateLimited, reason))
		return
	}

	u, err := h.Users.GetByEmail(ctx, email)
	if userstore.IsNotFound(err) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		respond.Error(w, r, h.Log, errBadCredentials)
		return
	}
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}

	if !authutil.CheckPassword(req.Password, u.PasswordHash) {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID)
		respond.Error(w, r, h.Log, errBadCredentials)
		return
	}
	if u.Status != models.StatusActive {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID, u.Status)
		respond.Error(w, r, h.Log, apierr.Forbidden("Your account is "+u.Status+". Please contact an administrator."))
		return
	}
	if u.Role != models.RoleAdmin {
		h.AuditLog.LoginFailedNotAdmin(ctx, r, u.ID, u.Role)
		respond.Error(w, r, h.Log, apierr.Forbidden("Only administrators can sign in to the console"))
		return
	}

	token := auth.NewToken()
	device := r.UserAgent()
	if len(device) > maxDeviceLen {
		device = device[:maxDeviceLen]
	}
	now := time.Now().UTC()
	if err := h.Users.AddSession(ctx, u.ID, models.SessionToken{
		Token:      token,
		Device:     device,
		IP:         ratelimit.ClientIP(r),
		CreatedAt:  now,
		LastActive: now,
	}); err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}

	if err := h.SessionMgr.SignIn(w, r, u.ID, token); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		// the token is useless without the cookie
		_, _ = h.Users.RevokeSession(ctx, u.ID, token)
		respond.Error(w, r, h.Log, apierr.Wrap(apierr.CodeInternal, err, "unable to create session"))
		return
	}

	h.Limiter.ResetEmail(ctx, email)
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email)
	h.Log.Info("admin signed in", zap.String("user_id", u.ID.Hex()), zap.String("admin_role", u.AdminRole))

	respond.OK(w, loginResponse{
		ID:        u.ID.Hex(),
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		AdminRole: u.AdminRole,
	})
}
