// internal/app/features/logout/handler.go
package logout

import (
	"context"
	"net/http"

	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/auditlog"
	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Users      *userstore.Store
	AuditLog   *auditlog.Logger
}

// NewHandler builds the logout handler. users and audit may be nil; the
// cookie is still cleared.
func NewHandler(sessionMgr *auth.SessionManager, users *userstore.Store, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Users:      users,
		AuditLog:   audit,
	}
}

// HandleLogout handles POST /logout. It expires the cookie and removes the
// session token from the user so the same cookie cannot be replayed.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := h.SessionMgr.SignOut(w, r)
	if err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	userID := ""
	if u, ok := auth.CurrentUser(r); ok {
		userID = u.ID
		if token == "" {
			token = u.Token
		}
		if h.Users != nil && token != "" {
			if _, err := h.Users.RevokeSession(ctx, u.ObjectID(), token); err != nil {
				h.Log.Warn("logout: revoke token", zap.Error(err), zap.String("user_id", u.ID))
			}
		}
	}

	h.AuditLog.Logout(ctx, r, userID)
	respond.OK(w, map[string]bool{"signedOut": true})
}
