// internal/app/features/users/sessions.go
package users

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/features/shared"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/app/system/authz"
	"github.com/dalemusser/fleetdesk/internal/app/system/inputval"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ServeSessions handles GET /users/{id}/sessions.
func (h *Handler) ServeSessions(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id", "user")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	toks, err := h.Users.ListSessions(ctx, id)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}
	current := ""
	if u, ok := auth.CurrentUser(r); ok && u.ObjectID() == id {
		current = u.Token
	}
	out := make([]sessionView, len(toks))
	for i, t := range toks {
		out[i] = sessionView{
			Token:      t.Token,
			Device:     t.Device,
			IP:         t.IP,
			CreatedAt:  t.CreatedAt,
			LastActive: t.LastActive,
			Current:    current != "" && t.Token == current,
		}
	}
	respond.OK(w, out)
}

// HandleRevokeSession handles DELETE /users/{id}/sessions/{token}.
func (h *Handler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id", "user")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	token := chi.URLParam(r, "token")
	if err := inputval.Required("token", token); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	removed, err := h.Users.RevokeSession(ctx, id, token)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}
	if !removed {
		respond.Error(w, r, h.Log, apierr.NotFound("session"))
		return
	}

	h.Metrics.SessionsRevoked(1)
	h.AuditLog.SessionsRevoked(ctx, r, authz.ActorID(r), id, 1, false)
	respond.OK(w, revokeResponse{Revoked: 1})
}

// HandleRevokeAll handles DELETE /users/{id}/sessions.
func (h *Handler) HandleRevokeAll(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id", "user")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Users.RevokeAllSessions(ctx, id)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}

	h.Metrics.SessionsRevoked(n)
	h.AuditLog.SessionsRevoked(ctx, r, authz.ActorID(r), id, n, true)
	respond.OK(w, revokeResponse{Revoked: n})
}

// HandleCleanup handles POST /users/sessions/cleanup. It removes tokens
// idle longer than olderThanDays (default 30) across every user.
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if r.ContentLength != 0 {
		if err := inputval.DecodeJSON(w, r, &req); err != nil {
			respond.Error(w, r, h.Log, err)
			return
		}
	}
	days := req.OlderThanDays
	if days == 0 {
		days = DefaultCleanupDays
	}
	olderThan := time.Duration(days) * 24 * time.Hour

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	removed, err := h.Users.CleanupSessions(ctx, olderThan)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "session"))
		return
	}

	h.Log.Info("session cleanup", zap.Int64("removed", removed), zap.Int("older_than_days", days))
	h.Metrics.SessionsRevoked(int(removed))
	h.AuditLog.SessionsCleaned(ctx, r, authz.ActorID(r), removed)
	respond.OK(w, cleanupResponse{Removed: removed, OlderThan: time.Now().UTC().Add(-olderThan)})
}
