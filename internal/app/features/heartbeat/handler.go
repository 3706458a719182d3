// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"context"
	"net/http"
	"time"

	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler reports on the caller's session so the console can keep it
// alive and warn before idle cleanup removes it.
type Handler struct {
	Users       *userstore.Store
	IdleTimeout time.Duration
	Log         *zap.Logger
}

// NewHandler creates a new heartbeat handler. idle is the session idle
// timeout used by the cleanup worker.
func NewHandler(users *userstore.Store, idle time.Duration, logger *zap.Logger) *Handler {
	return &Handler{Users: users, IdleTimeout: idle, Log: logger}
}

type heartbeatResponse struct {
	UserID        string     `json:"userId"`
	LastActive    *time.Time `json:"lastActive,omitempty"`
	IdleExpiresAt *time.Time `json:"idleExpiresAt,omitempty"`
	Sessions      int        `json:"sessions"`
}

// ServeHeartbeat handles POST /heartbeat. Session loading has already
// refreshed the token's lastActive; this reports the result.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		respond.Error(w, r, h.Log, apierr.New(apierr.CodeUnauthorized, "Unauthorized"))
		return
	}
	id := u.ObjectID()
	if id.IsZero() {
		respond.Error(w, r, h.Log, apierr.New(apierr.CodeUnauthorized, "Unauthorized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	tokens, err := h.Users.ListSessions(ctx, id)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}

	resp := heartbeatResponse{UserID: u.ID, Sessions: len(tokens)}
	for _, t := range tokens {
		if t.Token != u.Token {
			continue
		}
		last := t.LastActive
		resp.LastActive = &last
		if h.IdleTimeout > 0 {
			exp := last.Add(h.IdleTimeout)
			resp.IdleExpiresAt = &exp
		}
		break
	}
	respond.OK(w, resp)
}
