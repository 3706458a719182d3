// internal/app/features/users/list.go
package users

import (
	"context"
	"net/http"

	"github.com/dalemusser/fleetdesk/internal/app/features/shared"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/paging"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
)

// ServeList handles GET /users?role=&status=&q=&page=&limit=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p := paging.Parse(r)
	f := userstore.ListFilter{
		Role:   query.Get(r, "role"),
		Status: query.Get(r, "status"),
		Q:      query.Get(r, "q"),
	}
	items, total, err := h.Users.List(ctx, f, p)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}
	views := make([]userView, len(items))
	for i, u := range items {
		views[i] = viewOf(u)
	}
	respond.OK(w, paging.NewResult(views, p, total))
}

// ServeStats handles GET /users/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Users.Stats(ctx)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}
	respond.OK(w, st)
}

// ServeGet handles GET /users/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ObjectIDParam(r, "id", "user")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "user"))
		return
	}
	respond.OK(w, viewOf(*u))
}
