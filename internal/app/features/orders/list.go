// internal/app/features/orders/list.go
package orders

import (
	"context"
	"net/http"

	"github.com/dalemusser/fleetdesk/internal/app/features/shared"
	orderstore "github.com/dalemusser/fleetdesk/internal/app/store/orders"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/normalize"
	"github.com/dalemusser/fleetdesk/internal/app/system/orderflow"
	"github.com/dalemusser/fleetdesk/internal/app/system/paging"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// ServeList handles GET /orders?status=&priority=&clientId=&driverId=&q=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	f := orderstore.ListFilter{
		Status:   normalize.Token(query.Get(r, "status")),
		Priority: normalize.Token(query.Get(r, "priority")),
		Q:        query.Get(r, "q"),
	}
	if f.Status != "" && !orderflow.IsKnown(f.Status) {
		respond.Error(w, r, h.Log, apierr.Validation("unknown order status").
			WithDetails(map[string]any{"status": f.Status, "allowed": models.OrderStatuses}))
		return
	}
	var err error
	if f.ClientID, err = shared.OptionalObjectID(query.Get(r, "clientId"), "clientId"); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if f.DriverID, err = shared.OptionalObjectID(query.Get(r, "driverId"), "driverId"); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p := paging.Parse(r)
	items, total, err := h.Orders.List(ctx, f, p)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "order"))
		return
	}
	respond.OK(w, paging.NewResult(items, p, total))
}

type statsResponse struct {
	orderstore.Stats
	ActiveBroadcasts int64 `json:"activeBroadcasts"`
}

// ServeStats handles GET /orders/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Orders.Stats(ctx)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "order"))
		return
	}
	active, err := h.Assignments.CountActive(ctx)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "assignment"))
		return
	}
	respond.OK(w, statsResponse{Stats: st, ActiveBroadcasts: active})
}

// ServeGet handles GET /orders/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	respond.OK(w, o)
}

// loadOrder parses {id} and loads the order, writing the error response
// itself when it fails.
func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	id, err := shared.ObjectIDParam(r, "id", "order")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	o, err := h.Orders.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return nil, false
	}
	return o, true
}
