// internal/app/features/orders/status.go
package orders

import (
	"context"
	"net/http"

	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
	orderstore "github.com/dalemusser/fleetdesk/internal/app/store/orders"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/authz"
	"github.com/dalemusser/fleetdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fleetdesk/internal/app/system/inputval"
	"github.com/dalemusser/fleetdesk/internal/app/system/normalize"
	"github.com/dalemusser/fleetdesk/internal/app/system/orderflow"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// HandleStatus handles PATCH /orders/{id}/status for the delivery
// pipeline (assigned onwards). Review, dispatch and cancellation moves
// have their own endpoints.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := inputval.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	to := normalize.Token(req.Status)
	if ep, ok := dedicatedEndpoints[to]; ok {
		respond.Error(w, r, h.Log, apierr.Validation("status "+to+" is set through "+ep))
		return
	}
	if err := orderflow.CheckTransition(o.Status, to); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	note := htmlsanitize.Text(req.Note)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	actor := authz.ActorID(r)
	now := h.now().UTC()
	updated, err := h.Orders.Apply(ctx, o.ID, orderstore.Transition{
		From:  o.Status,
		To:    to,
		Entry: orderflow.Entry(to, "Status updated by admin", note, actor, now),
	})
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if releasesDriver[to] {
		h.releaseDriver(ctx, *o)
	}

	h.AuditLog.OrderEvent(ctx, r, audit.EventOrderStatusUpdated, actor, o.ID, o.Status, to, note)
	respond.OK(w, decisionResponse{Order: updated})
}

// HandleCancel handles POST /orders/{id}/cancel. A reason is required;
// the driver, if any, is released and a live broadcast is cancelled.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := decodeOptional(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	reason := htmlsanitize.Text(req.Reason)
	if err := orderflow.RequireReason("cancellation", reason); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if err := orderflow.CheckTransition(o.Status, models.OrderCancelled); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	actor := authz.ActorID(r)
	now := h.now().UTC()
	c := models.Cancellation{Reason: reason, CancelledAt: now}
	if !actor.IsZero() {
		c.CancelledBy = &actor
	}
	updated, err := h.Orders.Apply(ctx, o.ID, orderstore.Transition{
		From:  o.Status,
		To:    models.OrderCancelled,
		Entry: orderflow.Entry(models.OrderCancelled, "Cancelled by admin", reason, actor, now),
		Set:   bson.M{"cancellation": c},
	})
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.releaseDriver(ctx, *o)
	if _, err := h.Assignments.CancelBroadcasting(ctx, o.ID, now); err != nil {
		h.Log.Error("cancel broadcast for cancelled order", zap.String("order_id", o.ID.Hex()), zap.Error(err))
	}

	h.Metrics.OrderDecision(decisionCancelled)
	h.AuditLog.OrderEvent(ctx, r, audit.EventOrderCancelled, actor, o.ID, o.Status, models.OrderCancelled, reason)
	respond.OK(w, decisionResponse{Order: updated})
}

// HandleDelete handles DELETE /orders/{id}. Support staff cannot delete.
// The order's assignments go with it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !authz.CanDestroy(r) {
		respond.Error(w, r, h.Log, apierr.Forbidden("Forbidden: only admins can delete orders"))
		return
	}
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Orders.Delete(ctx, o.ID)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "order"))
		return
	}
	if n == 0 {
		respond.Error(w, r, h.Log, apierr.NotFound("order"))
		return
	}
	removed, err := h.Assignments.DeleteForOrder(ctx, o.ID)
	if err != nil {
		h.Log.Error("delete order assignments", zap.String("order_id", o.ID.Hex()), zap.Error(err))
	}
	h.releaseDriver(ctx, *o)

	actor := authz.ActorID(r)
	h.Log.Info("order deleted",
		zap.String("order_id", o.ID.Hex()),
		zap.String("actor_id", actor.Hex()),
		zap.Int64("assignments_removed", removed))
	h.AuditLog.OrderEvent(ctx, r, audit.EventOrderDeleted, actor, o.ID, o.Status, "", "")
	respond.OK(w, map[string]any{"id": o.ID.Hex(), "deleted": true})
}

// releaseDriver frees the order's driver, if it still points at o.
func (h *Handler) releaseDriver(ctx context.Context, o models.Order) {
	if !o.HasDriver() {
		return
	}
	if err := h.Users.ReleaseOrder(ctx, *o.DriverAssignment.DriverID, o.ID); err != nil {
		h.Log.Error("release driver",
			zap.String("driver_id", o.DriverAssignment.DriverID.Hex()),
			zap.String("order_id", o.ID.Hex()),
			zap.Error(err))
	}
}
