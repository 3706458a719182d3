// internal/app/features/orders/review.go
package orders

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
	orderstore "github.com/dalemusser/fleetdesk/internal/app/store/orders"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/authz"
	"github.com/dalemusser/fleetdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/fleetdesk/internal/app/system/inputval"
	"github.com/dalemusser/fleetdesk/internal/app/system/orderflow"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return inputval.DecodeJSON(w, r, dest)
}

func review(decision, reason string, actor primitive.ObjectID, at time.Time) *models.AdminReview {
	rv := &models.AdminReview{Decision: decision, Reason: reason, ReviewedAt: &at}
	if !actor.IsZero() {
		rv.ReviewedBy = &actor
	}
	return rv
}

// HandleApprove handles POST /orders/{id}/approve.
//
// The order moves submitted|admin_review -> admin_approved and is then
// broadcast to eligible drivers. A failed broadcast leaves the order
// approved and is reported in the response body.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := decodeOptional(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if err := orderflow.CheckTransition(o.Status, models.OrderAdminApproved); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	notes := htmlsanitize.Text(req.Notes)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actor := authz.ActorID(r)
	now := h.now().UTC()
	approved, err := h.Orders.Apply(ctx, o.ID, orderstore.Transition{
		From:  o.Status,
		To:    models.OrderAdminApproved,
		Entry: orderflow.Entry(models.OrderAdminApproved, "Approved by admin", notes, actor, now),
		Set:   bson.M{"adminReview": review(decisionApproved, notes, actor, now)},
	})
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.Metrics.OrderDecision(decisionApproved)
	h.AuditLog.OrderEvent(ctx, r, audit.EventOrderApproved, actor, o.ID, o.Status, models.OrderAdminApproved, notes)

	broadcasted, res := h.broadcast(ctx, r, *approved, actor)
	resp := decisionResponse{Order: approved, Broadcast: res}
	if broadcasted != nil {
		resp.Order = broadcasted
	}
	respond.OK(w, resp)
}

// broadcast runs dispatch for an approved order and folds the outcome
// into a broadcastResult. The returned order is nil when dispatch failed.
func (h *Handler) broadcast(ctx context.Context, r *http.Request, o models.Order, actor primitive.ObjectID) (*models.Order, *broadcastResult) {
	updated, a, err := h.Dispatch.Broadcast(ctx, o, actor)
	if err != nil {
		h.Log.Error("broadcast failed",
			zap.String("order_id", o.ID.Hex()),
			zap.Error(err))
		msg := "broadcast failed; retry with POST /orders/{id}/broadcast"
		if e := apierr.As(err); e != nil && apierr.MetadataFor(e.Code()).ShowMessage {
			msg = e.Message()
		}
		return nil, &broadcastResult{Error: msg}
	}
	h.AuditLog.OrderEvent(ctx, r, audit.EventOrderBroadcast, actor, o.ID, o.Status, models.OrderBroadcast, "")
	return updated, &broadcastResult{Assignment: a, Candidates: len(a.AvailableDrivers)}
}

// HandleBroadcast handles POST /orders/{id}/broadcast. It retries dispatch
// for an order left in admin_approved.
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	if o.Status != models.OrderAdminApproved {
		respond.Error(w, r, h.Log, apierr.State("only admin_approved orders can be broadcast").
			WithDetails(map[string]string{"status": o.Status}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	actor := authz.ActorID(r)
	updated, a, err := h.Dispatch.Broadcast(ctx, *o, actor)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	h.AuditLog.OrderEvent(ctx, r, audit.EventOrderBroadcast, actor, o.ID, o.Status, models.OrderBroadcast, "")
	respond.OK(w, decisionResponse{
		Order:     updated,
		Broadcast: &broadcastResult{Assignment: a, Candidates: len(a.AvailableDrivers)},
	})
}

// HandleReject handles POST /orders/{id}/reject. A reason is required.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
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
	if err := orderflow.RequireReason("rejection", reason); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if err := orderflow.CheckTransition(o.Status, models.OrderAdminRejected); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	actor := authz.ActorID(r)
	now := h.now().UTC()
	updated, err := h.Orders.Apply(ctx, o.ID, orderstore.Transition{
		From:  o.Status,
		To:    models.OrderAdminRejected,
		Entry: orderflow.Entry(models.OrderAdminRejected, "Rejected by admin", reason, actor, now),
		Set:   bson.M{"adminReview": review(decisionRejected, reason, actor, now)},
	})
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	h.Metrics.OrderDecision(decisionRejected)
	h.AuditLog.OrderEvent(ctx, r, audit.EventOrderRejected, actor, o.ID, o.Status, models.OrderAdminRejected, reason)
	respond.OK(w, decisionResponse{Order: updated})
}

// HandleReverse handles POST /orders/{id}/reverse.
//
// An approve or reject decision can be walked back to admin_review within
// 30 minutes of the last status change, and only while no driver holds
// the order. Any live broadcast for the order is cancelled.
func (h *Handler) HandleReverse(w http.ResponseWriter, r *http.Request) {
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
	if err := orderflow.RequireReason("reversal", reason); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	now := h.now().UTC()
	if err := orderflow.CheckReversal(*o, now); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	actor := authz.ActorID(r)
	updated, err := h.Orders.Apply(ctx, o.ID, orderstore.Transition{
		From:  o.Status,
		To:    models.OrderAdminReview,
		Entry: orderflow.Entry(models.OrderAdminReview, "Admin decision reversed", reason, actor, now),
		Set:   bson.M{"adminReview": review(decisionReversed, reason, actor, now)},
		Guard: bson.M{"driverAssignment.driverId": nil},
	})
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}

	cancelled, err := h.Assignments.CancelBroadcasting(ctx, o.ID, now)
	if err != nil {
		h.Log.Error("cancel broadcast after reversal", zap.String("order_id", o.ID.Hex()), zap.Error(err))
	}

	h.Log.Info("order decision reversed",
		zap.String("order_id", o.ID.Hex()),
		zap.String("from", o.Status),
		zap.Int64("assignments_cancelled", cancelled))
	h.Metrics.OrderDecision(decisionReversed)
	h.AuditLog.OrderEvent(ctx, r, audit.EventOrderReversed, actor, o.ID, o.Status, models.OrderAdminReview, reason)
	respond.OK(w, decisionResponse{Order: updated})
}
