// internal/app/features/orders/assign.go
package orders

import (
	"context"
	"net/http"

	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
	orderstore "github.com/dalemusser/fleetdesk/internal/app/store/orders"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/authz"
	"github.com/dalemusser/fleetdesk/internal/app/system/dispatch"
	"github.com/dalemusser/fleetdesk/internal/app/system/inputval"
	"github.com/dalemusser/fleetdesk/internal/app/system/orderflow"
	"github.com/dalemusser/fleetdesk/internal/app/system/respond"
	"github.com/dalemusser/fleetdesk/internal/app/system/timeouts"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// HandleAssign handles POST /orders/{id}/assign with {"driverId": "..."}.
//
// The admin picks a driver for a broadcast (or still approved) order. The
// driver must pass every eligibility check except distance. The driver is
// claimed first so two orders cannot take the same driver; if the order
// write then loses a race the claim is released.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := inputval.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	driverID, err := primitive.ObjectIDFromHex(req.DriverID)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.Validation("invalid driver id"))
		return
	}
	if err := orderflow.CheckTransition(o.Status, models.OrderAssigned); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	if o.HasDriver() {
		respond.Error(w, r, h.Log, apierr.State("order already has a driver"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	d, err := h.Users.GetDriver(ctx, driverID)
	if err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "driver"))
		return
	}
	if why := dispatch.CheckDriver(*d, o.VehicleRequirements); why != "" {
		respond.Error(w, r, h.Log, apierr.State("driver is not eligible: "+why).
			WithDetails(map[string]string{"driverId": driverID.Hex(), "reason": why}))
		return
	}

	if err := h.Users.AssignOrder(ctx, driverID, o.ID); err != nil {
		respond.Error(w, r, h.Log, apierr.FromStore(err, "driver"))
		return
	}

	actor := authz.ActorID(r)
	now := h.now().UTC()
	da := models.DriverAssignment{DriverID: &driverID, DriverName: d.FullName, AssignedAt: &now}
	if !actor.IsZero() {
		da.AssignedBy = &actor
	}
	updated, err := h.Orders.Apply(ctx, o.ID, orderstore.Transition{
		From:  o.Status,
		To:    models.OrderAssigned,
		Entry: orderflow.Entry(models.OrderAssigned, "Driver "+d.FullName+" assigned by admin", "", actor, now),
		Set:   bson.M{"driverAssignment": da},
		Guard: bson.M{"driverAssignment.driverId": nil},
	})
	if err != nil {
		if relErr := h.Users.ReleaseOrder(ctx, driverID, o.ID); relErr != nil {
			h.Log.Error("release driver after failed assignment",
				zap.String("driver_id", driverID.Hex()),
				zap.String("order_id", o.ID.Hex()),
				zap.Error(relErr))
		}
		respond.Error(w, r, h.Log, err)
		return
	}

	if _, err := h.Assignments.MarkAssigned(ctx, o.ID, driverID, now); err != nil {
		h.Log.Error("mark assignment assigned", zap.String("order_id", o.ID.Hex()), zap.Error(err))
	}

	h.Metrics.OrderDecision(decisionAssigned)
	h.AuditLog.OrderEvent(ctx, r, audit.EventOrderAssigned, actor, o.ID, o.Status, models.OrderAssigned, "driver "+driverID.Hex())
	respond.OK(w, decisionResponse{Order: updated})
}

// ServeEligibleDrivers handles GET /orders/{id}/eligible-drivers. It runs
// the broadcast search without writing anything.
func (h *Handler) ServeEligibleDrivers(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cs, radius, err := h.Dispatch.FindEligibleDrivers(ctx, *o)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, eligibleResponse{
		OrderID:    o.ID.Hex(),
		Radius:     radius,
		Count:      len(cs),
		Candidates: candidateViews(cs),
	})
}

// ServeAssignment handles GET /orders/{id}/assignment, the latest
// broadcast record for the order.
func (h *Handler) ServeAssignment(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, err := h.Assignments.LatestForOrder(ctx, o.ID)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, a)
}
