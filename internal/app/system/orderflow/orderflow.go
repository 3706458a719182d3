// Package orderflow encodes the order status pipeline: which status changes
// are allowed, which statuses are terminal, and when an admin review
// decision may still be reversed.
package orderflow

import (
	"strings"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReversalWindow is how long after the last tracking entry an admin may
// reverse an approve/reject decision.
const ReversalWindow = 30 * time.Minute

// transitions lists forward moves. Cancellation and reversal are handled
// separately below.
var transitions = map[string][]string{
	models.OrderDraft:          {models.OrderSubmitted},
	models.OrderSubmitted:      {models.OrderAdminReview, models.OrderAdminApproved, models.OrderAdminRejected},
	models.OrderAdminReview:    {models.OrderAdminApproved, models.OrderAdminRejected},
	models.OrderAdminApproved:  {models.OrderBroadcast, models.OrderAssigned},
	models.OrderBroadcast:      {models.OrderAssigned},
	models.OrderAssigned:       {models.OrderConfirmed, models.OrderFailed},
	models.OrderConfirmed:      {models.OrderEnRoutePickup, models.OrderFailed},
	models.OrderEnRoutePickup:  {models.OrderArrivedPickup, models.OrderFailed},
	models.OrderArrivedPickup:  {models.OrderPickedUp, models.OrderFailed},
	models.OrderPickedUp:       {models.OrderInTransit, models.OrderFailed},
	models.OrderInTransit:      {models.OrderArrivedDropoff, models.OrderFailed, models.OrderReturned},
	models.OrderArrivedDropoff: {models.OrderDelivered, models.OrderFailed, models.OrderReturned},
	models.OrderFailed:         {models.OrderReturned},
}

// reversible are the statuses an admin decision can be walked back from.
var reversible = map[string]bool{
	models.OrderAdminApproved: true,
	models.OrderAdminRejected: true,
	models.OrderBroadcast:     true,
}

// IsKnown reports whether s is a valid order status.
func IsKnown(s string) bool {
	for _, v := range models.OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status changes are possible.
func IsTerminal(s string) bool {
	return s == models.OrderDelivered || s == models.OrderCancelled || s == models.OrderReturned
}

// IsCancellable reports whether an order in status s may be cancelled.
func IsCancellable(s string) bool {
	return IsKnown(s) && !IsTerminal(s) && s != models.OrderFailed
}

// CanTransition reports whether from -> to is a legal pipeline move.
func CanTransition(from, to string) bool {
	if to == models.OrderCancelled {
		return IsCancellable(from)
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition is CanTransition returning a STATE_CONFLICT error.
func CheckTransition(from, to string) error {
	if !IsKnown(to) {
		return apierr.Validation("unknown order status: " + to)
	}
	if !CanTransition(from, to) {
		return apierr.State("cannot move order from " + from + " to " + to).
			WithDetails(map[string]any{"from": from, "to": to, "allowed": Next(from)})
	}
	return nil
}

// Next lists the statuses reachable from s, including cancellation.
func Next(s string) []string {
	out := append([]string(nil), transitions[s]...)
	if IsCancellable(s) {
		out = append(out, models.OrderCancelled)
	}
	return out
}

// IsReviewable reports whether an admin can approve or reject the order.
func IsReviewable(s string) bool {
	return s == models.OrderSubmitted || s == models.OrderAdminReview
}

// CheckReversal decides whether the order's admin decision can be reversed
// at now. Once a driver is assigned the decision is final, and the last
// tracking entry must be no older than ReversalWindow.
func CheckReversal(o models.Order, now time.Time) error {
	if !reversible[o.Status] {
		return apierr.State("order status " + o.Status + " has no admin decision to reverse")
	}
	if o.HasDriver() {
		return apierr.State("decision cannot be reversed after a driver has been assigned")
	}
	last, ok := o.LastTracking()
	if !ok {
		return apierr.State("order has no tracking history to reverse")
	}
	if age := now.Sub(last.Timestamp); age > ReversalWindow {
		return apierr.State("reversal window of 30 minutes has expired").
			WithDetails(map[string]any{"lastChange": last.Timestamp, "elapsedMinutes": int(age.Minutes())})
	}
	return nil
}

// RequireReason returns a VALIDATION_ERROR when reason is blank. action
// names what the reason is for ("rejection", "cancellation").
func RequireReason(action, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return apierr.Validation(action + " reason is required").
			WithDetails(map[string]string{"reason": "is required"})
	}
	return nil
}

// Entry builds a tracking history row.
func Entry(status, description, reason string, actor primitive.ObjectID, at time.Time) models.TrackingEntry {
	e := models.TrackingEntry{Status: status, Timestamp: at, Description: description, Reason: reason}
	if !actor.IsZero() {
		e.Actor = &actor
	}
	return e
}
