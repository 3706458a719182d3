package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order statuses, in pipeline order.
const (
	OrderDraft          = "draft"
	OrderSubmitted      = "submitted"
	OrderAdminReview    = "admin_review"
	OrderAdminApproved  = "admin_approved"
	OrderAdminRejected  = "admin_rejected"
	OrderBroadcast      = "broadcast"
	OrderAssigned       = "assigned"
	OrderConfirmed      = "confirmed"
	OrderEnRoutePickup  = "en_route_pickup"
	OrderArrivedPickup  = "arrived_pickup"
	OrderPickedUp       = "picked_up"
	OrderInTransit      = "in_transit"
	OrderArrivedDropoff = "arrived_dropoff"
	OrderDelivered      = "delivered"
	OrderFailed         = "failed"
	OrderCancelled      = "cancelled"
	OrderReturned       = "returned"
)

// OrderStatuses lists every order status in pipeline order.
var OrderStatuses = []string{
	OrderDraft, OrderSubmitted, OrderAdminReview, OrderAdminApproved,
	OrderAdminRejected, OrderBroadcast, OrderAssigned, OrderConfirmed,
	OrderEnRoutePickup, OrderArrivedPickup, OrderPickedUp, OrderInTransit,
	OrderArrivedDropoff, OrderDelivered, OrderFailed, OrderCancelled,
	OrderReturned,
}

// Order priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// OrderFlags are operational markers set by ops staff or the client app.
type OrderFlags struct {
	IsUrgent                bool `bson:"isUrgent,omitempty" json:"isUrgent,omitempty"`
	RequiresSpecialHandling bool `bson:"requiresSpecialHandling,omitempty" json:"requiresSpecialHandling,omitempty"`
}

// Package describes what is being delivered.
type Package struct {
	Category                string  `bson:"category,omitempty" json:"category,omitempty"`
	Description             string  `bson:"description,omitempty" json:"description,omitempty"`
	Weight                  float64 `bson:"weight,omitempty" json:"weight,omitempty"` // kg
	IsFragile               bool    `bson:"isFragile,omitempty" json:"isFragile,omitempty"`
	RequiresSpecialHandling bool    `bson:"requiresSpecialHandling,omitempty" json:"requiresSpecialHandling,omitempty"`
}

// Stop is a pickup or drop-off point.
type Stop struct {
	Address      string   `bson:"address" json:"address"`
	ContactName  string   `bson:"contactName,omitempty" json:"contactName,omitempty"`
	ContactPhone string   `bson:"contactPhone,omitempty" json:"contactPhone,omitempty"`
	Coordinates  GeoPoint `bson:"coordinates" json:"coordinates"`
}

// OrderLocation holds both ends of the delivery.
type OrderLocation struct {
	PickUp  Stop `bson:"pickUp" json:"pickUp"`
	DropOff Stop `bson:"dropOff" json:"dropOff"`
}

// Pricing is the quoted price of the order.
type Pricing struct {
	BaseFare     float64 `bson:"baseFare" json:"baseFare"`
	DistanceFare float64 `bson:"distanceFare" json:"distanceFare"`
	Total        float64 `bson:"total" json:"total"`
	Currency     string  `bson:"currency" json:"currency"`
}

// Payment tracks how and whether the order was paid.
type Payment struct {
	Method string `bson:"method,omitempty" json:"method,omitempty"`
	Status string `bson:"status,omitempty" json:"status,omitempty"`
}

// DriverAssignment records which driver holds the order. Once DriverID is
// set, admin review decisions can no longer be reversed.
type DriverAssignment struct {
	DriverID   *primitive.ObjectID `bson:"driverId,omitempty" json:"driverId,omitempty"`
	DriverName string              `bson:"driverName,omitempty" json:"driverName,omitempty"`
	AssignedAt *time.Time          `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`
	AssignedBy *primitive.ObjectID `bson:"assignedBy,omitempty" json:"assignedBy,omitempty"`
}

// AdminReview records the latest admin decision on the order.
type AdminReview struct {
	Decision   string              `bson:"decision,omitempty" json:"decision,omitempty"` // approved | rejected | reversed
	Reason     string              `bson:"reason,omitempty" json:"reason,omitempty"`
	ReviewedBy *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time          `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
}

// TrackingEntry is one row of the order's audit trail.
type TrackingEntry struct {
	Status      string              `bson:"status" json:"status"`
	Timestamp   time.Time           `bson:"timestamp" json:"timestamp"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Reason      string              `bson:"reason,omitempty" json:"reason,omitempty"`
	Actor       *primitive.ObjectID `bson:"actor,omitempty" json:"actor,omitempty"`
}

// Cancellation records why and by whom an order was cancelled.
type Cancellation struct {
	Reason      string              `bson:"reason" json:"reason"`
	CancelledBy *primitive.ObjectID `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	CancelledAt time.Time           `bson:"cancelledAt" json:"cancelledAt"`
}

// Order is a delivery request moving through the status pipeline.
type Order struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderRef            string             `bson:"orderRef" json:"orderRef"`
	ClientID            primitive.ObjectID `bson:"clientId" json:"clientId"`
	Status              string             `bson:"status" json:"status"`
	Priority            string             `bson:"priority,omitempty" json:"priority,omitempty"`
	Flags               OrderFlags         `bson:"flags" json:"flags"`
	Package             Package            `bson:"package" json:"package"`
	VehicleRequirements []string           `bson:"vehicleRequirements,omitempty" json:"vehicleRequirements,omitempty"`
	Location            OrderLocation      `bson:"location" json:"location"`
	Pricing             Pricing            `bson:"pricing" json:"pricing"`
	Payment             Payment            `bson:"payment" json:"payment"`

	DriverAssignment     DriverAssignment `bson:"driverAssignment" json:"driverAssignment"`
	AdminReview          *AdminReview     `bson:"adminReview,omitempty" json:"adminReview,omitempty"`
	OrderTrackingHistory []TrackingEntry  `bson:"orderTrackingHistory" json:"orderTrackingHistory"`
	Cancellation         *Cancellation    `bson:"cancellation,omitempty" json:"cancellation,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// LastTracking returns the most recent tracking entry, if any.
func (o Order) LastTracking() (TrackingEntry, bool) {
	n := len(o.OrderTrackingHistory)
	if n == 0 {
		return TrackingEntry{}, false
	}
	return o.OrderTrackingHistory[n-1], true
}

// HasDriver reports whether a driver has been assigned.
func (o Order) HasDriver() bool {
	return o.DriverAssignment.DriverID != nil && !o.DriverAssignment.DriverID.IsZero()
}
