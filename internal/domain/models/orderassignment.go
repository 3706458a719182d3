package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderAssignment statuses.
const (
	AssignmentBroadcasting = "broadcasting"
	AssignmentAssigned     = "assigned"
	AssignmentExpired      = "expired"
	AssignmentCancelled    = "cancelled"
)

// Candidate driver responses.
const (
	ResponsePending  = "pending"
	ResponseAccepted = "accepted"
	ResponseDeclined = "declined"
)

// StrategyPriorityBroadcast offers the order to every ranked candidate at once.
const StrategyPriorityBroadcast = "priority_broadcast"

// CandidateDriver is one driver an order was broadcast to.
type CandidateDriver struct {
	DriverID      primitive.ObjectID `bson:"driverId" json:"driverId"`
	FullName      string             `bson:"fullName,omitempty" json:"fullName,omitempty"`
	VehicleType   string             `bson:"vehicleType,omitempty" json:"vehicleType,omitempty"`
	Distance      float64            `bson:"distance" json:"distance"` // meters from pickup
	Rating        float64            `bson:"rating" json:"rating"`
	PriorityScore float64            `bson:"priorityScore" json:"priorityScore"`
	NotifiedAt    *time.Time         `bson:"notifiedAt,omitempty" json:"notifiedAt,omitempty"`
	Response      string             `bson:"response" json:"response"`
}

// OrderAssignment is the broadcast record created when an order enters
// the broadcast phase.
type OrderAssignment struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderID            primitive.ObjectID  `bson:"orderId" json:"orderId"`
	AvailableDrivers   []CandidateDriver   `bson:"availableDrivers" json:"availableDrivers"`
	AssignmentStrategy string              `bson:"assignmentStrategy" json:"assignmentStrategy"`
	BroadcastRadius    float64             `bson:"broadcastRadius" json:"broadcastRadius"` // meters
	TimeoutDuration    int64               `bson:"timeoutDuration" json:"timeoutDuration"` // milliseconds
	ExpiresAt          time.Time           `bson:"expiresAt" json:"expiresAt"`
	Status             string              `bson:"status" json:"status"`
	AssignedDriverID   *primitive.ObjectID `bson:"assignedDriverId,omitempty" json:"assignedDriverId,omitempty"`
	CreatedBy          *primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt          time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time           `bson:"updatedAt" json:"updatedAt"`
}
