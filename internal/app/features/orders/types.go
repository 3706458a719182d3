// internal/app/features/orders/types.go
package orders

import (
	"github.com/dalemusser/fleetdesk/internal/app/system/dispatch"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Decision labels for metrics and adminReview.decision.
const (
	decisionApproved  = "approved"
	decisionRejected  = "rejected"
	decisionReversed  = "reversed"
	decisionAssigned  = "assigned"
	decisionCancelled = "cancelled"
)

type approveRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type assignRequest struct {
	DriverID string `json:"driverId" validate:"required,len=24,hexadecimal"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}

// broadcastResult reports the dispatch half of an approval. Error is set
// when the order was approved but could not be broadcast; it can be
// retried with POST /orders/{id}/broadcast.
type broadcastResult struct {
	Assignment *models.OrderAssignment `json:"assignment,omitempty"`
	Candidates int                     `json:"candidates"`
	Error      string                  `json:"error,omitempty"`
}

type decisionResponse struct {
	Order     *models.Order    `json:"order"`
	Broadcast *broadcastResult `json:"broadcast,omitempty"`
}

type candidateView struct {
	DriverID       primitive.ObjectID `json:"driverId"`
	FullName       string             `json:"fullName"`
	VehicleType    string             `json:"vehicleType"`
	Rating         float64            `json:"rating"`
	CompletionRate float64            `json:"completionRate"`
	Distance       float64            `json:"distance"`
	PriorityScore  float64            `json:"priorityScore"`
}

type eligibleResponse struct {
	OrderID    string          `json:"orderId"`
	Radius     float64         `json:"radius"`
	Count      int             `json:"count"`
	Candidates []candidateView `json:"candidates"`
}

func candidateViews(cs []dispatch.Candidate) []candidateView {
	out := make([]candidateView, len(cs))
	for i, c := range cs {
		out[i] = candidateView{
			DriverID:       c.DriverID,
			FullName:       c.FullName,
			VehicleType:    c.VehicleType,
			Rating:         c.Rating,
			CompletionRate: c.CompletionRate,
			Distance:       c.Distance,
			PriorityScore:  c.PriorityScore,
		}
	}
	return out
}

// dedicatedEndpoints maps statuses that PATCH /orders/{id}/status refuses
// to the endpoint that performs them with their side effects.
var dedicatedEndpoints = map[string]string{
	models.OrderAdminApproved: "POST /orders/{id}/approve",
	models.OrderAdminRejected: "POST /orders/{id}/reject",
	models.OrderAdminReview:   "POST /orders/{id}/reverse",
	models.OrderBroadcast:     "POST /orders/{id}/broadcast",
	models.OrderAssigned:      "POST /orders/{id}/assign",
	models.OrderCancelled:     "POST /orders/{id}/cancel",
}

// releasesDriver are statuses after which the driver is free again.
var releasesDriver = map[string]bool{
	models.OrderDelivered: true,
	models.OrderFailed:    true,
	models.OrderReturned:  true,
	models.OrderCancelled: true,
}
