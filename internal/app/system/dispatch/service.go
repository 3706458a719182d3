package dispatch

import (
	"context"
	"time"

	assignmentstore "github.com/dalemusser/fleetdesk/internal/app/store/assignments"
	orderstore "github.com/dalemusser/fleetdesk/internal/app/store/orders"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/metrics"
	"github.com/dalemusser/fleetdesk/internal/app/system/orderflow"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ResponseTimeout is how long drivers have to answer a broadcast.
const ResponseTimeout = 15 * time.Minute

// Service finds eligible drivers and broadcasts approved orders to them.
type Service struct {
	users       *mongo.Collection
	orders      *orderstore.Store
	assignments *assignmentstore.Store
	notifier    Notifier
	metrics     *metrics.Metrics
	log         *zap.Logger
	now         func() time.Time
}

// NewService wires a Service over db. A nil notifier logs notifications.
func NewService(db *mongo.Database, notifier Notifier, m *metrics.Metrics, log *zap.Logger) *Service {
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	return &Service{
		users:       db.Collection(userstore.Collection),
		orders:      orderstore.New(db),
		assignments: assignmentstore.New(db),
		notifier:    notifier,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

// NotifierKind names the configured notifier ("log" or "redis").
func (s *Service) NotifierKind() string { return s.notifier.Kind() }

// FindEligibleDrivers returns the ranked drivers within the order's
// broadcast radius of its pickup point, and the radius used.
func (s *Service) FindEligibleDrivers(ctx context.Context, o models.Order) ([]Candidate, float64, error) {
	radius := BroadcastRadius(o)
	cur, err := s.users.Aggregate(ctx, NearbyPipeline(o.Location.PickUp.Coordinates, radius, o.VehicleRequirements))
	if err != nil {
		return nil, radius, apierr.Wrap(apierr.CodeInternal, err, "driver search failed")
	}
	var cs []Candidate
	if err := cur.All(ctx, &cs); err != nil {
		return nil, radius, apierr.Wrap(apierr.CodeInternal, err, "driver search failed")
	}
	return Rank(cs), radius, nil
}

// Broadcast records the OrderAssignment with the ranked candidates, moves
// the admin_approved order to broadcast and notifies each candidate.
// Notification failures are logged and never fail the broadcast.
func (s *Service) Broadcast(ctx context.Context, o models.Order, actor primitive.ObjectID) (*models.Order, *models.OrderAssignment, error) {
	if err := orderflow.CheckTransition(o.Status, models.OrderBroadcast); err != nil {
		return nil, nil, err
	}

	cs, radius, err := s.FindEligibleDrivers(ctx, o)
	if err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	drivers := make([]models.CandidateDriver, len(cs))
	for i, c := range cs {
		drivers[i] = models.CandidateDriver{
			DriverID:      c.DriverID,
			FullName:      c.FullName,
			VehicleType:   c.VehicleType,
			Distance:      c.Distance,
			Rating:        c.Rating,
			PriorityScore: c.PriorityScore,
			NotifiedAt:    &now,
			Response:      models.ResponsePending,
		}
	}
	a := models.OrderAssignment{
		OrderID:            o.ID,
		AvailableDrivers:   drivers,
		AssignmentStrategy: models.StrategyPriorityBroadcast,
		BroadcastRadius:    radius,
		TimeoutDuration:    ResponseTimeout.Milliseconds(),
		ExpiresAt:          now.Add(ResponseTimeout),
		Status:             models.AssignmentBroadcasting,
		CreatedAt:          now,
	}
	if !actor.IsZero() {
		a.CreatedBy = &actor
	}

	// Assignment first: an order only reaches broadcast with its
	// assignment stored. A lost status write removes it again.
	created, err := s.assignments.Create(ctx, a)
	if err != nil {
		return nil, nil, err
	}

	desc := "Broadcast to nearby drivers"
	if len(cs) == 0 {
		desc = "Broadcast found no eligible drivers"
	}
	updated, err := s.orders.Apply(ctx, o.ID, orderstore.Transition{
		From:  o.Status,
		To:    models.OrderBroadcast,
		Entry: orderflow.Entry(models.OrderBroadcast, desc, "", actor, now),
	})
	if err != nil {
		if delErr := s.assignments.Delete(context.WithoutCancel(ctx), created.ID); delErr != nil {
			s.log.Error("remove assignment after failed broadcast",
				zap.String("order_id", o.ID.Hex()),
				zap.String("assignment_id", created.ID.Hex()),
				zap.Error(delErr))
		}
		return nil, nil, err
	}

	s.metrics.BroadcastCandidates(len(cs))
	s.log.Info("order broadcast",
		zap.String("order_id", o.ID.Hex()),
		zap.Float64("radius_m", radius),
		zap.Int("candidates", len(cs)))

	s.notifyAll(ctx, *updated, created)
	return updated, &created, nil
}

func (s *Service) notifyAll(ctx context.Context, o models.Order, a models.OrderAssignment) {
	failed := 0
	for _, d := range a.AvailableDrivers {
		err := s.notifier.Notify(ctx, Notification{
			OrderID:       o.ID.Hex(),
			OrderRef:      o.OrderRef,
			DriverID:      d.DriverID.Hex(),
			Distance:      d.Distance,
			PriorityScore: d.PriorityScore,
			PickupAddress: o.Location.PickUp.Address,
			ExpiresAt:     a.ExpiresAt,
		})
		if err != nil {
			failed++
			s.log.Warn("driver notification failed",
				zap.String("order_id", o.ID.Hex()),
				zap.String("driver_id", d.DriverID.Hex()),
				zap.String("notifier", s.notifier.Kind()),
				zap.Error(err))
		}
	}
	if failed > 0 {
		s.log.Warn("some driver notifications failed",
			zap.String("order_id", o.ID.Hex()),
			zap.Int("failed", failed),
			zap.Int("total", len(a.AvailableDrivers)))
	}
}
