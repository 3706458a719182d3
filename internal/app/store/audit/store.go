// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the audit_events collection name.
const Collection = "audit_events"

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLoginFailedNotAdmin      = "login_failed_not_admin"
	EventLogout                   = "logout"
)

// Admin event types
const (
	EventUserCreated         = "user_created"
	EventUserUpdated         = "user_updated"
	EventUserStatusChanged   = "user_status_changed"
	EventUserDeleted         = "user_deleted"
	EventUserSessionsRevoked = "user_sessions_revoked"
	EventSessionsCleaned     = "sessions_cleaned"
	EventDriverDocReviewed   = "driver_document_reviewed"
	EventDriverVerified      = "driver_verification_reviewed"
	EventOrderApproved       = "order_approved"
	EventOrderRejected       = "order_rejected"
	EventOrderReversed       = "order_decision_reversed"
	EventOrderBroadcast      = "order_broadcast"
	EventOrderAssigned       = "order_assigned"
	EventOrderCancelled      = "order_cancelled"
	EventOrderStatusUpdated  = "order_status_updated"
	EventOrderDeleted        = "order_deleted"
)

// FailedLoginEvents are the event types counted as failed sign-ins.
var FailedLoginEvents = []string{
	EventLoginFailedUserNotFound,
	EventLoginFailedWrongPassword,
	EventLoginFailedUserDisabled,
	EventLoginFailedNotAdmin,
}

// Event is one audit record.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`

	Category  string `bson:"category" json:"category"`
	EventType string `bson:"eventType" json:"eventType"`

	UserID  *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`   // affected user
	ActorID *primitive.ObjectID `bson:"actorId,omitempty" json:"actorId,omitempty"` // admin who acted
	OrderID *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`

	IP        string `bson:"ip" json:"ip"`
	UserAgent string `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	RequestID string `bson:"requestId,omitempty" json:"requestId,omitempty"`

	Success       bool   `bson:"success" json:"success"`
	FailureReason string `bson:"failureReason,omitempty" json:"failureReason,omitempty"`

	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	UserID    *primitive.ObjectID
	ActorID   *primitive.ObjectID
	OrderID   *primitive.ObjectID
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

func (f QueryFilter) query() bson.M {
	q := bson.M{}
	if f.UserID != nil {
		q["userId"] = *f.UserID
	}
	if f.ActorID != nil {
		q["actorId"] = *f.ActorID
	}
	if f.OrderID != nil {
		q["orderId"] = *f.OrderID
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.EventType != "" {
		q["eventType"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		tq := bson.M{}
		if f.StartTime != nil {
			tq["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			tq["$lte"] = *f.EndTime
		}
		q["timestamp"] = tq
	}
	return q
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query retrieves audit events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}

// GetByUser retrieves recent audit events for a specific user.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{UserID: &userID, Limit: limit})
}

// GetByOrder retrieves recent audit events for an order.
func (s *Store) GetByOrder(ctx context.Context, orderID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{OrderID: &orderID, Limit: limit})
}

// GetRecent retrieves the most recent audit events.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{Limit: limit})
}

// CountFailedLogins counts failed sign-ins since the given time.
func (s *Store) CountFailedLogins(ctx context.Context, since time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"category":  CategoryAuth,
		"success":   false,
		"eventType": bson.M{"$in": FailedLoginEvents},
		"timestamp": bson.M{"$gte": since},
	})
}
