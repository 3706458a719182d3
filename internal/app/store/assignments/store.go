// Package assignmentstore persists the broadcast records (order_assignments)
// created when an approved order is offered to nearby drivers.
package assignmentstore

import (
	"context"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the order_assignments collection name.
const Collection = "order_assignments"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Create inserts a, filling id and timestamps.
func (s *Store) Create(ctx context.Context, a models.OrderAssignment) (models.OrderAssignment, error) {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	if a.AvailableDrivers == nil {
		a.AvailableDrivers = []models.CandidateDriver{}
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.OrderAssignment{}, apierr.FromStore(err, "assignment")
	}
	return a, nil
}

// Delete removes one assignment. A missing id is not an error.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// LatestForOrder returns the most recent assignment for the order.
func (s *Store) LatestForOrder(ctx context.Context, orderID primitive.ObjectID) (*models.OrderAssignment, error) {
	var a models.OrderAssignment
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if err := s.c.FindOne(ctx, bson.M{"orderId": orderID}, opts).Decode(&a); err != nil {
		return nil, apierr.FromStore(err, "assignment")
	}
	return &a, nil
}

// CancelBroadcasting cancels any still-broadcasting assignment for the
// order and returns how many were cancelled.
func (s *Store) CancelBroadcasting(ctx context.Context, orderID primitive.ObjectID, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"orderId": orderID, "status": models.AssignmentBroadcasting},
		bson.M{"$set": bson.M{"status": models.AssignmentCancelled, "updatedAt": now.UTC()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// MarkAssigned closes the broadcasting assignment for the order with
// driverID as the winner. When the driver was a candidate their response
// is recorded as accepted. It reports whether a broadcasting assignment
// existed.
func (s *Store) MarkAssigned(ctx context.Context, orderID, driverID primitive.ObjectID, now time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"orderId": orderID, "status": models.AssignmentBroadcasting},
		bson.M{"$set": bson.M{
			"status":                         models.AssignmentAssigned,
			"assignedDriverId":               driverID,
			"updatedAt":                      now.UTC(),
			"availableDrivers.$[d].response": models.ResponseAccepted,
		}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []any{bson.M{"d.driverId": driverID}},
		}))
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// ExpireDue marks broadcasting assignments whose expiresAt has passed as
// expired and returns the affected order ids.
func (s *Store) ExpireDue(ctx context.Context, now time.Time) ([]primitive.ObjectID, error) {
	filter := bson.M{"status": models.AssignmentBroadcasting, "expiresAt": bson.M{"$lte": now.UTC()}}
	cur, err := s.c.Find(ctx, filter, options.Find().SetProjection(bson.M{"orderId": 1}))
	if err != nil {
		return nil, err
	}
	var due []models.OrderAssignment
	if err := cur.All(ctx, &due); err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(due))
	orderIDs := make([]primitive.ObjectID, 0, len(due))
	for _, a := range due {
		ids = append(ids, a.ID)
		orderIDs = append(orderIDs, a.OrderID)
	}
	_, err = s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": models.AssignmentBroadcasting},
		bson.M{"$set": bson.M{"status": models.AssignmentExpired, "updatedAt": now.UTC()}})
	if err != nil {
		return nil, err
	}
	return orderIDs, nil
}

// CountActive counts assignments still broadcasting.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"status": models.AssignmentBroadcasting})
}

// DeleteForOrder removes every assignment of the order.
func (s *Store) DeleteForOrder(ctx context.Context, orderID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"orderId": orderID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
