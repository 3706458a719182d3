// Package orderstore reads and writes the orders collection. Every status
// write is conditional on the status the caller read.
package orderstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/paging"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the orders collection name.
const Collection = "orders"

// ErrStatusChanged means another writer moved the order first.
var ErrStatusChanged = apierr.State("order was modified by another request; reload and retry")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// GetByID loads an order. A missing order is NOT_FOUND.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var o models.Order
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, apierr.FromStore(err, "order")
	}
	return &o, nil
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Status   string
	Priority string
	ClientID *primitive.ObjectID
	DriverID *primitive.ObjectID
	Q        string // orderRef prefix, case-insensitive
}

func (f ListFilter) query() bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Priority != "" {
		q["priority"] = f.Priority
	}
	if f.ClientID != nil {
		q["clientId"] = *f.ClientID
	}
	if f.DriverID != nil {
		q["driverAssignment.driverId"] = *f.DriverID
	}
	if f.Q != "" {
		q["orderRef"] = bson.M{"$regex": "^" + regexp.QuoteMeta(strings.ToUpper(strings.TrimSpace(f.Q)))}
	}
	return q
}

// List returns one page of orders, newest first, with the total count.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Page) ([]models.Order, int64, error) {
	q := f.query()
	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	cur, err := s.c.Find(ctx, q, p.FindOptions(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var out []models.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Stats are order counts by status.
type Stats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

// Stats counts orders per status. Every known status is present, zero
// when absent.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return Stats{}, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		ID string `bson:"_id"`
		N  int64  `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return Stats{}, err
	}
	st := Stats{ByStatus: make(map[string]int64, len(models.OrderStatuses))}
	for _, v := range models.OrderStatuses {
		st.ByStatus[v] = 0
	}
	for _, r := range rows {
		st.ByStatus[r.ID] = r.N
		st.Total += r.N
	}
	return st, nil
}

// Transition describes one guarded status write.
type Transition struct {
	From  string
	To    string
	Entry models.TrackingEntry
	// Set and Unset carry extra field changes made in the same write.
	Set   bson.M
	Unset []string
	// Guard adds conditions to the filter beyond _id and status.
	Guard bson.M
}

// Apply performs t and returns the updated order. If the order no longer
// has status t.From (or fails t.Guard) nothing is written and
// ErrStatusChanged is returned; a missing order is NOT_FOUND.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, t Transition) (*models.Order, error) {
	filter := bson.M{"_id": id, "status": t.From}
	for k, v := range t.Guard {
		filter[k] = v
	}

	set := bson.M{"status": t.To, "updatedAt": t.Entry.Timestamp}
	for k, v := range t.Set {
		set[k] = v
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"orderTrackingHistory": t.Entry},
	}
	if len(t.Unset) > 0 {
		unset := bson.M{}
		for _, f := range t.Unset {
			unset[f] = ""
		}
		update["$unset"] = unset
	}

	var o models.Order
	err := s.c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStatusChanged
	}
	if err != nil {
		return nil, apierr.FromStore(err, "order")
	}
	return &o, nil
}

// Delete removes the order. Returns the number deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Insert stores a new order, filling id and timestamps. Used by seeding
// and tests; clients create orders through their own app.
func (s *Store) Insert(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, o); err != nil {
		return models.Order{}, apierr.FromStore(err, "order")
	}
	return o, nil
}
