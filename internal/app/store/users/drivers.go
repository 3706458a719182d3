package userstore

import (
	"context"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/paging"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDocumentsNotApproved blocks approving a driver whose documents are
	// still pending or rejected.
	ErrDocumentsNotApproved = apierr.State("all driver documents must be approved first")
	// ErrDriverBusy is returned when the driver already carries an order.
	ErrDriverBusy = apierr.State("driver is already on an order")
	errNotDriver  = apierr.NotFound("driver")
)

// ListPendingVerifications returns drivers awaiting review, oldest
// submission first.
func (s *Store) ListPendingVerifications(ctx context.Context, p paging.Page) ([]models.User, int64, error) {
	q := bson.M{"role": models.RoleDriver, "verification.overallStatus": models.ReviewPending}
	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	opts := p.FindOptions(bson.D{{Key: "verification.submittedAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(listProjection)
	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetDriver loads a user that must have the driver role.
func (s *Store) GetDriver(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id, "role": models.RoleDriver},
		options.FindOne().SetProjection(bson.M{"passwordHash": 0, "sessionTokens": 0})).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errNotDriver
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ReviewDocument records an approve/reject decision on one document.
// A rejection also sends the overall status back to pending so the driver
// re-submits.
func (s *Store) ReviewDocument(ctx context.Context, driverID primitive.ObjectID, doc, decision, reason string, actor primitive.ObjectID, now time.Time) (*models.User, error) {
	prefix := "verification.documents." + doc + "."
	set := bson.M{
		prefix + "status":     decision,
		prefix + "reviewedAt": now.UTC(),
		prefix + "reviewedBy": actor,
		"updatedAt":           now.UTC(),
	}
	update := bson.M{"$set": set}
	if decision == models.ReviewRejected {
		set[prefix+"rejectionReason"] = reason
		set["verification.overallStatus"] = models.ReviewPending
	} else {
		update["$unset"] = bson.M{prefix + "rejectionReason": ""}
	}
	return s.updateDriver(ctx, bson.M{"_id": driverID, "role": models.RoleDriver}, update)
}

// ReviewVerification sets the driver's overall verification decision.
// Approval requires every document to be approved already.
func (s *Store) ReviewVerification(ctx context.Context, driverID primitive.ObjectID, decision, notes string, actor primitive.ObjectID, now time.Time) (*models.User, error) {
	filter := bson.M{"_id": driverID, "role": models.RoleDriver}
	if decision == models.ReviewApproved {
		for _, d := range models.RequiredDocuments {
			filter["verification.documents."+d+".status"] = models.ReviewApproved
		}
	}
	set := bson.M{
		"verification.overallStatus": decision,
		"verification.reviewedAt":    now.UTC(),
		"verification.reviewedBy":    actor,
		"updatedAt":                  now.UTC(),
	}
	if notes != "" {
		set["verification.notes"] = notes
	}
	u, err := s.updateDriver(ctx, filter, bson.M{"$set": set})
	if err == errNotDriver && decision == models.ReviewApproved {
		if _, getErr := s.GetDriver(ctx, driverID); getErr == nil {
			return nil, ErrDocumentsNotApproved
		}
	}
	return u, err
}

func (s *Store) updateDriver(ctx context.Context, filter, update bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"passwordHash": 0, "sessionTokens": 0})
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, errNotDriver
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AssignOrder marks the driver as carrying orderID. It fails with
// ErrDriverBusy when the driver already has an order.
func (s *Store) AssignOrder(ctx context.Context, driverID, orderID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": driverID, "role": models.RoleDriver, "currentOrderId": nil},
		bson.M{"$set": bson.M{"currentOrderId": orderID, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetDriver(ctx, driverID); err != nil {
			return err
		}
		return ErrDriverBusy
	}
	return nil
}

// ReleaseOrder clears currentOrderId if it still points at orderID.
func (s *Store) ReleaseOrder(ctx context.Context, driverID, orderID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": driverID, "currentOrderId": orderID},
		bson.M{
			"$unset": bson.M{"currentOrderId": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		})
	return err
}

// CountOnlineDrivers counts drivers currently online.
func (s *Store) CountOnlineDrivers(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role": models.RoleDriver, "isOnline": true})
}
