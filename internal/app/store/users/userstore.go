package userstore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/apierr"
	"github.com/dalemusser/fleetdesk/internal/app/system/normalize"
	"github.com/dalemusser/fleetdesk/internal/app/system/paging"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the users collection name.
const Collection = "users"

var (
	// ErrDuplicateEmail is returned when the email already belongs to another user.
	ErrDuplicateEmail = apierr.Conflict("User already exists")
	errBadRole        = apierr.Validation(`role must be "admin"|"driver"|"client"`)
	errBadStatus      = apierr.Validation("status is not a valid account status")
)

// listProjection keeps credentials and device tokens out of list results.
var listProjection = bson.M{"passwordHash": 0, "sessionTokens": 0}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing & validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.Phone = normalize.Phone(u.Phone)
	u.Role = normalize.Token(u.Role)
	u.Status = normalize.UserStatus(u.Status)
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	if !models.IsValidRole(u.Role) {
		return models.User{}, errBadRole
	}
	if !models.IsValidUserStatus(u.Status) {
		return models.User{}, errBadStatus
	}
	if u.Role != models.RoleAdmin {
		u.AdminRole = ""
	} else if u.AdminRole == "" {
		u.AdminRole = models.AdminRoleSupport
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Role   string
	Status string
	Q      string // prefix of name or email, case/diacritic-insensitive
}

func (f ListFilter) query() bson.M {
	q := bson.M{}
	if f.Role != "" {
		q["role"] = normalize.Token(f.Role)
	}
	if f.Status != "" {
		q["status"] = normalize.UserStatus(f.Status)
	}
	if f.Q != "" {
		prefix := "^" + regexp.QuoteMeta(text.Fold(f.Q))
		q["$or"] = bson.A{
			bson.M{"fullNameCI": bson.M{"$regex": prefix}},
			bson.M{"email": bson.M{"$regex": "^" + regexp.QuoteMeta(normalize.Email(f.Q))}},
		}
	}
	return q
}

// List returns one page of users, newest first, and the total matching count.
func (s *Store) List(ctx context.Context, f ListFilter, p paging.Page) ([]models.User, int64, error) {
	q := f.query()
	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	opts := p.FindOptions(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
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

// Patch holds the editable profile fields. Nil fields are left unchanged.
type Patch struct {
	FullName  *string
	Email     *string
	Phone     *string
	AdminRole *string
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.FullName == nil && p.Email == nil && p.Phone == nil && p.AdminRole == nil
}

// Update applies p and returns the updated user.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.FullName != nil {
		name := normalize.Name(*p.FullName)
		set["fullName"] = name
		set["fullNameCI"] = text.Fold(name)
	}
	if p.Email != nil {
		set["email"] = normalize.Email(*p.Email)
	}
	if p.Phone != nil {
		set["phone"] = normalize.Phone(*p.Phone)
	}
	if p.AdminRole != nil {
		set["adminRole"] = normalize.Token(*p.AdminRole)
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"passwordHash": 0})
	var u models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &u, nil
}

// SetPassword stores a new password hash.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"passwordHash": hash, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Promote makes an existing user a superadmin and reactivates it.
func (s *Store) Promote(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"role":      models.RoleAdmin,
		"adminRole": models.AdminRoleSuper,
		"status":    models.StatusActive,
		"updatedAt": time.Now().UTC(),
	}})
	return err
}

// SetStatus changes the account status. When revoke is true every session
// token is dropped in the same write. It returns the number of tokens
// revoked.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status, reason string, revoke bool) (int, error) {
	status = normalize.UserStatus(status)
	if !models.IsValidUserStatus(status) {
		return 0, errBadStatus
	}
	set := bson.M{"status": status, "updatedAt": time.Now().UTC()}
	update := bson.M{"$set": set}
	if reason != "" {
		set["statusReason"] = reason
	} else {
		update["$unset"] = bson.M{"statusReason": ""}
	}
	if revoke {
		set["sessionTokens"] = bson.A{}
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"sessionTokens": 1})
	var before models.User
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&before); err != nil {
		return 0, err
	}
	if !revoke {
		return 0, nil
	}
	return len(before.SessionTokens), nil
}

// Delete removes the user document. Returns the number deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Stats are account counts for the admin dashboard.
type Stats struct {
	Total                      int64            `json:"total"`
	ByRole                     map[string]int64 `json:"byRole"`
	ByStatus                   map[string]int64 `json:"byStatus"`
	OnlineDrivers              int64            `json:"onlineDrivers"`
	PendingDriverVerifications int64            `json:"pendingDriverVerifications"`
}

// Stats counts users by role and status in one aggregation.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.D{
			{Key: "byRole", Value: bson.A{bson.D{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$role"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}}}},
			{Key: "byStatus", Value: bson.A{bson.D{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}}}},
			{Key: "online", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.M{"role": models.RoleDriver, "isOnline": true}}},
				bson.D{{Key: "$count", Value: "n"}},
			}},
			{Key: "pending", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.M{"role": models.RoleDriver, "verification.overallStatus": models.ReviewPending}}},
				bson.D{{Key: "$count", Value: "n"}},
			}},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, err
	}
	defer cur.Close(ctx)

	type bucket struct {
		ID string `bson:"_id"`
		N  int64  `bson:"n"`
	}
	var rows []struct {
		ByRole   []bucket `bson:"byRole"`
		ByStatus []bucket `bson:"byStatus"`
		Online   []bucket `bson:"online"`
		Pending  []bucket `bson:"pending"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return Stats{}, err
	}

	st := Stats{ByRole: map[string]int64{}, ByStatus: map[string]int64{}}
	for _, r := range []string{models.RoleAdmin, models.RoleDriver, models.RoleClient} {
		st.ByRole[r] = 0
	}
	for _, v := range models.UserStatuses {
		st.ByStatus[v] = 0
	}
	if len(rows) == 0 {
		return st, nil
	}
	for _, b := range rows[0].ByRole {
		st.ByRole[b.ID] = b.N
		st.Total += b.N
	}
	for _, b := range rows[0].ByStatus {
		st.ByStatus[b.ID] = b.N
	}
	if len(rows[0].Online) > 0 {
		st.OnlineDrivers = rows[0].Online[0].N
	}
	if len(rows[0].Pending) > 0 {
		st.PendingDriverVerifications = rows[0].Pending[0].N
	}
	return st, nil
}

// IsNotFound reports whether err means the user does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// GetNames maps each of ids that exists to the user's full name.
func (s *Store) GetNames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"fullName": 1})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u struct {
			ID       primitive.ObjectID `bson:"_id"`
			FullName string             `bson:"fullName"`
		}
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u.FullName
	}
	return out, cur.Err()
}
