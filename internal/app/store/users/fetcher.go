package userstore

import (
	"context"
	"time"

	"github.com/dalemusser/fleetdesk/internal/app/system/auth"
	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Fetcher implements auth.UserFetcher. It reloads the user on every
// request so status changes and revoked tokens apply immediately.
type Fetcher struct {
	users *Store
	log   *zap.Logger
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database, logger *zap.Logger) *Fetcher {
	return &Fetcher{users: New(db), log: logger}
}

// FetchSessionUser returns the signed-in admin, or nil when the user is
// gone, not an Active admin, or no longer holds token.
func (f *Fetcher) FetchSessionUser(ctx context.Context, id primitive.ObjectID, token string) (*auth.SessionUser, error) {
	if token == "" {
		return nil, nil
	}
	var u models.User
	proj := options.FindOne().SetProjection(bson.M{
		"_id":       1,
		"fullName":  1,
		"email":     1,
		"role":      1,
		"adminRole": 1,
		"status":    1,
	})
	err := f.users.c.FindOne(ctx, bson.M{"_id": id, "sessionTokens.token": token}, proj).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if u.Status != models.StatusActive || u.Role != models.RoleAdmin {
		return nil, nil
	}

	if err := f.users.TouchSession(ctx, id, token, time.Now()); err != nil && f.log != nil {
		f.log.Warn("touch session failed", zap.Error(err), zap.String("user_id", id.Hex()))
	}

	return &auth.SessionUser{
		ID:        u.ID.Hex(),
		Name:      u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		AdminRole: u.AdminRole,
		Token:     token,
	}, nil
}
