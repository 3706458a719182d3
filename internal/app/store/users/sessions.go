package userstore

import (
	"context"
	"time"

	"github.com/dalemusser/fleetdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxSessionsPerUser caps sessionTokens; the oldest entries fall off.
const MaxSessionsPerUser = 20

// touchGap throttles lastActive writes to one per minute per token.
const touchGap = time.Minute

// AddSession appends a signed-in device to the user.
func (s *Store) AddSession(ctx context.Context, id primitive.ObjectID, tok models.SessionToken) error {
	now := time.Now().UTC()
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = now
	}
	if tok.LastActive.IsZero() {
		tok.LastActive = tok.CreatedAt
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"sessionTokens": bson.M{
			"$each":  bson.A{tok},
			"$slice": -MaxSessionsPerUser,
		}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListSessions returns the user's session tokens, oldest first.
func (s *Store) ListSessions(ctx context.Context, id primitive.ObjectID) ([]models.SessionToken, error) {
	var u models.User
	opts := options.FindOne().SetProjection(bson.M{"sessionTokens": 1})
	if err := s.c.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&u); err != nil {
		return nil, err
	}
	if u.SessionTokens == nil {
		return []models.SessionToken{}, nil
	}
	return u.SessionTokens, nil
}

// HasSession reports whether the user still holds token.
func (s *Store) HasSession(ctx context.Context, id primitive.ObjectID, token string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id, "sessionTokens.token": token})
	return n > 0, err
}

// TouchSession refreshes the token's lastActive, at most once per minute.
func (s *Store) TouchSession(ctx context.Context, id primitive.ObjectID, token string, now time.Time) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"sessionTokens": bson.M{"$elemMatch": bson.M{
				"token":      token,
				"lastActive": bson.M{"$lt": now.Add(-touchGap)},
			}},
		},
		bson.M{"$set": bson.M{"sessionTokens.$.lastActive": now.UTC()}},
	)
	return err
}

// RevokeSession removes one token. It reports whether the token existed;
// a missing user is mongo.ErrNoDocuments.
func (s *Store) RevokeSession(ctx context.Context, id primitive.ObjectID, token string) (bool, error) {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$pull": bson.M{"sessionTokens": bson.M{"token": token}}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, mongo.ErrNoDocuments
	}
	return res.ModifiedCount > 0, nil
}

// RevokeAllSessions empties the user's tokens and returns how many there were.
func (s *Store) RevokeAllSessions(ctx context.Context, id primitive.ObjectID) (int, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"sessionTokens": 1})
	var before models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"sessionTokens": bson.A{}}}, opts).Decode(&before)
	if err != nil {
		return 0, err
	}
	return len(before.SessionTokens), nil
}

// CleanupSessions removes, across all users, tokens idle since before
// now-olderThan. It returns the number of tokens removed.
func (s *Store) CleanupSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale := bson.M{"lastActive": bson.M{"$lt": cutoff}}

	count, err := s.countStaleTokens(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	_, err = s.c.UpdateMany(ctx,
		bson.M{"sessionTokens": bson.M{"$elemMatch": stale}},
		bson.M{"$pull": bson.M{"sessionTokens": stale}})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) countStaleTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"sessionTokens.lastActive": bson.M{"$lt": cutoff}}}},
		{{Key: "$unwind", Value: "$sessionTokens"}},
		{{Key: "$match", Value: bson.M{"sessionTokens.lastActive": bson.M{"$lt": cutoff}}}},
		{{Key: "$count", Value: "n"}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		N int64 `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].N, nil
}
