// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// spec is one desired index. Names are part of the contract: an index
// with the right keys under another name, or with the wrong uniqueness,
// is dropped and rebuilt.
type spec struct {
	name   string
	keys   bson.D
	unique bool
}

type collectionSpecs struct {
	collection string
	indexes    []spec
}

func asc(fields ...string) bson.D {
	d := make(bson.D, len(fields))
	for i, f := range fields {
		d[i] = bson.E{Key: f, Value: 1}
	}
	return d
}

var schema = []collectionSpecs{
	{"users", []spec{
		// emails are stored normalized, so uniqueness is case-insensitive
		{name: "uniq_users_email", keys: asc("email"), unique: true},
		{name: "idx_users_role_status_fullnameci_id", keys: asc("role", "status", "fullNameCI", "_id")},
		{name: "geo_users_currentlocation", keys: bson.D{{Key: "currentLocation", Value: "2dsphere"}}},
		{name: "idx_users_session_token", keys: asc("sessionTokens.token")},
		{name: "idx_users_session_lastactive", keys: asc("sessionTokens.lastActive")},
		// pending verification queue
		{name: "idx_users_role_verification_created", keys: asc("role", "verification.overallStatus", "createdAt")},
	}},
	{"orders", []spec{
		{name: "uniq_orders_orderref", keys: asc("orderRef"), unique: true},
		{name: "idx_orders_status_created", keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{name: "idx_orders_created_id", keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{name: "idx_orders_client_created", keys: bson.D{{Key: "clientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{name: "idx_orders_driver", keys: asc("driverAssignment.driverId")},
	}},
	{"order_assignments", []spec{
		{name: "idx_assignments_order_created", keys: bson.D{{Key: "orderId", Value: 1}, {Key: "createdAt", Value: -1}}},
		// expiry worker scans broadcasting rows past expiresAt
		{name: "idx_assignments_status_expires", keys: asc("status", "expiresAt")},
	}},
	{"audit_events", []spec{
		{name: "idx_audit_timestamp", keys: bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}},
		{name: "idx_audit_user_timestamp", keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
		{name: "idx_audit_actor_timestamp", keys: bson.D{{Key: "actorId", Value: 1}, {Key: "timestamp", Value: -1}}},
		{name: "idx_audit_order_timestamp", keys: bson.D{{Key: "orderId", Value: 1}, {Key: "timestamp", Value: -1}}},
		{name: "idx_audit_category_type_timestamp", keys: bson.D{
			{Key: "category", Value: 1}, {Key: "eventType", Value: 1}, {Key: "timestamp", Value: -1},
		}},
	}},
}

/*
EnsureAll is called from the EnsureSchema hook and by tests that need the
2dsphere index. It is idempotent. Errors from every collection are joined so
startup reports all of them at once.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, cs := range schema {
		if err := ensureCollection(ctx, db.Collection(cs.collection), cs.indexes); err != nil {
			problems = append(problems, cs.collection+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique,omitempty"`
}

// keySig renders a key pattern so server ints (int32) and Go ints compare equal.
func keySig(keys bson.D) string {
	parts := make([]string, len(keys))
	for i, kv := range keys {
		parts[i] = fmt.Sprintf("%s:%v", kv.Key, kv.Value)
	}
	return strings.Join(parts, ",")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	var all []existingIndex
	if err := cur.All(ctx, &all); err != nil {
		return nil, err
	}
	bySig := make(map[string]existingIndex, len(all))
	for _, idx := range all {
		bySig[keySig(idx.Key)] = idx
	}
	return bySig, nil
}

func ensureCollection(ctx context.Context, coll *mongo.Collection, want []spec) error {
	existing, err := listIndexes(ctx, coll)
	if err != nil {
		// A collection that does not exist yet has no indexes to reconcile.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, s := range want {
		start := time.Now()
		sig := keySig(s.keys)
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", s.name),
			zap.String("keys", sig))

		if ex, ok := existing[sig]; ok {
			if ex.Name == s.name && ex.Unique == s.unique {
				continue
			}
			log.Info("replacing index",
				zap.String("existing", ex.Name),
				zap.Bool("was_unique", ex.Unique),
				zap.Bool("unique", s.unique))
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s: drop %s: %v", s.name, ex.Name, err))
				continue
			}
		}

		opts := options.Index().SetName(s.name)
		if s.unique {
			opts.SetUnique(true)
		}
		if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: s.keys, Options: opts}); err != nil {
			if s.unique && mongo.IsDuplicateKeyError(err) {
				errs = append(errs, fmt.Sprintf("%s: cannot create unique index, duplicate %s values present", s.name, s.keys[0].Key))
			} else {
				errs = append(errs, fmt.Sprintf("%s: %v", s.name, err))
			}
			log.Warn("index ensure failed", zap.Error(err))
			continue
		}
		log.Info("index created", zap.Bool("unique", s.unique), zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
