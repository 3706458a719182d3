// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/fleetdesk/internal/app/system/dispatch"
	"github.com/dalemusser/fleetdesk/internal/app/system/metrics"
	"github.com/dalemusser/fleetdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/fleetdesk/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Services is filled by Startup and read by BuildHandler and
	// Shutdown. Hooks receive DBDeps by value, so it is a pointer.
	Services *Services
}

// Services are the long-lived components built at startup.
type Services struct {
	Metrics      *metrics.Metrics
	Notifier     dispatch.Notifier
	Dispatch     *dispatch.Service
	LoginLimiter *ratelimit.LoginLimiter

	sessionCleanup   *workers.SessionCleanup
	assignmentExpiry *workers.AssignmentExpiry
	closers          []func() error
}
