// internal/app/features/status/handler.go
package status

import (
	"time"

	assignmentstore "github.com/dalemusser/fleetdesk/internal/app/store/assignments"
	"github.com/dalemusser/fleetdesk/internal/app/store/audit"
	orderstore "github.com/dalemusser/fleetdesk/internal/app/store/orders"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// AppConfig is the slice of application settings the diagnostics page
// reports on.
type AppConfig struct {
	MongoDatabase string
	NotifierKind  string
	Version       string
}

// Handler serves the system diagnostics report.
type Handler struct {
	Client      *mongo.Client
	DB          *mongo.Database
	Users       *userstore.Store
	Orders      *orderstore.Store
	Assignments *assignmentstore.Store
	Cfg         AppConfig
	Log         *zap.Logger

	started time.Time
}

// NewHandler builds a diagnostics Handler. Uptime is measured from here.
func NewHandler(client *mongo.Client, cfg AppConfig, logger *zap.Logger) *Handler {
	db := client.Database(cfg.MongoDatabase)
	return &Handler{
		Client:      client,
		DB:          db,
		Users:       userstore.New(db),
		Orders:      orderstore.New(db),
		Assignments: assignmentstore.New(db),
		Cfg:         cfg,
		Log:         logger,
		started:     time.Now(),
	}
}

// countedCollections are reported with estimated document counts.
var countedCollections = []string{
	userstore.Collection,
	orderstore.Collection,
	assignmentstore.Collection,
	audit.Collection,
}
