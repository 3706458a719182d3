// internal/app/features/orders/handler.go
package orders

import (
	"time"

	assignmentstore "github.com/dalemusser/fleetdesk/internal/app/store/assignments"
	orderstore "github.com/dalemusser/fleetdesk/internal/app/store/orders"
	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/auditlog"
	"github.com/dalemusser/fleetdesk/internal/app/system/dispatch"
	"github.com/dalemusser/fleetdesk/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the admin order console: review decisions, dispatch and
// the delivery status pipeline.
type Handler struct {
	Orders      *orderstore.Store
	Users       *userstore.Store
	Assignments *assignmentstore.Store
	Dispatch    *dispatch.Service
	Log         *zap.Logger
	AuditLog    *auditlog.Logger
	Metrics     *metrics.Metrics

	now func() time.Time
}

func NewHandler(db *mongo.Database, dispatcher *dispatch.Service, audit *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Orders:      orderstore.New(db),
		Users:       userstore.New(db),
		Assignments: assignmentstore.New(db),
		Dispatch:    dispatcher,
		Log:         logger,
		AuditLog:    audit,
		Metrics:     m,
		now:         time.Now,
	}
}
