// internal/app/system/workers/assignmentexpiry.go
package workers

import (
	"context"
	"sync"
	"time"

	assignmentstore "github.com/dalemusser/fleetdesk/internal/app/store/assignments"
	"github.com/dalemusser/fleetdesk/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AssignmentExpirer marks broadcasting assignments past expiresAt as expired.
type AssignmentExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) ([]primitive.ObjectID, error)
}

var _ AssignmentExpirer = (*assignmentstore.Store)(nil)

// AssignmentExpiry is a background worker that times out broadcasts nobody
// accepted. The order itself stays in broadcast so an admin can reverse the
// decision or assign a driver manually.
type AssignmentExpiry struct {
	assignments AssignmentExpirer
	log         *zap.Logger
	metrics     *metrics.Metrics
	interval    time.Duration
	now         func() time.Time
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewAssignmentExpiry creates a new expiry worker.
func NewAssignmentExpiry(assignments AssignmentExpirer, logger *zap.Logger, m *metrics.Metrics, interval time.Duration) *AssignmentExpiry {
	return &AssignmentExpiry{
		assignments: assignments,
		log:         logger,
		metrics:     m,
		interval:    interval,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background expiry loop.
func (w *AssignmentExpiry) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("assignment expiry worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *AssignmentExpiry) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("assignment expiry worker stopped")
}

func (w *AssignmentExpiry) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce expires due assignments and returns the affected order ids.
func (w *AssignmentExpiry) RunOnce() []primitive.ObjectID {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	orders, err := w.assignments.ExpireDue(ctx, w.now())
	w.metrics.ObserveJob("assignment_expiry", time.Since(start), err)
	if err != nil {
		w.log.Error("failed to expire assignments", zap.Error(err))
		return nil
	}

	if len(orders) > 0 {
		w.metrics.AssignmentsExpired(len(orders))
		ids := make([]string, len(orders))
		for i, id := range orders {
			ids[i] = id.Hex()
		}
		w.log.Info("expired broadcast assignments",
			zap.Int("count", len(orders)),
			zap.Strings("order_ids", ids))
	}
	return orders
}
