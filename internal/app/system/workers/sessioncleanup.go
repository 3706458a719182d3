// internal/app/system/workers/sessioncleanup.go
package workers

import (
	"context"
	"sync"
	"time"

	userstore "github.com/dalemusser/fleetdesk/internal/app/store/users"
	"github.com/dalemusser/fleetdesk/internal/app/system/metrics"
	"go.uber.org/zap"
)

// SessionCleaner removes session tokens idle for longer than a threshold.
type SessionCleaner interface {
	CleanupSessions(ctx context.Context, olderThan time.Duration) (int64, error)
}

var _ SessionCleaner = (*userstore.Store)(nil)

// SessionCleanup is a background worker that drops idle session tokens
// from users.sessionTokens.
type SessionCleanup struct {
	users             SessionCleaner
	log               *zap.Logger
	metrics           *metrics.Metrics
	interval          time.Duration
	inactiveThreshold time.Duration
	stopCh            chan struct{}
	wg                sync.WaitGroup
}

// NewSessionCleanup creates a new session cleanup worker.
//
// Parameters:
//   - users: the user store holding the session tokens
//   - logger: zap logger for logging
//   - m: metrics sink, may be nil
//   - interval: how often to run cleanup
//   - inactiveThreshold: how long a token must be idle before removal
func NewSessionCleanup(users SessionCleaner, logger *zap.Logger, m *metrics.Metrics, interval, inactiveThreshold time.Duration) *SessionCleanup {
	return &SessionCleanup{
		users:             users,
		log:               logger,
		metrics:           m,
		interval:          interval,
		inactiveThreshold: inactiveThreshold,
		stopCh:            make(chan struct{}),
	}
}

// Start begins the background cleanup loop.
func (w *SessionCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("session cleanup worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("inactive_threshold", w.inactiveThreshold))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *SessionCleanup) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("session cleanup worker stopped")
}

func (w *SessionCleanup) run() {
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

// RunOnce performs a single cleanup pass and returns the number of tokens removed.
func (w *SessionCleanup) RunOnce() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	count, err := w.users.CleanupSessions(ctx, w.inactiveThreshold)
	w.metrics.ObserveJob("session_cleanup", time.Since(start), err)
	if err != nil {
		w.log.Error("failed to clean up idle sessions", zap.Error(err))
		return 0
	}

	if count > 0 {
		w.metrics.SessionsRevoked(int(count))
		w.log.Info("removed idle session tokens", zap.Int64("count", count))
	}
	return count
}
