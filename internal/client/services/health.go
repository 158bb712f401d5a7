package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/logging"
)

// HealthChecker is the part of custodian.Client the watcher needs.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthStatus is a snapshot of the watcher state.
type HealthStatus struct {
	LastCheck           time.Time
	LastError           error
	ConsecutiveFailures int
	Alerting            bool
}

// HealthWatcher probes the custodian periodically and raises an alert after
// threshold consecutive failures. The alert is logged once per outage, and
// recovery is logged when a probe succeeds again.
type HealthWatcher struct {
	checker   HealthChecker
	interval  time.Duration
	threshold int
	logger    logging.Logger
	now       func() time.Time

	mu     sync.Mutex
	status HealthStatus
}

func NewHealthWatcher(checker HealthChecker, interval time.Duration, threshold int, logger logging.Logger) *HealthWatcher {
	if threshold <= 0 {
		threshold = 1
	}
	return &HealthWatcher{
		checker:   checker,
		interval:  interval,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Check runs one probe and updates the status.
func (w *HealthWatcher) Check(ctx context.Context) error {
	err := w.checker.Health(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.status.LastCheck = w.now()
	w.status.LastError = err

	if err == nil {
		if w.status.Alerting {
			w.logger.Info(ctx, "custodian recovered", "failures", w.status.ConsecutiveFailures)
		}
		w.status.ConsecutiveFailures = 0
		w.status.Alerting = false
		return nil
	}

	w.status.ConsecutiveFailures++
	w.logger.Warn(ctx, "custodian health check failed", "failures", w.status.ConsecutiveFailures, "error", err)
	if !w.status.Alerting && w.status.ConsecutiveFailures >= w.threshold {
		w.status.Alerting = true
		w.logger.Error(ctx, "ALERT: custodian unreachable", "failures", w.status.ConsecutiveFailures, "error", err)
	}
	return err
}

// Status returns the latest snapshot.
func (w *HealthWatcher) Status() HealthStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Run probes immediately and then every interval until ctx ends.
func (w *HealthWatcher) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	_ = w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = w.Check(ctx)
		}
	}
}
