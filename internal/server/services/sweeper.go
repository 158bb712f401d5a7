package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/logging"
)

// Cleaner is the part of SaltService the sweeper needs.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Sweeper runs CleanupExpired on a fixed interval until its context ends.
type Sweeper struct {
	cleaner  Cleaner
	interval time.Duration
	logger   logging.Logger
}

func NewSweeper(c Cleaner, interval time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{cleaner: c, interval: interval, logger: logger}
}

// Run sweeps once immediately, then every interval. A non-positive interval
// returns at once. Errors are logged, the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.cleaner.CleanupExpired(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error(ctx, "expiry sweep failed", "error", err)
	}
}
