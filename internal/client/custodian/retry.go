package custodian

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/sethvargo/go-retry"
)

// DefaultBackoffBase is the first retry delay; later ones double.
const DefaultBackoffBase = 200 * time.Millisecond

// Retrying wraps a Client and retries calls that failed with
// common.ErrorUnavailable, up to budget extra attempts with exponential
// backoff. Every other error is returned at once.
//
// Store is retried only when the custodian never saw the request. A lost
// response or a timeout may have left a salt stored, and a second attempt
// would orphan it.
type Retrying struct {
	inner  Client
	budget uint64
	base   time.Duration
	logger logging.Logger
}

// NewRetrying decorates inner. A non-positive base uses DefaultBackoffBase.
func NewRetrying(inner Client, budget int, base time.Duration, logger logging.Logger) *Retrying {
	if budget < 0 {
		budget = 0
	}
	if base <= 0 {
		base = DefaultBackoffBase
	}
	return &Retrying{inner: inner, budget: uint64(budget), base: base, logger: logger}
}

// storeRetryable reports whether a failed Store can be sent again.
func storeRetryable(err error) bool {
	return errors.Is(err, errNotDelivered)
}

func (r *Retrying) do(ctx context.Context, op string, retryable func(error) bool, f func(context.Context) error) error {
	b := retry.WithMaxRetries(r.budget, retry.NewExponential(r.base))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := f(ctx)
		if err != nil && retryable(err) {
			r.logger.Warn(ctx, "custodian call failed, will retry", "op", op, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *Retrying) Store(ctx context.Context, salt []byte, purpose string, expiresInDays *int) (*StoreResult, error) {
	var res *StoreResult
	err := r.do(ctx, "store", storeRetryable, func(ctx context.Context) error {
		var err error
		res, err = r.inner.Store(ctx, salt, purpose, expiresInDays)
		return err
	})
	return res, err
}

func (r *Retrying) Fetch(ctx context.Context, id string) (*Salt, error) {
	var res *Salt
	err := r.do(ctx, "fetch", common.Retryable, func(ctx context.Context) error {
		var err error
		res, err = r.inner.Fetch(ctx, id)
		return err
	})
	return res, err
}

func (r *Retrying) Delete(ctx context.Context, id string) error {
	return r.do(ctx, "delete", common.Retryable, func(ctx context.Context) error {
		return r.inner.Delete(ctx, id)
	})
}

func (r *Retrying) Cleanup(ctx context.Context) (int64, error) {
	var n int64
	err := r.do(ctx, "cleanup", common.Retryable, func(ctx context.Context) error {
		var err error
		n, err = r.inner.Cleanup(ctx)
		return err
	})
	return n, err
}

func (r *Retrying) Stats(ctx context.Context) (map[string]int64, error) {
	var res map[string]int64
	err := r.do(ctx, "stats", common.Retryable, func(ctx context.Context) error {
		var err error
		res, err = r.inner.Stats(ctx)
		return err
	})
	return res, err
}

// Health is not retried: the watcher counts individual failures.
func (r *Retrying) Health(ctx context.Context) error {
	return r.inner.Health(ctx)
}

func (r *Retrying) Close() error {
	return r.inner.Close()
}
