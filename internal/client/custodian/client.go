package custodian

import (
	"context"
	"errors"
	"time"
)

// errNotDelivered marks a failure the custodian provably never acted on:
// the connection was never made or the request was turned away before
// reaching a handler. Only such failures make a retried Store safe.
var errNotDelivered = errors.New("request not delivered")

// StoreResult is what the custodian hands back for a new salt.
type StoreResult struct {
	SaltID    string
	ExpiresAt *time.Time
}

// Salt is a fetched salt with its audit fields.
type Salt struct {
	Value       []byte
	Purpose     string
	CreatedAt   time.Time
	AccessCount int64
}

// Client talks to the salt custodian. Implementations are safe for
// concurrent use.
type Client interface {
	Store(ctx context.Context, salt []byte, purpose string, expiresInDays *int) (*StoreResult, error)
	Fetch(ctx context.Context, id string) (*Salt, error)
	Delete(ctx context.Context, id string) error
	Cleanup(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (map[string]int64, error)
	Health(ctx context.Context) error
	Close() error
}

// withTimeout bounds a single call. A zero timeout leaves ctx alone.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
