package responses

import (
	"context"

	"github.com/dmitrijs2005/saltkeeper/internal/records"
)

// Repository persists sealed records keyed by records.LogicalKey.
type Repository interface {
	// Put inserts or overwrites the row for s.Key. Last writer wins.
	Put(ctx context.Context, s *records.Stored) error

	// Get returns common.ErrorNotFound when no row exists.
	Get(ctx context.Context, key records.LogicalKey) (*records.Stored, error)

	// Delete returns common.ErrorNotFound when no row exists.
	Delete(ctx context.Context, key records.LogicalKey) error

	// ListLegacy returns up to limit legacy rows whose ID sorts after the
	// given cursor, in ID order. An empty cursor starts from the beginning.
	ListLegacy(ctx context.Context, after string, limit int) ([]*records.Stored, error)

	// ReplaceLegacy swaps old for next only if the stored row is still the
	// legacy row old describes (same integrity hash). Otherwise it returns
	// common.ErrVersionConflict and leaves the row untouched.
	ReplaceLegacy(ctx context.Context, old, next *records.Stored) error

	// CountLegacy reports how many legacy rows remain.
	CountLegacy(ctx context.Context) (int64, error)
}
