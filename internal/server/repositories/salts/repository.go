// Package salts persists custodian salt records.
package salts

import (
	"context"

	"github.com/dmitrijs2005/saltkeeper/internal/server/models"
)

// Repository is the custodian's storage contract. Implementations report a
// missing or expired salt on Fetch with the same common.ErrorNotFound.
type Repository interface {
	// Create inserts s and fills in CreatedAt.
	Create(ctx context.Context, s *models.Salt) (*models.Salt, error)
	// Fetch returns a live salt and records the access in the same step.
	Fetch(ctx context.Context, id string) (*models.Salt, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
	CountByPurpose(ctx context.Context) (map[string]int64, error)
	Ping(ctx context.Context) error
}
