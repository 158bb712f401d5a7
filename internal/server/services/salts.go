package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/cryptox"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/server/config"
	"github.com/dmitrijs2005/saltkeeper/internal/server/models"
	"github.com/dmitrijs2005/saltkeeper/internal/server/repositories/salts"
	"github.com/google/uuid"
)

// maxExpiryDays bounds expiresInDays so expiry arithmetic cannot overflow.
const maxExpiryDays = 365 * 100

// SaltService implements the custodian operations. It never sees ciphertext.
type SaltService struct {
	repo              salts.Repository
	logger            logging.Logger
	maxSaltBytes      int
	defaultExpiryDays int
	now               func() time.Time
	newID             func() string
}

func NewSaltService(repo salts.Repository, logger logging.Logger, cfg *config.Config) *SaltService {
	return &SaltService{
		repo:              repo,
		logger:            logger,
		maxSaltBytes:      cfg.MaxSaltBytes,
		defaultExpiryDays: cfg.DefaultExpiryDays,
		now:               time.Now,
		newID:             uuid.NewString,
	}
}

// Store persists salt under a fresh unguessable id. expiresInDays overrides
// the configured default; nil means use the default, 0 means never expire.
func (s *SaltService) Store(ctx context.Context, salt []byte, purpose string, expiresInDays *int) (*models.Salt, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("salt is required: %w", common.ErrorValidation)
	}
	if len(salt) < cryptox.MinSaltSize {
		return nil, fmt.Errorf("salt must be at least %d bytes: %w", cryptox.MinSaltSize, common.ErrorValidation)
	}
	if s.maxSaltBytes > 0 && len(salt) > s.maxSaltBytes {
		return nil, fmt.Errorf("salt exceeds %d bytes: %w", s.maxSaltBytes, common.ErrorValidation)
	}
	if purpose == "" {
		return nil, fmt.Errorf("purpose is required: %w", common.ErrorValidation)
	}

	days := s.defaultExpiryDays
	if expiresInDays != nil {
		days = *expiresInDays
	}
	if days < 0 || days > maxExpiryDays {
		return nil, fmt.Errorf("expiresInDays out of range: %w", common.ErrorValidation)
	}

	rec := &models.Salt{
		ID:      s.newID(),
		Value:   append([]byte(nil), salt...),
		Purpose: purpose,
	}
	if days > 0 {
		exp := s.now().UTC().Add(time.Duration(days) * 24 * time.Hour)
		rec.ExpiresAt = &exp
	}

	out, err := s.repo.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("storing salt: %w", err)
	}

	s.logger.Info(ctx, "salt stored", "salt_id", out.ID, "purpose", purpose, "expires", out.ExpiresAt != nil)
	return out, nil
}

// Fetch returns a live salt and counts the access. Unknown, malformed and
// expired ids all yield common.ErrorNotFound.
func (s *SaltService) Fetch(ctx context.Context, id string) (*models.Salt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	out, err := s.repo.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "salt not found", "salt_id", id)
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("fetching salt: %w", err)
	}
	return out, nil
}

// Delete removes a salt permanently. Every record sealed with it becomes
// undecryptable.
func (s *SaltService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("deleting salt: %w", err)
	}

	s.logger.Info(ctx, "salt deleted", "salt_id", id)
	return nil
}

// CleanupExpired removes every expired salt and returns how many went.
func (s *SaltService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	if n > 0 {
		s.logger.Info(ctx, "expired salts removed", "count", n)
	}
	return n, nil
}

// Stats counts live salts per purpose.
func (s *SaltService) Stats(ctx context.Context) (map[string]int64, error) {
	out, err := s.repo.CountByPurpose(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return out, nil
}

// Ping checks storage connectivity for the health probe.
func (s *SaltService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
