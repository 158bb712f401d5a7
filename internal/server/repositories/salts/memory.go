package salts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/server/models"
)

// MemoryRepository keeps salts in process memory. Used with the "memory"
// DSN and in tests.
type MemoryRepository struct {
	mu    sync.Mutex
	salts map[string]*models.Salt
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{salts: map[string]*models.Salt{}, now: time.Now}
}

// NewMemoryRepositoryWithClock is NewMemoryRepository with a fake clock.
func NewMemoryRepositoryWithClock(now func() time.Time) *MemoryRepository {
	r := NewMemoryRepository()
	r.now = now
	return r
}

func clone(s *models.Salt) *models.Salt {
	c := *s
	c.Value = append([]byte(nil), s.Value...)
	if s.AccessedAt != nil {
		t := *s.AccessedAt
		c.AccessedAt = &t
	}
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func (r *MemoryRepository) Create(_ context.Context, s *models.Salt) (*models.Salt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.salts[s.ID]; ok {
		return nil, fmt.Errorf("db error: duplicate salt id")
	}
	s.CreatedAt = r.now().UTC()
	r.salts[s.ID] = clone(s)
	return s, nil
}

func (r *MemoryRepository) Fetch(_ context.Context, id string) (*models.Salt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	s, ok := r.salts[id]
	if !ok || s.Expired(now) {
		return nil, common.ErrorNotFound
	}
	s.AccessCount++
	s.AccessedAt = &now
	return clone(s), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.salts[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.salts, id)
	if s.Expired(r.now().UTC()) {
		return common.ErrorNotFound
	}
	return nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var n int64
	for id, s := range r.salts {
		if s.Expired(now) {
			delete(r.salts, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountByPurpose(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := map[string]int64{}
	for _, s := range r.salts {
		if !s.Expired(now) {
			out[s.Purpose]++
		}
	}
	return out, nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }
