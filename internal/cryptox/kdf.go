package cryptox

import (
	"context"
	"crypto/sha256"
	"fmt"
	"runtime"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultIterations is the PBKDF2-SHA256 work factor for current records.
	DefaultIterations = 600_000
	// MinSaltSize is the shortest salt accepted for current records.
	MinSaltSize = 16
)

// LegacySalt is the static salt every pre-split-key record was written
// with. All legacy records therefore share a single derived key. It stays
// for reading old data only and must never be used for a new write.
var LegacySalt = []byte("salt")

// scrypt parameters of the legacy writer.
const (
	legacyN = 1 << 14
	legacyR = 8
	legacyP = 1
)

// Deriver turns the local secret plus a salt into a record key. Derivation
// is CPU bound by design, so it runs under a weighted semaphore that caps
// how many stretches execute at once.
type Deriver struct {
	iterations int
	sem        *semaphore.Weighted
}

type DeriverOption func(*Deriver)

// WithIterations overrides the PBKDF2 work factor. Tests use small values.
func WithIterations(n int) DeriverOption {
	return func(d *Deriver) {
		if n > 0 {
			d.iterations = n
		}
	}
}

// WithWorkers caps concurrent derivations. Defaults to GOMAXPROCS.
func WithWorkers(n int) DeriverOption {
	return func(d *Deriver) {
		if n > 0 {
			d.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func NewDeriver(opts ...DeriverOption) *Deriver {
	d := &Deriver{
		iterations: DefaultIterations,
		sem:        semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Deriver) Iterations() int { return d.iterations }

// DeriveKey stretches secret with salt into a 256-bit record key.
func (d *Deriver) DeriveKey(ctx context.Context, secret, salt []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("empty local key: %w", common.ErrorValidation)
	}
	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("salt must be at least %d bytes, got %d: %w", MinSaltSize, len(salt), common.ErrorValidation)
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for key derivation slot: %w", err)
	}
	defer d.sem.Release(1)

	return pbkdf2Key(secret, salt, d.iterations), nil
}

// DeriveLegacyKey reproduces the key of the static-salt format.
func (d *Deriver) DeriveLegacyKey(ctx context.Context, secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("empty local key: %w", common.ErrorValidation)
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for key derivation slot: %w", err)
	}
	defer d.sem.Release(1)

	key, err := scrypt.Key(secret, LegacySalt, legacyN, legacyR, legacyP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("legacy key derivation: %w", err)
	}
	return key, nil
}

func pbkdf2Key(secret, salt []byte, iterations int) []byte {
	return pbkdf2.Key(secret, salt, iterations, KeySize, sha256.New)
}
