package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/client/custodian"
	"github.com/dmitrijs2005/saltkeeper/internal/client/repositories/responses"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/cryptox"
	"github.com/dmitrijs2005/saltkeeper/internal/keymaterial"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/records"
)

// SaltSize is the length of every per-record salt.
const SaltSize = 32

// Sealer writes and reads protected values. Safe for concurrent use.
type Sealer struct {
	keys      *keymaterial.Holder
	custodian custodian.Client
	repo      responses.Repository
	deriver   *cryptox.Deriver
	codec     *cryptox.Codec
	signer    *cryptox.Signer
	logger    logging.Logger

	expiryDays *int
	now        func() time.Time
	newSalt    func() []byte
}

type SealerOption func(*Sealer)

// WithSaltExpiry asks the custodian to expire new salts after days.
func WithSaltExpiry(days int) SealerOption {
	return func(s *Sealer) { s.expiryDays = &days }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SealerOption {
	return func(s *Sealer) { s.now = now }
}

func NewSealer(
	keys *keymaterial.Holder,
	client custodian.Client,
	repo responses.Repository,
	deriver *cryptox.Deriver,
	logger logging.Logger,
	opts ...SealerOption,
) *Sealer {
	s := &Sealer{
		keys:      keys,
		custodian: client,
		repo:      repo,
		deriver:   deriver,
		codec:     cryptox.NewCodec(nil),
		signer:    cryptox.NewSigner(),
		logger:    logger,
		now:       time.Now,
		newSalt:   func() []byte { return common.GenerateRandByteArray(SaltSize) },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sealer) key() (*keymaterial.KeyMaterial, error) {
	km := s.keys.Load()
	if km == nil {
		return nil, fmt.Errorf("local key is not loaded: %w", common.ErrorValidation)
	}
	return km, nil
}

// Seal encrypts plaintext under a fresh custodian salt and stores it under
// key, replacing any previous value. The replaced value's salt is discarded
// once the new row is saved.
func (s *Sealer) Seal(ctx context.Context, key records.LogicalKey, plaintext []byte) (*records.Stored, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	km, err := s.key()
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	stored, err := s.sealCurrent(ctx, km, key, plaintext, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Put(ctx, stored); err != nil {
		s.discardSalt(ctx, *stored.SaltRef)
		return nil, fmt.Errorf("save %s: %w", key, err)
	}

	if prev != nil && prev.SaltRef != nil && *prev.SaltRef != *stored.SaltRef {
		s.discardSalt(ctx, *prev.SaltRef)
	}

	s.logger.Debug(ctx, "value sealed", "key", key.String(), "salt_id", *stored.SaltRef)
	return stored, nil
}

// sealCurrent stores a new salt with the custodian and only then encrypts.
// The returned row is signed but not persisted.
func (s *Sealer) sealCurrent(ctx context.Context, km *keymaterial.KeyMaterial, key records.LogicalKey, plaintext []byte, createdAt time.Time) (*records.Stored, error) {
	salt := s.newSalt()
	defer common.WipeByteArray(salt)

	res, err := s.custodian.Store(ctx, salt, key.Namespace, s.expiryDays)
	if err != nil {
		return nil, fmt.Errorf("store salt for %s: %w", key, err)
	}

	derived, err := s.deriver.DeriveKey(ctx, km.Secret(), salt)
	if err != nil {
		s.discardSalt(ctx, res.SaltID)
		return nil, fmt.Errorf("derive key for %s: %w", key, err)
	}
	defer common.WipeByteArray(derived)

	sealed, err := s.codec.Encrypt(derived, plaintext)
	if err != nil {
		s.discardSalt(ctx, res.SaltID)
		return nil, fmt.Errorf("encrypt %s: %w", key, err)
	}

	saltRef := res.SaltID
	stored := records.NewStored(key, records.FormatCurrent, sealed, &saltRef, createdAt)
	stored.IntegrityHash = s.signer.Sign(km.IntegrityKey(), key.Identity(), stored.Ciphertext, stored.CreatedAt)
	return stored, nil
}

// discardSalt removes a salt no row will reference. Failures only leave an
// unused salt behind.
func (s *Sealer) discardSalt(ctx context.Context, id string) {
	if err := s.custodian.Delete(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Warn(ctx, "orphan salt left at custodian", "salt_id", id, "error", err)
	}
}

// Open returns the plaintext stored under key. Failures are classified by
// common.KindOf; end users should only ever see common.PublicMessage.
func (s *Sealer) Open(ctx context.Context, key records.LogicalKey) ([]byte, error) {
	km, err := s.key()
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, s.readFailed(ctx, key, fmt.Errorf("load %s: %w", key, err))
	}

	rec, err := records.Negotiate(stored)
	if err != nil {
		return nil, s.readFailed(ctx, key, err)
	}

	pt, err := s.openRecord(ctx, km, rec)
	if err != nil {
		return nil, s.readFailed(ctx, key, err)
	}
	return pt, nil
}

func (s *Sealer) readFailed(ctx context.Context, key records.LogicalKey, err error) error {
	kind := common.KindOf(err)
	switch kind {
	case common.KindAuthentication:
		s.logger.Error(ctx, "record failed authentication", "key", key.String(), "kind", kind.String())
	case common.KindNotFound:
		s.logger.Info(ctx, "record unreadable", "key", key.String(), "kind", kind.String())
	default:
		s.logger.Warn(ctx, "record read failed", "key", key.String(), "kind", kind.String(), "error", err)
	}
	return err
}

// openRecord verifies integrity before any key derivation or salt fetch.
func (s *Sealer) openRecord(ctx context.Context, km *keymaterial.KeyMaterial, rec records.Record) ([]byte, error) {
	raw := rec.Raw()
	env := rec.Decoded()

	var (
		derived []byte
		err     error
	)

	switch r := rec.(type) {
	case records.Legacy:
		if !s.signer.Verify(km.LegacyIntegrityKey(), raw.Key.Identity(), raw.Ciphertext, raw.CreatedAt, raw.IntegrityHash) {
			return nil, fmt.Errorf("integrity check %s: %w", raw.Key, common.ErrorAuthentication)
		}
		derived, err = s.deriver.DeriveLegacyKey(ctx, km.Secret())

	case records.Current:
		if !s.signer.Verify(km.IntegrityKey(), raw.Key.Identity(), raw.Ciphertext, raw.CreatedAt, raw.IntegrityHash) {
			return nil, fmt.Errorf("integrity check %s: %w", raw.Key, common.ErrorAuthentication)
		}
		var salt *custodian.Salt
		salt, err = s.custodian.Fetch(ctx, r.SaltRef)
		if err != nil {
			return nil, fmt.Errorf("fetch salt for %s: %w", raw.Key, err)
		}
		derived, err = s.deriver.DeriveKey(ctx, km.Secret(), salt.Value)
		common.WipeByteArray(salt.Value)

	default:
		return nil, fmt.Errorf("unsupported record %T: %w", rec, common.ErrorValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("derive key for %s: %w", raw.Key, err)
	}
	defer common.WipeByteArray(derived)

	pt, err := s.codec.Decrypt(derived, env.IV, env.Ciphertext, env.Tag)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", raw.Key, err)
	}
	return pt, nil
}

// Purge erases the value under key. The salt goes first: once it is gone
// the ciphertext is unreadable even if the row delete fails. A salt the
// custodian no longer knows counts as already shredded.
func (s *Sealer) Purge(ctx context.Context, key records.LogicalKey) error {
	stored, err := s.repo.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}

	if stored.SaltRef != nil {
		err := s.custodian.Delete(ctx, *stored.SaltRef)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrorNotFound):
			s.logger.Info(ctx, "salt already gone", "key", key.String(), "salt_id", *stored.SaltRef)
		default:
			return fmt.Errorf("delete salt for %s: %w", key, err)
		}
	}

	if err := s.repo.Delete(ctx, key); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.logger.Info(ctx, "value purged", "key", key.String())
	return nil
}
