// Package keymaterial loads and guards the local symmetric key, the half of
// the split key that lives next to the ciphertext.
//
// A KeyMaterial is read-only after construction. It never prints its secret:
// String and LogValue return a short fingerprint instead, so accidentally
// passing one to a logger is harmless.
package keymaterial

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the only accepted local key length (AES-256).
const KeySize = 32

const integrityInfo = "saltkeeper/integrity/v1"

type KeyMaterial struct {
	secret       []byte
	integrityKey []byte
	fingerprint  string
}

// New validates raw key bytes and derives the integrity sub-key.
// The input slice is copied.
func New(key []byte) (*KeyMaterial, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("local key must be %d bytes, got %d: %w", KeySize, len(key), common.ErrorValidation)
	}

	secret := make([]byte, KeySize)
	copy(secret, key)

	integrityKey := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(integrityInfo)), integrityKey); err != nil {
		return nil, fmt.Errorf("derive integrity key: %w", err)
	}

	sum := sha256.Sum256(secret)

	return &KeyMaterial{
		secret:       secret,
		integrityKey: integrityKey,
		fingerprint:  hex.EncodeToString(sum[:4]),
	}, nil
}

// FromHex parses a 64 character hex key, as found in configuration.
func FromHex(s string) (*KeyMaterial, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("local key is empty: %w", common.ErrorValidation)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("local key is not valid hex: %w", common.ErrorValidation)
	}
	defer common.WipeByteArray(raw)
	return New(raw)
}

// Secret is the password-equivalent input to key stretching.
// Callers must not modify the returned slice.
func (k *KeyMaterial) Secret() []byte { return k.secret }

// IntegrityKey keys the HMAC of current-format records.
func (k *KeyMaterial) IntegrityKey() []byte { return k.integrityKey }

// LegacyIntegrityKey keys the HMAC of legacy records, which were signed with
// the raw local key.
func (k *KeyMaterial) LegacyIntegrityKey() []byte { return k.secret }

// Fingerprint identifies the key in logs without revealing it.
func (k *KeyMaterial) Fingerprint() string { return k.fingerprint }

func (k *KeyMaterial) String() string {
	return "KeyMaterial(" + k.fingerprint + ")"
}

func (k *KeyMaterial) LogValue() slog.Value {
	return slog.StringValue(k.String())
}

// Holder publishes the current key to concurrent readers and lets an
// operator swap it without restarting the process.
type Holder struct {
	p atomic.Pointer[KeyMaterial]
}

func NewHolder(k *KeyMaterial) *Holder {
	h := &Holder{}
	h.p.Store(k)
	return h
}

// Load returns the current key, or nil if none was ever stored.
func (h *Holder) Load() *KeyMaterial { return h.p.Load() }

// Rotate installs k and returns the previous key.
func (h *Holder) Rotate(k *KeyMaterial) *KeyMaterial { return h.p.Swap(k) }
