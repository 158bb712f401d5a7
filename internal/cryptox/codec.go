// Package cryptox implements the cryptographic core of saltkeeper: the
// AES-256-GCM field codec, the HMAC integrity signer and the split-key
// deriver that stretches the local key with a per-record salt.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is the GCM nonce (IV) length.
	NonceSize = 12
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// DefaultAAD scopes every ciphertext to this application. A ciphertext
// lifted into another system using the same key will not open there.
var DefaultAAD = []byte("saltkeeper:survey-responses:v1")

// Sealed is the output of one encryption: nonce, ciphertext and tag kept
// apart so each can be stored in its own column.
type Sealed struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// Codec encrypts and decrypts single fields with AES-256-GCM, binding a
// fixed AAD into every operation.
type Codec struct {
	aad []byte
}

// NewCodec returns a codec bound to aad. A nil aad means DefaultAAD.
func NewCodec(aad []byte) *Codec {
	if aad == nil {
		aad = DefaultAAD
	}
	c := make([]byte, len(aad))
	copy(c, aad)
	return &Codec{aad: c}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aead key must be %d bytes, got %d: %w", KeySize, len(key), common.ErrorValidation)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under key with a fresh random nonce.
func (c *Codec) Encrypt(key, plaintext []byte) (*Sealed, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	out := aead.Seal(nil, nonce, plaintext, c.aad)
	split := len(out) - TagSize

	return &Sealed{
		IV:         nonce,
		Ciphertext: out[:split:split],
		Tag:        out[split:],
	}, nil
}

// Decrypt authenticates and opens a sealed field. Every failure other than
// a malformed key is reported as common.ErrorAuthentication; no partial
// plaintext is ever returned.
func (c *Codec) Decrypt(key, iv, ciphertext, tag []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != NonceSize {
		return nil, fmt.Errorf("iv length %d: %w", len(iv), common.ErrorAuthentication)
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("tag length %d: %w", len(tag), common.ErrorAuthentication)
	}

	buf := make([]byte, 0, len(ciphertext)+TagSize)
	buf = append(buf, ciphertext...)
	buf = append(buf, tag...)

	plaintext, err := aead.Open(nil, iv, buf, c.aad)
	if err != nil {
		return nil, fmt.Errorf("aead open: %w", common.ErrorAuthentication)
	}
	return plaintext, nil
}
