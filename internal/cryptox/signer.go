package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// TimestampLayout is the canonical createdAt rendering inside the signed
// string. Changing it invalidates every stored integrity hash.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Identity is the pair of logical-key fields bound to a ciphertext, e.g.
// (sessionID, questionID) for an answer.
type Identity struct {
	First  string
	Second string
}

// CanonicalTimestamp renders t in UTC with millisecond precision.
func CanonicalTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// CanonicalString builds "first:second:ciphertext:timestamp".
func CanonicalString(id Identity, ciphertext string, ts time.Time) string {
	return strings.Join([]string{id.First, id.Second, ciphertext, CanonicalTimestamp(ts)}, ":")
}

// Signer computes HMAC-SHA256 integrity hashes binding a record's identity
// and timestamp to its ciphertext. It is checked before any decryption.
type Signer struct{}

func NewSigner() *Signer { return &Signer{} }

// Sign returns the hex encoded HMAC of the canonical string.
func (s *Signer) Sign(key []byte, id Identity, ciphertext string, ts time.Time) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(CanonicalString(id, ciphertext, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the HMAC and compares it in constant time. A hash that
// is not valid hex never verifies.
func (s *Signer) Verify(key []byte, id Identity, ciphertext string, ts time.Time, hash string) bool {
	got, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(CanonicalString(id, ciphertext, ts)))
	return hmac.Equal(mac.Sum(nil), got)
}
