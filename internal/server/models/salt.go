// Package models defines the records the custodian persists.
package models

import "time"

// Salt is one custodian record. The custodian never learns which
// ciphertext a salt belongs to.
type Salt struct {
	ID          string
	Value       []byte
	Purpose     string
	CreatedAt   time.Time
	AccessedAt  *time.Time
	AccessCount int64
	ExpiresAt   *time.Time
}

// Expired reports whether s is past its expiry at now.
func (s *Salt) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
