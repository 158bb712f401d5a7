// Package common defines shared constants and the closed error taxonomy used
// across the custodian and the primary-side tooling. Callers should use
// errors.Is on the sentinels or switch on KindOf.
package common

import "errors"

var (
	// ErrorValidation marks malformed input (missing salt, wrong key length).
	// Always local, never retried.
	ErrorValidation = errors.New("validation error")

	// ErrorAuthentication marks an AEAD tag or integrity hash mismatch.
	// The record is reported unreadable, never repaired.
	ErrorAuthentication = errors.New("authentication failed")

	// ErrorUnauthorized marks a bad or missing bearer credential.
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrorNotFound covers missing records, never-issued salts and expired salts alike.
	ErrorNotFound = errors.New("not found")

	// ErrorUnavailable marks a network failure or timeout reaching the custodian.
	// Retryable.
	ErrorUnavailable = errors.New("custodian unavailable")

	// Store plumbing.
	ErrorInternal      = errors.New("internal error")
	ErrVersionConflict = errors.New("version conflict")

	// Token lifecycle.
	ErrInvalidToken = errors.New("invalid token")
)

// Kind is the closed set of failure categories a caller has to handle.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindAuthentication
	KindUnauthorized
	KindNotFound
	KindUnavailable
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// KindOf classifies err. Anything outside the taxonomy is KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrorValidation):
		return KindValidation
	case errors.Is(err, ErrorAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrInvalidToken):
		return KindUnauthorized
	case errors.Is(err, ErrorNotFound):
		return KindNotFound
	case errors.Is(err, ErrorUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// PublicMessage is the only text an end consumer of decrypted data ever sees
// on a read failure. Operators get the kind from the logs.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	return "cannot retrieve this response"
}
