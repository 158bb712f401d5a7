package common

import (
	"crypto/rand"
)

// GenerateRandByteArray returns size bytes from crypto/rand. It panics if the
// system randomness source fails, which crypto/rand documents as fatal.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray zeroes a salt or derived key once it is no longer needed.
// Nil is a no-op.
func WipeByteArray(b []byte) {
	clear(b)
}
