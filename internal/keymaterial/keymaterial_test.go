package keymaterial

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestFromHex_OK(t *testing.T) {
	k, err := FromHex(testKeyHex)
	require.NoError(t, err)
	assert.Len(t, k.Secret(), KeySize)
	assert.Len(t, k.IntegrityKey(), KeySize)
	assert.Equal(t, byte(0x1f), k.Secret()[31])
}

func TestFromHex_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not hex", strings.Repeat("zz", 32)},
		{"too short", "0011"},
		{"too long", testKeyHex + "00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromHex(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrorValidation), "got %v", err)
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, KeySize)
	k, err := New(raw)
	require.NoError(t, err)
	raw[0] = 0
	assert.Equal(t, byte(7), k.Secret()[0])
}

func TestIntegrityKey_IsDistinctSubKey(t *testing.T) {
	k, err := FromHex(testKeyHex)
	require.NoError(t, err)
	assert.NotEqual(t, k.Secret(), k.IntegrityKey())
	assert.Equal(t, k.Secret(), k.LegacyIntegrityKey())

	k2, err := FromHex(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, k.IntegrityKey(), k2.IntegrityKey(), "derivation must be deterministic")
}

func TestKeyMaterial_NeverPrintsSecret(t *testing.T) {
	k, err := FromHex(testKeyHex)
	require.NoError(t, err)

	printed := fmt.Sprintf("%v %s", k, k)
	assert.NotContains(t, printed, testKeyHex)
	assert.Contains(t, printed, k.Fingerprint())

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("loaded", "key", k)
	assert.NotContains(t, buf.String(), testKeyHex)
	assert.Contains(t, buf.String(), k.Fingerprint())
}

func TestHolder_Rotate(t *testing.T) {
	a, err := FromHex(testKeyHex)
	require.NoError(t, err)
	b, err := New(bytes.Repeat([]byte{9}, KeySize))
	require.NoError(t, err)

	h := NewHolder(a)
	assert.Same(t, a, h.Load())

	prev := h.Rotate(b)
	assert.Same(t, a, prev)
	assert.Same(t, b, h.Load())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
