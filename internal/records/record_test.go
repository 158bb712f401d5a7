package records

import (
	"bytes"
	"testing"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/cryptox"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var answerKey = LogicalKey{Namespace: common.PurposeAnswers, Primary: "s1", Secondary: "q7"}

func sealedFixture() *cryptox.Sealed {
	return &cryptox.Sealed{
		IV:         bytes.Repeat([]byte{0x01}, cryptox.NonceSize),
		Ciphertext: []byte("ciphertext-bytes"),
		Tag:        bytes.Repeat([]byte{0x02}, cryptox.TagSize),
	}
}

func strPtr(s string) *string { return &s }

func TestLogicalKey_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     LogicalKey
		wantErr bool
	}{
		{"ok", answerKey, false},
		{"empty namespace", LogicalKey{"", "s", "q"}, true},
		{"empty primary", LogicalKey{"answers", "", "q"}, true},
		{"empty secondary", LogicalKey{"answers", "s", ""}, true},
		{"separator in primary", LogicalKey{"answers", "s:1", "q"}, true},
		{"slash in secondary", LogicalKey{"answers", "s", "q/1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrorValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLogicalKey_IDRoundTrip(t *testing.T) {
	assert.Equal(t, "answers/s1/q7", answerKey.ID())

	got, err := ParseID(answerKey.ID())
	require.NoError(t, err)
	assert.Equal(t, answerKey, got)

	_, err = ParseID("answers/s1")
	assert.ErrorIs(t, err, common.ErrorValidation)

	assert.Equal(t, cryptox.Identity{First: "s1", Second: "q7"}, answerKey.Identity())
}

func TestFormat_Encoding(t *testing.T) {
	b := []byte{0xde, 0xad, 0xbe, 0xef}

	assert.Equal(t, "deadbeef", FormatLegacy.Encode(b))
	assert.Equal(t, "3q2+7w==", FormatCurrent.Encode(b))

	got, err := FormatLegacy.Decode("deadbeef")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = FormatLegacy.Decode("3q2+7w==")
	assert.ErrorIs(t, err, common.ErrorAuthentication)

	_, err = FormatCurrent.Decode("not base64!")
	assert.ErrorIs(t, err, common.ErrorAuthentication)

	_, err = Format("v3").Decode("00")
	assert.ErrorIs(t, err, common.ErrorValidation)

	assert.True(t, FormatCurrent.Valid())
	assert.False(t, Format("").Valid())
}

func TestNewStored_TruncatesTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 123_456_789, time.FixedZone("X", 3600))
	s := NewStored(answerKey, FormatCurrent, sealedFixture(), strPtr("id-1"), ts)

	assert.Equal(t, time.UTC, s.CreatedAt.Location())
	assert.Equal(t, 123_000_000, s.CreatedAt.Nanosecond())
	assert.Equal(t, FormatCurrent.Encode([]byte("ciphertext-bytes")), s.Ciphertext)
	assert.Empty(t, s.IntegrityHash)
}

func TestNegotiate_Current(t *testing.T) {
	s := NewStored(answerKey, FormatCurrent, sealedFixture(), strPtr("salt-1"), time.Now())

	rec, err := Negotiate(s)
	require.NoError(t, err)

	cur, ok := rec.(Current)
	require.True(t, ok, "expected Current, got %T", rec)
	assert.Equal(t, "salt-1", cur.SaltRef)
	assert.Same(t, s, cur.Raw())

	want := Envelope{IV: sealedFixture().IV, Ciphertext: []byte("ciphertext-bytes"), Tag: sealedFixture().Tag}
	if diff := cmp.Diff(want, rec.Decoded()); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
}

func TestNegotiate_Legacy(t *testing.T) {
	s := NewStored(answerKey, FormatLegacy, sealedFixture(), nil, time.Now())

	rec, err := Negotiate(s)
	require.NoError(t, err)

	_, ok := rec.(Legacy)
	require.True(t, ok, "expected Legacy, got %T", rec)
	assert.Equal(t, []byte("ciphertext-bytes"), rec.Decoded().Ciphertext)
}

func TestNegotiate_Rejects(t *testing.T) {
	base := func(f Format, ref *string) *Stored {
		return NewStored(answerKey, f, sealedFixture(), ref, time.Now())
	}

	tests := []struct {
		name string
		rec  *Stored
		want error
	}{
		{"nil", nil, common.ErrorValidation},
		{"legacy with salt ref", base(FormatLegacy, strPtr("x")), common.ErrorValidation},
		{"current without salt ref", base(FormatCurrent, nil), common.ErrorValidation},
		{"current with empty salt ref", base(FormatCurrent, strPtr("")), common.ErrorValidation},
		{"untagged", base("", nil), common.ErrorValidation},
		{"bad key", func() *Stored { s := base(FormatCurrent, strPtr("x")); s.Key.Primary = ""; return s }(), common.ErrorValidation},
		{"hex tagged current", func() *Stored {
			s := base(FormatCurrent, strPtr("x"))
			s.IV = FormatLegacy.Encode(sealedFixture().IV)
			return s
		}(), common.ErrorAuthentication},
		{"short tag", func() *Stored {
			s := base(FormatCurrent, strPtr("x"))
			s.AuthTag = FormatCurrent.Encode([]byte{1, 2, 3})
			return s
		}(), common.ErrorAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Negotiate(tt.rec)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, rec)
		})
	}
}
