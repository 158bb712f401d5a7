package records

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/cryptox"
)

// Stored is the row as the primary store keeps it. Binary fields are kept
// encoded; IntegrityHash signs the encoded Ciphertext.
type Stored struct {
	Key           LogicalKey
	Format        Format
	Ciphertext    string
	IV            string
	AuthTag       string
	IntegrityHash string
	SaltRef       *string
	CreatedAt     time.Time
}

// Timestamp normalizes t to the precision the integrity hash covers, so a
// value round-tripped through any backend signs the same.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Envelope holds the decoded AEAD triple.
type Envelope struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// Record is either Legacy or Current.
type Record interface {
	Raw() *Stored
	Decoded() Envelope
	isRecord()
}

// Legacy predates split keys: static salt, no remote call.
type Legacy struct {
	Stored   *Stored
	Envelope Envelope
}

// Current needs the custodian salt named by SaltRef.
type Current struct {
	Stored   *Stored
	Envelope Envelope
	SaltRef  string
}

func (r Legacy) Raw() *Stored       { return r.Stored }
func (r Legacy) Decoded() Envelope  { return r.Envelope }
func (Legacy) isRecord()            {}
func (r Current) Raw() *Stored      { return r.Stored }
func (r Current) Decoded() Envelope { return r.Envelope }
func (Current) isRecord()           {}

// Negotiate picks the variant for s from its format tag and checks that
// saltRef agrees with it. Format is never inferred from field encodings:
// hex is a subset of the base64 alphabet.
func Negotiate(s *Stored) (Record, error) {
	if s == nil {
		return nil, fmt.Errorf("nil record: %w", common.ErrorValidation)
	}
	if err := s.Key.Validate(); err != nil {
		return nil, err
	}

	switch s.Format {
	case FormatLegacy:
		if s.SaltRef != nil {
			return nil, fmt.Errorf("legacy record %s carries a salt reference: %w", s.Key, common.ErrorValidation)
		}
		env, err := decodeEnvelope(s)
		if err != nil {
			return nil, err
		}
		return Legacy{Stored: s, Envelope: env}, nil

	case FormatCurrent:
		if s.SaltRef == nil || *s.SaltRef == "" {
			return nil, fmt.Errorf("current record %s has no salt reference: %w", s.Key, common.ErrorValidation)
		}
		env, err := decodeEnvelope(s)
		if err != nil {
			return nil, err
		}
		return Current{Stored: s, Envelope: env, SaltRef: *s.SaltRef}, nil

	default:
		return nil, fmt.Errorf("record %s has unknown format %q: %w", s.Key, s.Format, common.ErrorValidation)
	}
}

func decodeEnvelope(s *Stored) (Envelope, error) {
	iv, err := s.Format.Decode(s.IV)
	if err != nil {
		return Envelope{}, err
	}
	ct, err := s.Format.Decode(s.Ciphertext)
	if err != nil {
		return Envelope{}, err
	}
	tag, err := s.Format.Decode(s.AuthTag)
	if err != nil {
		return Envelope{}, err
	}
	if len(iv) != cryptox.NonceSize || len(tag) != cryptox.TagSize {
		return Envelope{}, fmt.Errorf("record %s has a malformed envelope: %w", s.Key, common.ErrorAuthentication)
	}
	return Envelope{IV: iv, Ciphertext: ct, Tag: tag}, nil
}

// NewStored encodes a sealed value for format f. Callers sign the result.
func NewStored(key LogicalKey, f Format, sealed *cryptox.Sealed, saltRef *string, createdAt time.Time) *Stored {
	return &Stored{
		Key:        key,
		Format:     f,
		Ciphertext: f.Encode(sealed.Ciphertext),
		IV:         f.Encode(sealed.IV),
		AuthTag:    f.Encode(sealed.Tag),
		SaltRef:    saltRef,
		CreatedAt:  Timestamp(createdAt),
	}
}
