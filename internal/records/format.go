package records

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
)

// Format is the explicit version tag stored with every row.
type Format string

const (
	// FormatLegacy rows use the static salt and hex encoded fields.
	FormatLegacy Format = "legacy"
	// FormatCurrent rows use a per-record custodian salt and base64 fields.
	FormatCurrent Format = "current"
)

func (f Format) Valid() bool {
	return f == FormatLegacy || f == FormatCurrent
}

// Encode renders binary envelope fields the way f stores them.
func (f Format) Encode(b []byte) string {
	if f == FormatLegacy {
		return hex.EncodeToString(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}

// Decode is the inverse of Encode. Undecodable data means the row was
// altered, so it is reported as an authentication failure.
func (f Format) Decode(s string) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	switch f {
	case FormatLegacy:
		b, err = hex.DecodeString(s)
	case FormatCurrent:
		b, err = base64.StdEncoding.DecodeString(s)
	default:
		return nil, fmt.Errorf("unknown format %q: %w", f, common.ErrorValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s field: %w", f, common.ErrorAuthentication)
	}
	return b, nil
}
