package responses

import (
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/records"
)

var created = time.Date(2024, 3, 1, 12, 30, 0, 123_000_000, time.UTC)

func key(primary, secondary string) records.LogicalKey {
	return records.LogicalKey{Namespace: "answers", Primary: primary, Secondary: secondary}
}

func legacyRow(k records.LogicalKey, hash string) *records.Stored {
	return &records.Stored{
		Key:           k,
		Format:        records.FormatLegacy,
		Ciphertext:    "deadbeef",
		IV:            "000102030405060708090a0b",
		AuthTag:       "000102030405060708090a0b0c0d0e0f",
		IntegrityHash: hash,
		CreatedAt:     created,
	}
}

func currentRow(k records.LogicalKey, hash, saltRef string) *records.Stored {
	ref := saltRef
	return &records.Stored{
		Key:           k,
		Format:        records.FormatCurrent,
		Ciphertext:    "3q2+7w==",
		IV:            "AAECAwQFBgcICQoL",
		AuthTag:       "AAECAwQFBgcICQoLDA0ODw==",
		IntegrityHash: hash,
		SaltRef:       &ref,
		CreatedAt:     created,
	}
}
