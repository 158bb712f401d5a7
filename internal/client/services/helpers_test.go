package services

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/client/custodian"
	"github.com/dmitrijs2005/saltkeeper/internal/client/repositories/responses"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/cryptox"
	"github.com/dmitrijs2005/saltkeeper/internal/keymaterial"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/records"
	"github.com/stretchr/testify/require"
)

// fakeCustodian keeps salts in memory and can be switched off.
type fakeCustodian struct {
	mu      sync.Mutex
	salts   map[string][]byte
	seq     int
	down    bool
	stores  int
	fetches int
	deletes int
}

func newFakeCustodian() *fakeCustodian {
	return &fakeCustodian{salts: map[string][]byte{}}
}

var errDown = fmt.Errorf("dial tcp: connection refused: %w", common.ErrorUnavailable)

func (f *fakeCustodian) Store(_ context.Context, salt []byte, _ string, _ *int) (*custodian.StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores++
	if f.down {
		return nil, errDown
	}
	f.seq++
	id := fmt.Sprintf("s_%d", f.seq)
	f.salts[id] = bytes.Clone(salt)
	return &custodian.StoreResult{SaltID: id}, nil
}

func (f *fakeCustodian) Fetch(_ context.Context, id string) (*custodian.Salt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.down {
		return nil, errDown
	}
	v, ok := f.salts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &custodian.Salt{Value: bytes.Clone(v), Purpose: common.PurposeAnswers}, nil
}

func (f *fakeCustodian) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.down {
		return errDown
	}
	if _, ok := f.salts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.salts, id)
	return nil
}

func (f *fakeCustodian) Cleanup(context.Context) (int64, error) { return 0, nil }

func (f *fakeCustodian) Stats(context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]int64{common.PurposeAnswers: int64(len(f.salts))}, nil
}

func (f *fakeCustodian) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errDown
	}
	return nil
}

func (f *fakeCustodian) Close() error { return nil }

func (f *fakeCustodian) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *fakeCustodian) saltCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.salts)
}

func (f *fakeCustodian) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fixture struct {
	keys      *keymaterial.Holder
	custodian *fakeCustodian
	repo      *responses.SQLRepository
	deriver   *cryptox.Deriver
	sealer    *Sealer
}

func testKey(t *testing.T, b byte) *keymaterial.KeyMaterial {
	t.Helper()
	km, err := keymaterial.New(bytes.Repeat([]byte{b}, keymaterial.KeySize))
	require.NoError(t, err)
	return km
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := responses.OpenSQL(context.Background(), responses.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		keys:      keymaterial.NewHolder(testKey(t, 0x4b)),
		custodian: newFakeCustodian(),
		repo:      responses.NewSQLRepository(db, responses.DialectSQLite),
		deriver:   cryptox.NewDeriver(cryptox.WithIterations(1000)),
	}
	f.sealer = NewSealer(f.keys, f.custodian, f.repo, f.deriver, logging.Discard())
	return f
}

// putLegacy writes a row the way the pre split-key code did.
func (f *fixture) putLegacy(t *testing.T, key records.LogicalKey, plaintext string) *records.Stored {
	t.Helper()
	km := f.keys.Load()

	k, err := f.deriver.DeriveLegacyKey(context.Background(), km.Secret())
	require.NoError(t, err)
	sealed, err := cryptox.NewCodec(nil).Encrypt(k, []byte(plaintext))
	require.NoError(t, err)

	s := records.NewStored(key, records.FormatLegacy, sealed, nil, time.Date(2023, 5, 1, 9, 0, 0, 0, time.UTC))
	s.IntegrityHash = cryptox.NewSigner().Sign(km.LegacyIntegrityKey(), key.Identity(), s.Ciphertext, s.CreatedAt)
	require.NoError(t, f.repo.Put(context.Background(), s))
	return s
}

func answerKey(session, question string) records.LogicalKey {
	return records.LogicalKey{Namespace: common.PurposeAnswers, Primary: session, Secondary: question}
}
