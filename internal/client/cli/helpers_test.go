package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/client/custodian"
	"github.com/dmitrijs2005/saltkeeper/internal/client/repositories/responses"
	"github.com/dmitrijs2005/saltkeeper/internal/client/services"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/cryptox"
	"github.com/dmitrijs2005/saltkeeper/internal/keymaterial"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type memCustodian struct {
	mu    sync.Mutex
	salts map[string][]byte
	seq   int
	down  bool
}

func (m *memCustodian) Store(_ context.Context, salt []byte, _ string, _ *int) (*custodian.StoreResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, common.ErrorUnavailable
	}
	m.seq++
	id := fmt.Sprintf("s_%d", m.seq)
	m.salts[id] = bytes.Clone(salt)
	return &custodian.StoreResult{SaltID: id}, nil
}

func (m *memCustodian) Fetch(_ context.Context, id string) (*custodian.Salt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, common.ErrorUnavailable
	}
	v, ok := m.salts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &custodian.Salt{Value: bytes.Clone(v)}, nil
}

func (m *memCustodian) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.salts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.salts, id)
	return nil
}

func (m *memCustodian) Cleanup(context.Context) (int64, error) { return 2, nil }

func (m *memCustodian) Stats(context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int64{common.PurposeSubscriberEmails: 1, common.PurposeAnswers: int64(len(m.salts))}, nil
}

func (m *memCustodian) Health(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return common.ErrorUnavailable
	}
	return nil
}

func (m *memCustodian) Close() error { return nil }

func (m *memCustodian) setDown(v bool) {
	m.mu.Lock()
	m.down = v
	m.mu.Unlock()
}

type testApp struct {
	*App
	custodian *memCustodian
	repo      *responses.SQLRepository
	out       *bytes.Buffer
}

// newTestApp wires an App over an in-memory store and custodian. input is
// what the app reads for prompts.
func newTestApp(t *testing.T, input string) *testApp {
	t.Helper()

	db, err := responses.OpenSQL(context.Background(), responses.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	km, err := keymaterial.FromHex(testKeyHex)
	require.NoError(t, err)

	keys := keymaterial.NewHolder(km)
	c := &memCustodian{salts: map[string][]byte{}}
	repo := responses.NewSQLRepository(db, responses.DialectSQLite)
	logger := logging.Discard()
	sealer := services.NewSealer(keys, c, repo, cryptox.NewDeriver(cryptox.WithIterations(1000)), logger)
	out := &bytes.Buffer{}

	app := NewApp(Deps{
		Keys:      keys,
		Sealer:    sealer,
		Migrator:  services.NewMigrator(sealer, repo, 10, logger),
		Custodian: c,
		Watcher:   services.NewHealthWatcher(c, time.Hour, 2, logger),
		Logger:    logger,
		In:        strings.NewReader(input),
		Out:       out,
	})
	return &testApp{App: app, custodian: c, repo: repo, out: out}
}
