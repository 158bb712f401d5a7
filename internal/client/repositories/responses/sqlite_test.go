package responses

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/saltkeeper/internal/client/config"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/records"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) (*SQLRepository, *sql.DB) {
	t.Helper()
	db, err := OpenSQL(context.Background(), DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db, DialectSQLite), db
}

func TestRunMigrations_Silent(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	db, err := OpenSQL(context.Background(), DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, RunMigrations(context.Background(), db, DialectSQLite))

	assert.Empty(t, buf.String())
}

func TestSQLite_PutGetOverwrite(t *testing.T) {
	r, _ := newSQLite(t)
	ctx := context.Background()
	k := key("s1", "q1")

	_, err := r.Get(ctx, k)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, r.Put(ctx, legacyRow(k, "h1")))
	got, err := r.Get(ctx, k)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(legacyRow(k, "h1"), got))

	// last writer wins
	next := currentRow(k, "h2", "salt-1")
	require.NoError(t, r.Put(ctx, next))
	got, err = r.Get(ctx, k)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(next, got))
}

func TestSQLite_PutRejectsInvalidKey(t *testing.T) {
	r, _ := newSQLite(t)
	err := r.Put(context.Background(), legacyRow(key("s:1", "q1"), "h"))
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestSQLite_SchemaRejectsInconsistentRow(t *testing.T) {
	r, _ := newSQLite(t)
	row := legacyRow(key("s1", "q1"), "h")
	ref := "salt"
	row.SaltRef = &ref

	assert.Error(t, r.Put(context.Background(), row))
}

func TestSQLite_Delete(t *testing.T) {
	r, _ := newSQLite(t)
	ctx := context.Background()
	k := key("s1", "q1")

	assert.ErrorIs(t, r.Delete(ctx, k), common.ErrorNotFound)
	require.NoError(t, r.Put(ctx, legacyRow(k, "h")))
	require.NoError(t, r.Delete(ctx, k))
	_, err := r.Get(ctx, k)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_ListLegacyPages(t *testing.T) {
	r, _ := newSQLite(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Put(ctx, legacyRow(key("s1", fmt.Sprintf("q%d", i)), "h")))
	}
	require.NoError(t, r.Put(ctx, currentRow(key("s1", "q9"), "h", "salt")))

	page, err := r.ListLegacy(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "q0", page[0].Key.Secondary)
	assert.Equal(t, "q1", page[1].Key.Secondary)

	page, err = r.ListLegacy(ctx, page[1].Key.ID(), 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "q4", page[2].Key.Secondary)

	n, err := r.CountLegacy(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestSQLite_ReplaceLegacy(t *testing.T) {
	r, _ := newSQLite(t)
	ctx := context.Background()
	k := key("s1", "q1")
	old := legacyRow(k, "h-old")
	require.NoError(t, r.Put(ctx, old))

	next := currentRow(k, "h-new", "salt-1")
	require.NoError(t, r.ReplaceLegacy(ctx, old, next))

	got, err := r.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, records.FormatCurrent, got.Format)
	assert.Equal(t, "salt-1", *got.SaltRef)

	migrated, err := r.CountMigrated(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, migrated)

	// already migrated: the swap loses
	assert.ErrorIs(t, r.ReplaceLegacy(ctx, old, currentRow(k, "h-3", "salt-2")), common.ErrVersionConflict)

	got, err = r.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, "salt-1", *got.SaltRef)
	migrated, err = r.CountMigrated(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, migrated)
}

func TestSQLite_ReplaceLegacy_ConcurrentRewrite(t *testing.T) {
	r, _ := newSQLite(t)
	ctx := context.Background()
	k := key("s1", "q1")
	old := legacyRow(k, "h-old")
	require.NoError(t, r.Put(ctx, old))

	// someone re-saved the legacy row meanwhile
	require.NoError(t, r.Put(ctx, legacyRow(k, "h-other")))

	err := r.ReplaceLegacy(ctx, old, currentRow(k, "h-new", "salt-1"))
	assert.ErrorIs(t, err, common.ErrVersionConflict)
}

func TestSQLite_ReplaceLegacy_Validation(t *testing.T) {
	r, _ := newSQLite(t)
	ctx := context.Background()

	err := r.ReplaceLegacy(ctx, legacyRow(key("a", "b"), "h"), currentRow(key("a", "c"), "h", "s"))
	assert.ErrorIs(t, err, common.ErrorValidation)

	next := currentRow(key("a", "b"), "h", "s")
	next.SaltRef = nil
	err = r.ReplaceLegacy(ctx, legacyRow(key("a", "b"), "h"), next)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestOpen_SQLiteFile(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabaseDSN = "file:" + filepath.Join(t.TempDir(), "nested", "dir", "responses.db")

	repo, closeFn, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, repo.Put(context.Background(), legacyRow(key("s1", "q1"), "h")))
	n, err := repo.CountLegacy(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := &config.Config{StoreBackend: "floppy"}
	_, _, err := Open(context.Background(), cfg)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestRunMigrations_UnknownDialect(t *testing.T) {
	assert.ErrorIs(t, RunMigrations(context.Background(), nil, "oracle"), common.ErrorValidation)
}
