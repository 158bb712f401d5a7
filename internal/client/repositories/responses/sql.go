package responses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/dbx"
	"github.com/dmitrijs2005/saltkeeper/internal/records"
)

// Dialect selects placeholder style and the goose migration set.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLRepository implements Repository over database/sql. Queries are written
// with '?' placeholders and rebound for PostgreSQL.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, now: time.Now}
}

const columns = `record_id, namespace, primary_id, secondary_id, format_version,
	ciphertext, iv, auth_tag, integrity_hash, salt_ref, created_at_ms`

func (r *SQLRepository) q(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	return rebind(query)
}

// rebind turns '?' placeholders into $1, $2, ...
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStored(row scanner) (*records.Stored, error) {
	var (
		s       records.Stored
		id      string
		format  string
		saltRef sql.NullString
		created int64
	)
	err := row.Scan(&id, &s.Key.Namespace, &s.Key.Primary, &s.Key.Secondary, &format,
		&s.Ciphertext, &s.IV, &s.AuthTag, &s.IntegrityHash, &saltRef, &created)
	if err != nil {
		return nil, err
	}
	s.Format = records.Format(format)
	if saltRef.Valid {
		ref := saltRef.String
		s.SaltRef = &ref
	}
	s.CreatedAt = time.UnixMilli(created).UTC()
	return &s, nil
}

func saltRefArg(s *records.Stored) any {
	if s.SaltRef == nil {
		return nil
	}
	return *s.SaltRef
}

func (r *SQLRepository) Put(ctx context.Context, s *records.Stored) error {
	if err := s.Key.Validate(); err != nil {
		return err
	}
	query := `INSERT INTO responses (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (record_id) DO UPDATE SET
			format_version = excluded.format_version,
			ciphertext = excluded.ciphertext,
			iv = excluded.iv,
			auth_tag = excluded.auth_tag,
			integrity_hash = excluded.integrity_hash,
			salt_ref = excluded.salt_ref,
			created_at_ms = excluded.created_at_ms`

	_, err := r.db.ExecContext(ctx, r.q(query),
		s.Key.ID(), s.Key.Namespace, s.Key.Primary, s.Key.Secondary, string(s.Format),
		s.Ciphertext, s.IV, s.AuthTag, s.IntegrityHash, saltRefArg(s), s.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert response: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, key records.LogicalKey) (*records.Stored, error) {
	query := `SELECT ` + columns + ` FROM responses WHERE record_id = ?`

	s, err := scanStored(r.db.QueryRowContext(ctx, r.q(query), key.ID()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select response: %w", err)
	}
	return s, nil
}

func (r *SQLRepository) Delete(ctx context.Context, key records.LogicalKey) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM responses WHERE record_id = ?`), key.ID())
	if err != nil {
		return fmt.Errorf("failed to delete response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) ListLegacy(ctx context.Context, after string, limit int) ([]*records.Stored, error) {
	query := `SELECT ` + columns + ` FROM responses
		WHERE format_version = 'legacy' AND record_id > ?
		ORDER BY record_id
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.q(query), after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select legacy responses: %w", err)
	}
	defer rows.Close()

	var out []*records.Stored
	for rows.Next() {
		s, err := scanStored(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceLegacy updates the row and appends to response_migrations in one
// transaction.
func (r *SQLRepository) ReplaceLegacy(ctx context.Context, old, next *records.Stored) error {
	if old.Key != next.Key {
		return fmt.Errorf("replace %s with %s: %w", old.Key, next.Key, common.ErrorValidation)
	}
	if next.SaltRef == nil {
		return fmt.Errorf("replacement for %s has no salt reference: %w", old.Key, common.ErrorValidation)
	}

	update := `UPDATE responses SET
			format_version = ?, ciphertext = ?, iv = ?, auth_tag = ?,
			integrity_hash = ?, salt_ref = ?, created_at_ms = ?
		WHERE record_id = ? AND format_version = 'legacy' AND integrity_hash = ?`
	audit := `INSERT INTO response_migrations (record_id, salt_ref, migrated_ms) VALUES (?, ?, ?)`

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, r.q(update),
			string(next.Format), next.Ciphertext, next.IV, next.AuthTag,
			next.IntegrityHash, *next.SaltRef, next.CreatedAt.UnixMilli(),
			old.Key.ID(), old.IntegrityHash)
		if err != nil {
			return fmt.Errorf("failed to replace response: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n != 1 {
			return common.ErrVersionConflict
		}
		if _, err := tx.ExecContext(ctx, r.q(audit), old.Key.ID(), *next.SaltRef, r.now().UnixMilli()); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

func (r *SQLRepository) CountLegacy(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM responses WHERE format_version = 'legacy'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count legacy responses: %w", err)
	}
	return n, nil
}

// CountMigrated reports how many rows the migration has rewritten so far.
func (r *SQLRepository) CountMigrated(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM response_migrations`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count migrations: %w", err)
	}
	return n, nil
}
