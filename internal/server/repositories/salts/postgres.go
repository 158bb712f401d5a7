package salts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/dbx"
	"github.com/dmitrijs2005/saltkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Salt) (*models.Salt, error) {
	query :=
		`INSERT INTO salts (id, salt, purpose, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, s.ID, s.Value, s.Purpose, s.ExpiresAt).Scan(&s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

// Fetch filters expiry and bumps the audit counters in one statement, so an
// expired id takes the same path as an unknown one.
func (r *PostgresRepository) Fetch(ctx context.Context, id string) (*models.Salt, error) {
	query :=
		`UPDATE salts
		 SET access_count = access_count + 1, accessed_at = now()
		 WHERE id = $1 AND (expires_at IS NULL OR expires_at > now())
		 RETURNING id, salt, purpose, created_at, accessed_at, access_count, expires_at`

	s := &models.Salt{}
	var accessedAt, expiresAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Value, &s.Purpose, &s.CreatedAt, &accessedAt, &s.AccessCount, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if accessedAt.Valid {
		s.AccessedAt = &accessedAt.Time
	}
	if expiresAt.Valid {
		s.ExpiresAt = &expiresAt.Time
	}

	return s, nil
}

// Delete removes the row even when it has expired, but then reports it as
// not found, the same as Fetch does.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM salts WHERE id = $1
		RETURNING (expires_at IS NOT NULL AND expires_at <= now())`

	var expired bool
	err := r.db.QueryRowContext(ctx, query, id).Scan(&expired)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if expired {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM salts WHERE expires_at IS NOT NULL AND expires_at <= now()`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) CountByPurpose(ctx context.Context) (map[string]int64, error) {
	query :=
		`SELECT purpose, count(*) FROM salts
		 WHERE expires_at IS NULL OR expires_at > now()
		 GROUP BY purpose`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var (
			purpose string
			n       int64
		)
		if err := rows.Scan(&purpose, &n); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out[purpose] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
