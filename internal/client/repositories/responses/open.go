package responses

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/saltkeeper/internal/client/config"
	"github.com/dmitrijs2005/saltkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/filex"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// RunMigrations applies the embedded schema for dialect.
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var gooseDialect, dir string
	switch dialect {
	case DialectSQLite:
		gooseDialect, dir = "sqlite3", migrations.DirSQLite
	case DialectPostgres:
		gooseDialect, dir = "pgx", migrations.DirPostgres
	default:
		return fmt.Errorf("unknown dialect %q: %w", dialect, common.ErrorValidation)
	}

	// sealctl migrates on every run; goose's per-run summary is noise
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, dir)
}

// OpenSQL opens dsn with the driver for dialect, checks connectivity and
// migrates the schema.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	driver := "sqlite"
	if dialect == DialectPostgres {
		driver = "pgx"
	}

	if dialect == DialectSQLite {
		if p := filex.SQLitePath(dsn); p != "" {
			if err := filex.EnsureParentDir(p); err != nil {
				return nil, err
			}
		}
	}

	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, err
	}
	if dialect == DialectSQLite {
		// one writer; also keeps ":memory:" a single database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", dialect, err)
	}
	return db, nil
}

// Open builds the Repository selected by cfg.StoreBackend. The returned
// close function releases the underlying connection.
func Open(ctx context.Context, cfg *config.Config) (Repository, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite, config.BackendPostgres:
		dialect := DialectSQLite
		if cfg.StoreBackend == config.BackendPostgres {
			dialect = DialectPostgres
		}
		db, err := OpenSQL(ctx, dialect, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLRepository(db, dialect), db.Close, nil

	case config.BackendS3:
		client, err := NewS3Client(ctx, S3Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3BaseEndpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		repo, err := NewS3Repository(client, cfg.S3Bucket, "")
		if err != nil {
			return nil, nil, err
		}
		return repo, func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q: %w", cfg.StoreBackend, common.ErrorValidation)
	}
}
