package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/saltkeeper/internal/dbx"
	"github.com/dmitrijs2005/saltkeeper/internal/server/repositories/salts"
)

// RepositoryManager vends repositories bound to a connection or transaction
// and owns the schema.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Salts(db dbx.DBTX) salts.Repository
}
