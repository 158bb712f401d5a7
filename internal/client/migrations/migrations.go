// Package migrations embeds the primary store schema for goose, one
// directory per SQL dialect.
package migrations

import "embed"

// Dialect directories inside Migrations.
const (
	DirSQLite   = "sqlite"
	DirPostgres = "postgres"
)

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS
