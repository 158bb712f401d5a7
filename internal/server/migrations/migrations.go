// Package migrations embeds the custodian schema for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
