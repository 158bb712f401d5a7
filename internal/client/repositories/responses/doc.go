// Package responses is the primary store for sealed values.
//
// Rows are kept exactly as records.Stored describes them; this package never
// encrypts, decrypts or interprets the format tag beyond filtering legacy
// rows for the migration. Backends:
//
//   - SQLRepository on SQLite (modernc.org/sqlite) or PostgreSQL (pgx),
//     schema applied with goose from internal/client/migrations.
//   - S3Repository on any S3 compatible object store, one JSON object per
//     record, compare-and-swap through conditional puts.
package responses
