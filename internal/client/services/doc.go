// Package services orchestrates the split-key scheme on the primary side:
// Sealer writes and reads protected values, Migrator moves legacy rows to
// per-record salts, and HealthWatcher keeps an eye on the custodian.
package services
