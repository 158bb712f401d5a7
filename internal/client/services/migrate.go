package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/saltkeeper/internal/client/repositories/responses"
	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/dmitrijs2005/saltkeeper/internal/keymaterial"
	"github.com/dmitrijs2005/saltkeeper/internal/logging"
	"github.com/dmitrijs2005/saltkeeper/internal/records"
)

// DefaultBatchSize is the ListLegacy page size when none is configured.
const DefaultBatchSize = 100

// MigrationReport summarizes one Migrator.Run.
type MigrationReport struct {
	Migrated int
	// Skipped rows changed under the job and were left alone.
	Skipped int
	// Failed rows could not be opened or re-sealed; they stay legacy.
	Failed    int
	Remaining int64
}

// Migrator re-seals legacy rows with per-record custodian salts. Reads of
// legacy rows keep working throughout and afterwards.
type Migrator struct {
	sealer *Sealer
	repo   responses.Repository
	batch  int
	logger logging.Logger
}

func NewMigrator(sealer *Sealer, repo responses.Repository, batch int, logger logging.Logger) *Migrator {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Migrator{sealer: sealer, repo: repo, batch: batch, logger: logger}
}

// Run migrates every legacy row it can. It is safe to interrupt and re-run:
// migrated rows are no longer listed, and the cursor skips rows that failed
// earlier in the same run.
func (m *Migrator) Run(ctx context.Context) (*MigrationReport, error) {
	km, err := m.sealer.key()
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{}
	after := ""

	for {
		page, err := m.repo.ListLegacy(ctx, after, m.batch)
		if err != nil {
			return report, fmt.Errorf("list legacy rows: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, old := range page {
			after = old.Key.ID()

			err := m.migrateOne(ctx, km, old)
			switch {
			case err == nil:
				report.Migrated++
			case errors.Is(err, common.ErrVersionConflict):
				report.Skipped++
				m.logger.Info(ctx, "row changed during migration, skipped", "key", old.Key.String())
			case ctx.Err() != nil:
				return report, ctx.Err()
			default:
				report.Failed++
				m.logger.Error(ctx, "row migration failed", "key", old.Key.String(), "kind", common.KindOf(err).String(), "error", err)
			}
		}
	}

	remaining, err := m.repo.CountLegacy(ctx)
	if err != nil {
		return report, fmt.Errorf("count legacy rows: %w", err)
	}
	report.Remaining = remaining

	m.logger.Info(ctx, "legacy migration finished",
		"migrated", report.Migrated, "skipped", report.Skipped, "failed", report.Failed, "remaining", report.Remaining)
	return report, nil
}

func (m *Migrator) migrateOne(ctx context.Context, km *keymaterial.KeyMaterial, old *records.Stored) error {
	rec, err := records.Negotiate(old)
	if err != nil {
		return err
	}
	if _, ok := rec.(records.Legacy); !ok {
		return common.ErrVersionConflict
	}

	pt, err := m.sealer.openRecord(ctx, km, rec)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pt)

	next, err := m.sealer.sealCurrent(ctx, km, old.Key, pt, old.CreatedAt)
	if err != nil {
		return err
	}

	if err := m.repo.ReplaceLegacy(ctx, old, next); err != nil {
		m.sealer.discardSalt(ctx, *next.SaltRef)
		return err
	}
	return nil
}

// Verify reports how many legacy rows remain. Zero means the migration is
// complete; the legacy read path stays in place regardless.
func (m *Migrator) Verify(ctx context.Context) (int64, error) {
	n, err := m.repo.CountLegacy(ctx)
	if err != nil {
		return 0, fmt.Errorf("count legacy rows: %w", err)
	}
	return n, nil
}
