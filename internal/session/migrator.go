package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/telemetry"
)

// MigrationStats is the outcome of one migration run.
type MigrationStats struct {
	Total     int
	Migrated  int
	Failed    int
	Skipped   int
	Conflicts int
	Errors    []string
}

// Hook runs before or after the batch-copy phase; returning an error aborts
// the migration.
type Hook func(ctx context.Context) error

// Migrator performs an online copy from a source Store to a target Store.
// The source remains authoritative throughout — callers only flip the
// Factory's active backend (the cutover) once a migration run reports zero
// failures.
type Migrator struct {
	batchSize int
	log       *corelog.Logger
	telem     *telemetry.Collector
	preHook   Hook
	postHook  Hook
}

// NewMigrator constructs a Migrator with the given batch size and optional
// pre/post hooks (nil hooks are skipped).
func NewMigrator(batchSize int, log *corelog.Logger, telem *telemetry.Collector, preHook, postHook Hook) *Migrator {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Migrator{batchSize: batchSize, log: log, telem: telem, preHook: preHook, postHook: postHook}
}

// Run executes validate -> pre-hook -> batch-copy -> post-hook -> stats.
func (m *Migrator) Run(ctx context.Context, source, target Store) (MigrationStats, error) {
	var stats MigrationStats

	if source == nil || target == nil {
		return stats, fmt.Errorf("migrator: source and target must both be non-nil")
	}

	if m.preHook != nil {
		if err := m.preHook(ctx); err != nil {
			return stats, fmt.Errorf("pre-hook failed: %w", err)
		}
	}

	sessions, err := source.Dump(ctx)
	if err != nil {
		return stats, fmt.Errorf("dump source: %w", err)
	}
	stats.Total = len(sessions)

	for i := 0; i < len(sessions); i += m.batchSize {
		end := i + m.batchSize
		if end > len(sessions) {
			end = len(sessions)
		}
		batch := sessions[i:end]

		var toRestore []*Session
		for _, s := range batch {
			if s.Expired(time.Now()) {
				stats.Skipped++
				continue
			}
			existing, err := target.Get(ctx, s.ID)
			if err != nil {
				stats.Failed++
				stats.Errors = append(stats.Errors, err.Error())
				continue
			}
			if existing != nil && existing.LastAccessedAt.After(s.LastAccessedAt) {
				stats.Conflicts++
				continue
			}
			toRestore = append(toRestore, s)
		}

		if len(toRestore) > 0 {
			if err := target.Restore(ctx, toRestore); err != nil {
				stats.Failed += len(toRestore)
				stats.Errors = append(stats.Errors, err.Error())
			} else {
				stats.Migrated += len(toRestore)
			}
		}

		if m.telem != nil {
			m.telem.MigrationBatches.Inc()
			m.telem.MigrationRecords.Add(float64(len(toRestore)))
		}
		if (i/m.batchSize+1)%10 == 0 {
			m.log.Info("migration progress",
				zap.Int("migrated", stats.Migrated), zap.Int("total", stats.Total))
		}
	}

	if m.postHook != nil {
		if err := m.postHook(ctx); err != nil {
			return stats, fmt.Errorf("post-hook failed: %w", err)
		}
	}

	return stats, nil
}
