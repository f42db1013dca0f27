package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/pkg/repository"
)

type AuditCleanupWorker struct {
	repo          repository.AuditPruner
	retentionDays int
	interval      time.Duration
	logger        zerolog.Logger
}

func NewAuditCleanupWorker(repo repository.AuditPruner, retentionDays int, interval time.Duration, logger zerolog.Logger) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		repo:          repo,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With().Str("component", "audit_cleanup").Logger(),
	}
}

func (w *AuditCleanupWorker) Start(ctx context.Context) {
	if w.retentionDays <= 0 || w.interval <= 0 {
		w.logger.Info().Msg("audit retention disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error().Err(err).Msg("Error cleaning up audit logs")
			}
		}
	}
}

// Cleanup removes audit logs older than the retention window.
func (w *AuditCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	w.logger.Info().Int64("deleted", rows).Time("cutoff", cutoff).Msg("Cleaned up audit logs")
	return rows, nil
}
