package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/model"
)

// OutboxStore is the slice of the outbox repository the background workers need.
type OutboxStore interface {
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditPruner deletes audit rows older than a cutoff.
type AuditPruner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}
