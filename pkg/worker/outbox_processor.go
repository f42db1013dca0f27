package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/pkg/metrics"
	"github.com/jwalitptl/onboarding-api/pkg/repository"
)

const (
	cleanupEvery  = time.Hour
	maxRetryDelay = 30 * time.Minute
)

// EventHandler delivers a single outbox event.
type EventHandler interface {
	Handle(ctx context.Context, event *model.OutboxEvent) error
}

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts and RetryDelay bound in-process retries of one delivery.
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries is how many failed deliveries an event survives before it is marked FAILED.
	MaxRetries int
	Lease      time.Duration
	// Retention is how long PROCESSED events are kept. Zero keeps them forever.
	Retention time.Duration
}

type OutboxProcessor struct {
	repo    repository.OutboxStore
	handler EventHandler
	config  OutboxProcessorConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxStore,
	handler EventHandler,
	config OutboxProcessorConfig,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}
	if config.Lease <= 0 {
		config.Lease = time.Minute
	}

	return &OutboxProcessor{
		repo:    repo,
		handler: handler,
		config:  config,
		logger:  logger.With().Str("component", "outbox").Logger(),
		metrics: metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(cleanupEvery)
	defer cleanup.Stop()

	p.logger.Info().Msg("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Failed to process events")
			}
		case <-cleanup.C:
			if _, err := p.Cleanup(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Failed to clean up processed events")
			}
		}
	}
}

// ProcessBatch claims one batch of due events and delivers them. It returns the
// number of events delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
		defer timer.ObserveDuration()
	}

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.Lease)
	p.metrics.ObserveDatabase("claim_pending_events", err)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	delivered := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Int("retry_count", event.RetryCount).
				Msg("Failed to process event")
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Cleanup deletes processed events older than the configured retention.
func (p *OutboxProcessor) Cleanup(ctx context.Context) (int64, error) {
	if p.config.Retention <= 0 {
		return 0, nil
	}
	n, err := p.repo.DeleteProcessedBefore(ctx, time.Now().UTC().Add(-p.config.Retention))
	p.metrics.ObserveDatabase("delete_processed_events", err)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info().Int64("deleted", n).Msg("Cleaned up processed outbox events")
	}
	return n, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.handler.Handle(ctx, event)
	})

	if err != nil {
		p.fail(ctx, event, err)
		return err
	}

	if p.metrics != nil {
		p.metrics.OutboxEventsProcessed.Inc()
	}
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to update event status")
		return err
	}
	return nil
}

func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) {
	msg := cause.Error()
	attempt := event.RetryCount + 1

	if attempt >= p.config.MaxRetries {
		if p.metrics != nil {
			p.metrics.OutboxEventsFailed.Inc()
		}
		if err := p.repo.MarkFailed(ctx, event.ID, msg); err != nil {
			p.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to update event status")
		}
		return
	}

	if p.metrics != nil {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	}
	retryAt := time.Now().UTC().Add(backoff(p.config.RetryDelay, attempt))
	if err := p.repo.MarkRetry(ctx, event.ID, msg, retryAt); err != nil {
		p.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to schedule retry")
	}
}

// backoff doubles base per attempt, capped at maxRetryDelay.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// Helper retry function
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
