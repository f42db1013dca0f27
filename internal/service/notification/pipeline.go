package notification

import (
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/config"
	"github.com/jwalitptl/onboarding-api/internal/email"
	"github.com/jwalitptl/onboarding-api/pkg/messaging"
	"github.com/jwalitptl/onboarding-api/pkg/messaging/redis"
	"github.com/jwalitptl/onboarding-api/pkg/metrics"
	"github.com/jwalitptl/onboarding-api/pkg/repository"
	"github.com/jwalitptl/onboarding-api/pkg/worker"
)

// NewOutboxProcessor wires notification delivery: template rendering, SMTP and the
// Redis broker. Without a Redis URL delivered notifications are not published.
// The returned func closes the broker.
func NewOutboxProcessor(cfg *config.Config, repo repository.OutboxStore, m *metrics.Metrics, logger zerolog.Logger) (*worker.OutboxProcessor, func(), error) {
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, nil, err
	}

	sealer, err := NewPayloadSealer(cfg.Outbox.PayloadKey)
	if err != nil {
		return nil, nil, err
	}

	var broker messaging.Broker = messaging.NopBroker{}
	if cfg.Redis.URL != "" {
		if broker, err = redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), logger); err != nil {
			return nil, nil, err
		}
	}

	deliverer := NewDeliverer(renderer, email.NewSender(cfg.SMTP, logger), broker, sealer, cfg.Redis.Channel, logger)
	processor := worker.NewOutboxProcessor(repo, deliverer, cfg.Outbox.ToWorkerConfig(), logger, m)
	return processor, func() { _ = broker.Close() }, nil
}
