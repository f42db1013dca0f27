package notification

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
	"github.com/jwalitptl/onboarding-api/pkg/metrics"
)

// Notifier accepts notification intents. It never fails the caller: a notification
// that cannot be queued is logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

type OutboxNotifier struct {
	outbox  repository.OutboxRepository
	sealer  *PayloadSealer
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewOutboxNotifier(outbox repository.OutboxRepository, sealer *PayloadSealer, m *metrics.Metrics, logger zerolog.Logger) *OutboxNotifier {
	return &OutboxNotifier{
		outbox:  outbox,
		sealer:  sealer,
		metrics: m,
		logger:  logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify writes n to the outbox for asynchronous delivery.
func (d *OutboxNotifier) Notify(ctx context.Context, n model.Notification) {
	n.Recipients = cleanRecipients(n.Recipients)
	if n.Target == model.TargetNone || len(n.Recipients) == 0 {
		d.logger.Info().
			Str("template", string(n.Template)).
			Str("target", string(n.Target)).
			Msg("notification skipped: no recipients")
		return
	}

	if n.Payload != nil {
		sealed := make(map[string]interface{}, len(n.Payload))
		for k, v := range n.Payload {
			sealed[k] = v
		}
		if err := d.sealer.Seal(sealed); err != nil {
			d.metrics.ObserveNotification(string(n.Template), err)
			d.logger.Error().Err(err).Str("template", string(n.Template)).Msg("failed to seal notification")
			return
		}
		n.Payload = sealed
	}

	payload, err := json.Marshal(n)
	if err != nil {
		d.metrics.ObserveNotification(string(n.Template), err)
		d.logger.Error().Err(err).Str("template", string(n.Template)).Msg("failed to encode notification")
		return
	}

	err = d.outbox.Create(ctx, &model.OutboxEvent{
		EventType: model.EventTypeNotification,
		Payload:   payload,
	})
	d.metrics.ObserveNotification(string(n.Template), err)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("template", string(n.Template)).
			Str("target", string(n.Target)).
			Msg("failed to queue notification")
	}
}

func cleanRecipients(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		key := strings.ToLower(r)
		if r == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
