package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/email"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/pkg/messaging"
)

// Deliverer sends queued notifications by email and announces each delivery on the broker.
type Deliverer struct {
	renderer *email.Renderer
	sender   email.Sender
	broker   messaging.Broker
	sealer   *PayloadSealer
	channel  string
	logger   zerolog.Logger
}

func NewDeliverer(renderer *email.Renderer, sender email.Sender, broker messaging.Broker, sealer *PayloadSealer, channel string, logger zerolog.Logger) *Deliverer {
	if broker == nil {
		broker = messaging.NopBroker{}
	}
	return &Deliverer{
		renderer: renderer,
		sender:   sender,
		broker:   broker,
		sealer:   sealer,
		channel:  channel,
		logger:   logger.With().Str("component", "deliverer").Logger(),
	}
}

// Handle delivers one outbox event of type model.EventTypeNotification.
func (d *Deliverer) Handle(ctx context.Context, event *model.OutboxEvent) error {
	if event.EventType != model.EventTypeNotification {
		return fmt.Errorf("unsupported event type %q", event.EventType)
	}

	var n model.Notification
	if err := json.Unmarshal(event.Payload, &n); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}
	if err := d.sealer.Open(n.Payload); err != nil {
		return err
	}

	subject, body, err := d.renderer.Render(n.Template, n.Payload)
	if err != nil {
		return err
	}
	if err := d.sender.Send(ctx, n.Recipients, subject, body); err != nil {
		return err
	}

	sent := model.NotificationEvent{
		ID:         event.ID,
		Target:     n.Target,
		Template:   n.Template,
		Recipients: n.Recipients,
		SentAt:     time.Now().UTC(),
	}
	if sent.ID == uuid.Nil {
		sent.ID = uuid.New()
	}
	msg := messaging.Message{Type: string(model.EventTypeNotification), Payload: sent}
	if err := d.broker.Publish(ctx, d.channel, msg); err != nil {
		d.logger.Warn().Err(err).Str("event_id", event.ID.String()).Msg("failed to publish delivery event")
	}
	return nil
}
