package notification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/email"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository/repotest"
	"github.com/jwalitptl/onboarding-api/pkg/logger"
	"github.com/jwalitptl/onboarding-api/pkg/messaging"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

type sentMail struct {
	to      []string
	subject string
	body    string
}

type fakeSender struct {
	err  error
	sent []sentMail
}

func (f *fakeSender) Send(_ context.Context, to []string, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeBroker struct {
	messaging.NopBroker
	mu        sync.Mutex
	published []interface{}
}

func (f *fakeBroker) Publish(_ context.Context, _ string, msg interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func decode(t *testing.T, e *model.OutboxEvent) model.Notification {
	t.Helper()
	var n model.Notification
	require.NoError(t, json.Unmarshal(e.Payload, &n))
	return n
}

func TestNotifyQueuesOutboxEvent(t *testing.T) {
	store := repotest.NewStore()
	notifier := NewOutboxNotifier(store.Outbox(), nil, nil, logger.Nop())

	notifier.Notify(context.Background(), model.Notification{
		Target:     model.TargetAdmin,
		Recipients: []string{" a@example.test", "A@example.test", "", "b@example.test"},
		Template:   model.TemplateClinicApprovalRequested,
		Payload:    map[string]interface{}{"clinic_name": "Northside"},
	})

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTypeNotification, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)

	n := decode(t, events[0])
	assert.Equal(t, []string{"a@example.test", "b@example.test"}, n.Recipients)
	assert.Equal(t, "Northside", n.Payload["clinic_name"])
}

func TestNotifySkipsEmptyAndNoneTargets(t *testing.T) {
	store := repotest.NewStore()
	notifier := NewOutboxNotifier(store.Outbox(), nil, nil, logger.Nop())
	ctx := context.Background()

	notifier.Notify(ctx, model.Notification{Target: model.TargetAdmin, Template: model.TemplateDoctorApproved})
	notifier.Notify(ctx, model.Notification{Target: model.TargetNone, Recipients: []string{"x@example.test"}, Template: model.TemplateDoctorApproved})
	notifier.Notify(ctx, model.Notification{Target: model.TargetSelf, Recipients: []string{"  "}, Template: model.TemplateDoctorApproved})

	assert.Empty(t, store.OutboxEvents())
}

func TestNotifySwallowsOutboxFailure(t *testing.T) {
	store := repotest.NewStore()
	store.FailOn("outbox.Create", errors.New("connection refused"))
	notifier := NewOutboxNotifier(store.Outbox(), nil, nil, logger.Nop())

	assert.NotPanics(t, func() {
		notifier.Notify(context.Background(), model.Notification{
			Target:     model.TargetSelf,
			Recipients: []string{"x@example.test"},
			Template:   model.TemplateDoctorApproved,
		})
	})
	assert.Empty(t, store.OutboxEvents())
}

func TestNotifySealsTemporaryPassword(t *testing.T) {
	store := repotest.NewStore()
	sealer, err := NewPayloadSealer(testKey)
	require.NoError(t, err)
	notifier := NewOutboxNotifier(store.Outbox(), sealer, nil, logger.Nop())

	payload := map[string]interface{}{"name": "Dr. Lee", "temporary_password": "Plain-Secret-1"}
	notifier.Notify(context.Background(), model.Notification{
		Target:     model.TargetSelf,
		Recipients: []string{"lee@example.test"},
		Template:   model.TemplateDoctorWelcome,
		Payload:    payload,
	})

	assert.Equal(t, "Plain-Secret-1", payload["temporary_password"], "caller payload untouched")

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.NotContains(t, string(events[0].Payload), "Plain-Secret-1")

	n := decode(t, events[0])
	sealed, ok := n.Payload["temporary_password"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.Equal(t, "Dr. Lee", n.Payload["name"])
}

func TestPayloadSealerRoundTrip(t *testing.T) {
	sealer, err := NewPayloadSealer(testKey)
	require.NoError(t, err)

	payload := map[string]interface{}{"temporary_password": "abc12345"}
	require.NoError(t, sealer.Seal(payload))
	require.NoError(t, sealer.Seal(payload), "sealing twice is a no-op")
	require.NoError(t, sealer.Open(payload))
	assert.Equal(t, "abc12345", payload["temporary_password"])
}

func TestPayloadSealerRejectsForeignKey(t *testing.T) {
	sealer, err := NewPayloadSealer(testKey)
	require.NoError(t, err)
	other, err := NewPayloadSealer(base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210")))
	require.NoError(t, err)

	payload := map[string]interface{}{"temporary_password": "abc12345"}
	require.NoError(t, other.Seal(payload))
	assert.Error(t, sealer.Open(payload))
}

func TestPayloadSealerDisabled(t *testing.T) {
	sealer, err := NewPayloadSealer("")
	require.NoError(t, err)
	assert.Nil(t, sealer)

	payload := map[string]interface{}{"temporary_password": "abc12345"}
	require.NoError(t, sealer.Seal(payload))
	assert.Equal(t, "abc12345", payload["temporary_password"])

	assert.Error(t, sealer.Open(map[string]interface{}{"temporary_password": sealedPrefix + "AAAA"}))

	_, err = NewPayloadSealer("not base64!")
	assert.Error(t, err)
	_, err = NewPayloadSealer(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func newDeliverer(t *testing.T, sender email.Sender, broker messaging.Broker, sealer *PayloadSealer) *Deliverer {
	t.Helper()
	renderer, err := email.NewRenderer()
	require.NoError(t, err)
	return NewDeliverer(renderer, sender, broker, sealer, "notifications", logger.Nop())
}

func outboxEvent(t *testing.T, n model.Notification) *model.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(n)
	require.NoError(t, err)
	return &model.OutboxEvent{ID: uuid.New(), EventType: model.EventTypeNotification, Payload: raw}
}

func TestDelivererSendsAndPublishes(t *testing.T) {
	sender := &fakeSender{}
	broker := &fakeBroker{}
	d := newDeliverer(t, sender, broker, nil)

	event := outboxEvent(t, model.Notification{
		Target:     model.TargetSelf,
		Recipients: []string{"doc@example.test"},
		Template:   model.TemplateDoctorRejected,
		Payload:    map[string]interface{}{"name": "Dr. Ray", "reason": "license expired"},
	})
	require.NoError(t, d.Handle(context.Background(), event))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"doc@example.test"}, sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "license expired")

	require.Len(t, broker.published, 1)
	msg, ok := broker.published[0].(messaging.Message)
	require.True(t, ok)
	assert.Equal(t, model.EventTypeNotification, msg.Type)
	sent, ok := msg.Payload.(model.NotificationEvent)
	require.True(t, ok)
	assert.Equal(t, event.ID, sent.ID)
	assert.Equal(t, model.TemplateDoctorRejected, sent.Template)
}

func TestDelivererOpensSealedPassword(t *testing.T) {
	sealer, err := NewPayloadSealer(testKey)
	require.NoError(t, err)
	payload := map[string]interface{}{"name": "Dr. Kim", "temporary_password": "Welcome-123"}
	require.NoError(t, sealer.Seal(payload))

	sender := &fakeSender{}
	d := newDeliverer(t, sender, nil, sealer)
	require.NoError(t, d.Handle(context.Background(), outboxEvent(t, model.Notification{
		Target:     model.TargetSelf,
		Recipients: []string{"kim@example.test"},
		Template:   model.TemplateDoctorWelcome,
		Payload:    payload,
	})))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].body, "Temporary password: Welcome-123")
}

func TestDelivererErrors(t *testing.T) {
	ctx := context.Background()

	d := newDeliverer(t, &fakeSender{}, nil, nil)
	assert.Error(t, d.Handle(ctx, &model.OutboxEvent{EventType: "something.else"}))
	assert.Error(t, d.Handle(ctx, &model.OutboxEvent{EventType: model.EventTypeNotification, Payload: []byte("{")}))
	assert.Error(t, d.Handle(ctx, outboxEvent(t, model.Notification{
		Recipients: []string{"x@example.test"},
		Template:   model.TemplateKey("unknown"),
	})))

	failing := newDeliverer(t, &fakeSender{err: errors.New("smtp down")}, nil, nil)
	assert.Error(t, failing.Handle(ctx, outboxEvent(t, model.Notification{
		Recipients: []string{"x@example.test"},
		Template:   model.TemplateDoctorApproved,
	})))
}
