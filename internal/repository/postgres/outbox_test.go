package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

var outboxRowColumns = []string{
	"id", "event_type", "payload", "status", "error_message", "retry_count", "retry_at",
	"created_at", "updated_at", "processed_at",
}

func TestOutboxCreate(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewOutboxRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_events")).
		WithArgs(sqlmock.AnyArg(), model.EventTypeNotification, []byte(`{"a":1}`), "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &model.OutboxEvent{EventType: model.EventTypeNotification, Payload: []byte(`{"a":1}`)}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.Equal(t, model.OutboxStatusPending, event.Status)
	assert.NotEqual(t, uuid.Nil, event.ID)
}

func TestOutboxCreateRequiresPayload(t *testing.T) {
	base, _ := setupMockDB(t)
	repo := NewOutboxRepository(base)

	assert.Error(t, repo.Create(context.Background(), nil))
	assert.Error(t, repo.Create(context.Background(), &model.OutboxEvent{EventType: model.EventTypeNotification}))
}

func TestOutboxClaimPendingLeasesEvents(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewOutboxRepository(base)
	first, second := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(outboxRowColumns).
			AddRow(first.String(), model.EventTypeNotification, []byte(`{}`), "PENDING", nil, 0, nil, now, now, nil).
			AddRow(second.String(), model.EventTypeNotification, []byte(`{}`), "RETRY", "smtp down", 1, now, now, now, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events SET retry_at = $1")).
		WithArgs(sqlmock.AnyArg(), first).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events SET retry_at = $1")).
		WithArgs(sqlmock.AnyArg(), second).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	events, err := repo.ClaimPending(context.Background(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.OutboxStatusRetry, events[1].Status)
	assert.Equal(t, 1, events[1].RetryCount)
	require.NotNil(t, events[1].ErrorMessage)
	assert.Equal(t, "smtp down", *events[1].ErrorMessage)
}

func TestOutboxClaimPendingEmpty(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewOutboxRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM outbox_events")).
		WillReturnRows(sqlmock.NewRows(outboxRowColumns))
	mock.ExpectCommit()

	events, err := repo.ClaimPending(context.Background(), 5, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOutboxMarkProcessedMissingEvent(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewOutboxRepository(base)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events")).
		WithArgs("PROCESSED", id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkProcessed(context.Background(), id)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestOutboxMarkRetry(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewOutboxRepository(base)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("retry_count = retry_count + 1")).
		WithArgs("RETRY", "timeout", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkRetry(context.Background(), id, "timeout", time.Now().Add(time.Minute)))
}

func TestOutboxDeleteProcessedBefore(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewOutboxRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM outbox_events")).
		WithArgs("PROCESSED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteProcessedBefore(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
