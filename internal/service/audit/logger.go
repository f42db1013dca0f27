package audit

import (
	"context"
)

// Recorder writes audit entries without failing the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

type AuditLogger struct {
	service *Service
}

func NewAuditLogger(service *Service) *AuditLogger {
	return &AuditLogger{service: service}
}

// Record logs e synchronously. Failures are logged and dropped.
func (l *AuditLogger) Record(ctx context.Context, e Entry) {
	if err := l.service.Log(ctx, e); err != nil {
		l.service.logger.Warn().
			Err(err).
			Str("action", e.Action).
			Str("entity_type", e.EntityType).
			Str("entity_id", e.EntityID.String()).
			Msg("failed to write audit log")
	}
}

// NopRecorder discards every entry.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) {}
