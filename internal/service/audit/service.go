package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

type clientInfoKey struct{}

// ClientInfo is the request origin recorded with each audit entry.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo attaches the caller's address and user agent to ctx.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

func clientInfoFrom(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info
}

// Entry describes one audited mutation.
type Entry struct {
	ActorID    *uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Changes    interface{}
}

type Service struct {
	repo   repository.AuditRepository
	logger zerolog.Logger
}

func NewService(repo repository.AuditRepository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Log creates an audit log entry
func (s *Service) Log(ctx context.Context, e Entry) error {
	changes, err := toJSONMap(e.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode audit changes: %w", err)
	}

	info := clientInfoFrom(ctx)
	log := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Changes:    changes,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}
	return s.repo.Create(ctx, log)
}

func (s *Service) List(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditLog, int64, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.Cleanup(ctx, before)
}

func toJSONMap(v interface{}) (model.JSONMap, error) {
	switch c := v.(type) {
	case nil:
		return model.JSONMap{}, nil
	case model.JSONMap:
		return c, nil
	case map[string]interface{}:
		return model.JSONMap(c), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := model.JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.JSONMap{"value": json.RawMessage(raw)}, nil
	}
	return out, nil
}
