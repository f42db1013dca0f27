package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	"github.com/jwalitptl/onboarding-api/pkg/auth"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
	"github.com/jwalitptl/onboarding-api/pkg/security"
)

type Service struct {
	users   repository.UserRepository
	tokens  auth.JWTService
	hasher  security.PasswordHasher
	expiry  time.Duration
	auditor audit.Recorder
	logger  zerolog.Logger
}

func NewService(
	users repository.UserRepository,
	tokens auth.JWTService,
	hasher security.PasswordHasher,
	expiry time.Duration,
	auditor audit.Recorder,
	logger zerolog.Logger,
) *Service {
	return &Service{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		expiry:  expiry,
		auditor: auditor,
		logger:  logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates a GUEST user waiting at role selection and signs them in.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.TokenResponse, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation("password must be at least 8 characters")
		}
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Name:            strings.TrimSpace(req.Name),
		PasswordHash:    hash,
		Role:            string(model.RoleGuest),
		OnboardingStage: string(model.StageRoleSelection),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &user.ID,
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityUser,
		EntityID:   user.ID,
		Changes:    map[string]interface{}{"email": user.Email, "role": user.Role},
	})
	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
		}
		return nil, apperrors.Internal(err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.logger.Info().Str("user_id", user.ID.String()).Msg("login rejected: password mismatch")
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials)
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &user.ID,
		Action:     model.AuditActionLogin,
		EntityType: model.AuditEntityUser,
		EntityID:   user.ID,
	})
	return s.issue(user)
}

func (s *Service) issue(user *model.User) (*model.TokenResponse, error) {
	token, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.expiry.Seconds()),
		User:        user,
	}, nil
}
