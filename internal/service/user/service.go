package user

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
	"github.com/jwalitptl/onboarding-api/internal/service"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

type UserServicer interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	SetSystemRole(ctx context.Context, actorID, userID uuid.UUID, role string) (*model.User, error)
	SelectOwnRole(ctx context.Context, userID uuid.UUID, role string) (*model.User, error)
	CompletePatientProfile(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

// ProfileEnsurer creates the entity row behind a DOCTOR or CLINIC user.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, user *model.User) error
}

type Service struct {
	repo     repository.UserRepository
	profiles ProfileEnsurer
	auditor  audit.Recorder
	logger   zerolog.Logger
}

func NewService(repo repository.UserRepository, profiles ProfileEnsurer, auditor audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		auditor:  auditor,
		logger:   logger.With().Str("component", "users").Logger(),
	}
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, service.StoreError("user", err)
	}
	return user, nil
}

// SetSystemRole assigns a fixed role on behalf of an administrator.
func (s *Service) SetSystemRole(ctx context.Context, actorID, userID uuid.UUID, roleName string) (*model.User, error) {
	role, ok := model.ParseSystemRole(roleName)
	if !ok {
		return nil, apperrors.Validation("invalid system role: " + roleName)
	}
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, service.StoreError("user", err)
	}
	return s.assign(ctx, actorID, user, role)
}

// SelectOwnRole is a GUEST picking PATIENT, DOCTOR or CLINIC for themselves.
// Once a role is held only an administrator can change it.
func (s *Service) SelectOwnRole(ctx context.Context, userID uuid.UUID, roleName string) (*model.User, error) {
	role, ok := model.ParseSystemRole(roleName)
	if !ok {
		return nil, apperrors.Validation("invalid system role: " + roleName)
	}
	if role == model.RoleAdmin {
		return nil, apperrors.Forbidden("the ADMIN role cannot be self-assigned")
	}
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, service.StoreError("user", err)
	}
	if current, ok := user.SystemRole(); ok && current != model.RoleGuest {
		return nil, apperrors.Forbidden("a role has already been selected")
	}
	return s.assign(ctx, userID, user, role)
}

// roleStage returns the stage user moves to on becoming role, or nil to keep the
// current one. A GUEST choosing DOCTOR or CLINIC follows the stage table; moving
// between PATIENT, DOCTOR and CLINIC restarts onboarding at the new role's entry stage.
func roleStage(user *model.User, role model.SystemRole) *model.OnboardingStage {
	previous, _ := user.SystemRole()
	if previous == role || role == model.RoleAdmin {
		return nil
	}
	switch previous {
	case model.RolePatient, model.RoleDoctor, model.RoleClinic:
		entry := model.EntryStage(role)
		return &entry
	}

	var event model.OnboardingEvent
	switch role {
	case model.RoleDoctor:
		event = model.EventDoctorRoleSelected
	case model.RoleClinic:
		event = model.EventClinicRoleSelected
	default:
		return nil
	}
	next, err := model.NextStage(user.OnboardingStage, event)
	if err != nil {
		return nil
	}
	return &next
}

// assign stores role and its stage and creates the backing profile row. A failure to
// create the profile does not fail the role change.
func (s *Service) assign(ctx context.Context, actorID uuid.UUID, user *model.User, role model.SystemRole) (*model.User, error) {
	userID := user.ID
	stage := roleStage(user, role)

	if err := s.repo.UpdateSystemRole(ctx, userID, role, stage); err != nil {
		return nil, service.StoreError("user", err)
	}

	previous := user.Role
	user.Role = string(role)
	if stage != nil {
		user.OnboardingStage = string(*stage)
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityUser,
		EntityID:   userID,
		Changes: map[string]interface{}{
			"role":             user.Role,
			"previous_role":    previous,
			"onboarding_stage": user.OnboardingStage,
		},
	})

	if s.profiles != nil {
		if err := s.profiles.EnsureProfile(ctx, user); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID.String()).Str("role", user.Role).Msg("failed to create profile for new role")
		}
	}
	return user, nil
}

// CompletePatientProfile marks a PATIENT's onboarding as finished.
func (s *Service) CompletePatientProfile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, service.StoreError("user", err)
	}
	if !model.RolePatient.Is(user.Role) {
		return nil, apperrors.Forbidden("only patients can complete a patient profile")
	}

	next, err := model.NextStage(user.OnboardingStage, model.EventPatientProfileCompleted)
	if err != nil {
		return nil, apperrors.BadRequest("invalid onboarding transition", err)
	}
	if err := s.repo.UpdateStage(ctx, userID, next); err != nil {
		return nil, service.StoreError("user", err)
	}
	user.OnboardingStage = string(next)
	return user, nil
}
