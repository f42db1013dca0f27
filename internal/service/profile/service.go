package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
	"github.com/jwalitptl/onboarding-api/internal/service"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	"github.com/jwalitptl/onboarding-api/internal/service/notification"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
	"github.com/jwalitptl/onboarding-api/pkg/security"
)

// Service creates the doctor and clinic rows that back DOCTOR and CLINIC users.
type Service struct {
	users    repository.UserRepository
	doctors  repository.DoctorRepository
	clinics  repository.ClinicRepository
	hasher   security.PasswordHasher
	notifier notification.Notifier
	auditor  audit.Recorder
	logger   zerolog.Logger
}

func NewService(
	users repository.UserRepository,
	doctors repository.DoctorRepository,
	clinics repository.ClinicRepository,
	hasher security.PasswordHasher,
	notifier notification.Notifier,
	auditor audit.Recorder,
	logger zerolog.Logger,
) *Service {
	return &Service{
		users:    users,
		doctors:  doctors,
		clinics:  clinics,
		hasher:   hasher,
		notifier: notifier,
		auditor:  auditor,
		logger:   logger.With().Str("component", "profile").Logger(),
	}
}

// EnsureProfile creates the doctor or clinic row for user when it does not exist yet.
// Other roles are a no-op. Calling it again is harmless.
func (s *Service) EnsureProfile(ctx context.Context, user *model.User) error {
	role, ok := user.SystemRole()
	if !ok {
		return nil
	}

	switch role {
	case model.RoleDoctor:
		_, err := s.doctors.GetByUserID(ctx, user.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to look up doctor profile: %w", err)
		}
		err = s.doctors.Create(ctx, &model.Doctor{UserID: user.ID, Documents: model.JSONMap{}})
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("failed to create doctor profile: %w", err)
		}

	case model.RoleClinic:
		_, err := s.clinics.GetByUserID(ctx, user.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to look up clinic profile: %w", err)
		}
		err = s.clinics.Create(ctx, &model.Clinic{UserID: user.ID, Name: user.Name, Documents: model.JSONMap{}})
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("failed to create clinic profile: %w", err)
		}
	}
	return nil
}

// CreateClinicDoctor opens a doctor account linked to the clinic owned by clinicUserID.
// The doctor receives a temporary password by email.
func (s *Service) CreateClinicDoctor(ctx context.Context, clinicUserID uuid.UUID, req *model.CreateClinicDoctorRequest) (*model.Doctor, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}

	clinic, err := s.clinics.GetByUserID(ctx, clinicUserID)
	if err != nil {
		return nil, service.StoreError("clinic", err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.Conflict("email already registered", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}

	stage, err := model.NextStage(string(model.StageNone), model.EventClinicCreatedDoctor)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	password, err := security.GenerateTemporaryPassword()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Email:           email,
		Name:            strings.TrimSpace(req.Name),
		PasswordHash:    hash,
		Role:            string(model.RoleDoctor),
		OnboardingStage: string(stage),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, apperrors.Internal(err)
	}

	clinicID := clinic.ID
	doctor := &model.Doctor{
		UserID:         user.ID,
		ClinicID:       &clinicID,
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
		Documents:      model.JSONMap{},
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("user_id", user.ID.String()).Msg("failed to remove user after doctor creation failed")
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("license number already registered", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &clinicUserID,
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityDoctor,
		EntityID:   doctor.ID,
		Changes: map[string]interface{}{
			"email":     email,
			"clinic_id": clinicID.String(),
		},
	})

	s.notifier.Notify(ctx, model.Notification{
		Target:     model.TargetSelf,
		Recipients: []string{email},
		Template:   model.TemplateDoctorWelcome,
		Payload: map[string]interface{}{
			"name":               user.Name,
			"email":              email,
			"clinic_name":        clinic.Name,
			"temporary_password": password,
		},
	})

	doctor.User = user
	doctor.Clinic = clinic
	return doctor, nil
}

// ListClinicDoctors returns the doctors linked to the clinic owned by clinicUserID.
func (s *Service) ListClinicDoctors(ctx context.Context, clinicUserID uuid.UUID) ([]*model.Doctor, error) {
	clinic, err := s.clinics.GetByUserID(ctx, clinicUserID)
	if err != nil {
		return nil, service.StoreError("clinic", err)
	}
	doctors, err := s.doctors.ListByClinic(ctx, clinic.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	for _, d := range doctors {
		if u, err := s.users.Get(ctx, d.UserID); err == nil {
			d.User = u
		}
	}
	return doctors, nil
}
