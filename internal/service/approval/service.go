package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

type Service struct {
	repo    repository.ApprovalRepository
	users   repository.UserRepository
	doctors repository.DoctorRepository
	clinics repository.ClinicRepository
	logger  zerolog.Logger
}

func NewService(
	repo repository.ApprovalRepository,
	users repository.UserRepository,
	doctors repository.DoctorRepository,
	clinics repository.ClinicRepository,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		doctors: doctors,
		clinics: clinics,
		logger:  logger.With().Str("component", "approvals").Logger(),
	}
}

// CreateOrRefresh opens a pending request or refreshes the existing one, and moves the
// requesting user to stage.
func (s *Service) CreateOrRefresh(ctx context.Context, req *model.ApprovalRequest, stage model.OnboardingStage) (bool, error) {
	refreshed, err := s.repo.CreateOrRefresh(ctx, req, stage)
	if err != nil {
		return false, fmt.Errorf("failed to save approval request: %w", err)
	}
	return refreshed, nil
}

// Decide applies d. A request that is missing, outside d.Scope or already decided is NotFound.
func (s *Service) Decide(ctx context.Context, d *model.Decision) (*model.ApprovalRequest, error) {
	req, err := s.repo.Decide(ctx, d)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("approval request", err)
		}
		return nil, apperrors.Internal(err)
	}
	return s.AttachEntity(ctx, req)
}

// Get returns a request visible in scope with its entity attached.
func (s *Service) Get(ctx context.Context, id uuid.UUID, scope model.ApprovalScope) (*model.ApprovalRequest, error) {
	req, err := s.repo.Get(ctx, id, scope)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("approval request", err)
		}
		return nil, apperrors.Internal(err)
	}
	if !scope.Admits(req) {
		return nil, apperrors.NotFound("approval request", nil)
	}
	return s.AttachEntity(ctx, req)
}

// ListPending returns the pending queue of scope.
func (s *Service) ListPending(ctx context.Context, scope model.ApprovalScope) ([]*model.ApprovalRequest, error) {
	status := model.ApprovalStatusPending
	return s.ListByStatus(ctx, scope, &status)
}

// ListByStatus returns the requests of scope, optionally narrowed to status. Clinic
// listings only contain requests whose doctor is still linked to that clinic.
func (s *Service) ListByStatus(ctx context.Context, scope model.ApprovalScope, status *model.ApprovalStatus) ([]*model.ApprovalRequest, error) {
	reqs, err := s.repo.List(ctx, repository.ApprovalFilter{Scope: scope, Status: status})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	out := make([]*model.ApprovalRequest, 0, len(reqs))
	for _, req := range reqs {
		if !scope.Admits(req) {
			s.logger.Warn().Str("request_id", req.ID.String()).Str("scope", scope.String()).Msg("dropping request outside scope")
			continue
		}
		req, err := s.AttachEntity(ctx, req)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if clinicID, ok := scope.ClinicID(); ok && !LinkedToClinic(req, clinicID) {
			s.logger.Debug().Str("request_id", req.ID.String()).Msg("dropping request: doctor no longer linked to clinic")
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// ListForClinicUser resolves the clinic owned by clinicUserID and lists its queue.
func (s *Service) ListForClinicUser(ctx context.Context, clinicUserID uuid.UUID, status *model.ApprovalStatus) ([]*model.ApprovalRequest, error) {
	clinic, err := s.clinics.GetByUserID(ctx, clinicUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("clinic", err)
		}
		return nil, apperrors.Internal(err)
	}
	return s.ListByStatus(ctx, model.ClinicScope(clinic.ID), status)
}

// ListByUser returns the requests a user has submitted.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, status *model.ApprovalStatus) ([]*model.ApprovalRequest, error) {
	reqs, err := s.repo.ListByUser(ctx, userID, status)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	for i, req := range reqs {
		if reqs[i], err = s.AttachEntity(ctx, req); err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	return reqs, nil
}

// AttachEntity resolves the doctor or clinic a request refers to. Requests of an
// unknown type, or whose entity no longer exists, are returned without one.
func (s *Service) AttachEntity(ctx context.Context, req *model.ApprovalRequest) (*model.ApprovalRequest, error) {
	switch req.RequestType {
	case model.RequestTypeDoctor:
		doctor, err := s.doctors.Get(ctx, req.EntityID)
		if err != nil {
			return s.missingEntity(req, err)
		}
		if doctor.User, err = s.optionalUser(ctx, doctor.UserID); err != nil {
			return nil, err
		}
		if doctor.HasClinic() {
			clinic, err := s.clinics.Get(ctx, *doctor.ClinicID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("failed to get clinic: %w", err)
			}
			doctor.Clinic = clinic
		}
		req.Entity = model.DoctorEntity{Doctor: doctor}

	case model.RequestTypeClinic:
		clinic, err := s.clinics.Get(ctx, req.EntityID)
		if err != nil {
			return s.missingEntity(req, err)
		}
		if clinic.User, err = s.optionalUser(ctx, clinic.UserID); err != nil {
			return nil, err
		}
		req.Entity = model.ClinicEntity{Clinic: clinic}
	}
	return req, nil
}

func (s *Service) missingEntity(req *model.ApprovalRequest, err error) (*model.ApprovalRequest, error) {
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get %s entity: %w", req.RequestType, err)
	}
	s.logger.Warn().
		Str("request_id", req.ID.String()).
		Str("entity_id", req.EntityID.String()).
		Msg("approval request entity not found")
	return req, nil
}

func (s *Service) optionalUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// LinkedToClinic reports whether req is a doctor request addressed to clinicID whose
// doctor is currently a member of clinicID.
func LinkedToClinic(req *model.ApprovalRequest, clinicID uuid.UUID) bool {
	if req.ClinicID == nil || *req.ClinicID != clinicID {
		return false
	}
	entity, ok := req.Entity.(model.DoctorEntity)
	if !ok || entity.Doctor == nil || !entity.Doctor.HasClinic() {
		return false
	}
	return *entity.Doctor.ClinicID == clinicID
}
