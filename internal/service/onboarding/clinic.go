package onboarding

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

// SubmitClinicProfile applies a clinic profile change and opens (or refreshes) an
// admin review request. Clinics are always reviewed by admins.
func (s *Service) SubmitClinicProfile(ctx context.Context, userID uuid.UUID, update *model.ClinicProfileUpdate) (*model.ApprovalRequest, error) {
	if update == nil {
		return nil, apperrors.Validation("profile update is required")
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	clinic, err := s.clinics.GetByUserID(ctx, userID)
	if err != nil {
		return nil, service.StoreError("clinic profile", err)
	}
	next, err := nextStage(user, model.EventClinicSubmitted)
	if err != nil {
		return nil, err
	}

	snapshot := update.Apply(clinic)
	if len(snapshot) == 0 {
		return nil, apperrors.Validation("no profile fields submitted")
	}

	req := &model.ApprovalRequest{
		RequestType: model.RequestTypeClinic,
		UserID:      user.ID,
		EntityID:    clinic.ID,
		RequestData: snapshot,
		Entity:      model.ClinicEntity{Clinic: clinic},
	}
	refreshed, err := s.approvals.CreateOrRefresh(ctx, req, next)
	if err != nil {
		return nil, service.StoreError("clinic profile", err)
	}
	s.metrics.ObserveSubmission(string(model.RequestTypeClinic), model.AdminScope().String(), refreshed)

	action := model.AuditActionCreate
	if refreshed {
		action = model.AuditActionUpdate
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &userID,
		Action:     action,
		EntityType: model.AuditEntityApproval,
		EntityID:   req.ID,
		Changes:    snapshot,
	})

	user.OnboardingStage = string(next)
	clinic.User = user

	s.notifyAdmins(ctx, model.TemplateClinicApprovalRequested, map[string]interface{}{
		"clinic_name": clinic.Name,
		"request_id":  req.ID.String(),
	})
	return req, nil
}

// SubmitClinicDocuments stores uploaded documents and opens an admin review request.
func (s *Service) SubmitClinicDocuments(ctx context.Context, userID uuid.UUID, documents model.JSONMap) (*model.ApprovalRequest, error) {
	if len(documents) == 0 {
		return nil, apperrors.Validation("documents are required")
	}
	return s.SubmitClinicProfile(ctx, userID, &model.ClinicProfileUpdate{Documents: documents})
}

// NotifyClinicDocumentsUpdate stores documents and tells the admins about them
// without opening a review request or moving the onboarding stage.
func (s *Service) NotifyClinicDocumentsUpdate(ctx context.Context, userID uuid.UUID, documents model.JSONMap) (*model.Clinic, error) {
	if len(documents) == 0 {
		return nil, apperrors.Validation("documents are required")
	}
	clinic, err := s.clinics.GetByUserID(ctx, userID)
	if err != nil {
		return nil, service.StoreError("clinic profile", err)
	}

	update := &model.ClinicProfileUpdate{Documents: documents}
	changes := update.Apply(clinic)
	if err := s.clinics.Update(ctx, clinic); err != nil {
		return nil, service.StoreError("clinic profile", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &userID,
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityClinic,
		EntityID:   clinic.ID,
		Changes:    changes,
	})
	s.notifyAdmins(ctx, model.TemplateClinicDocumentsUpdated, map[string]interface{}{
		"clinic_name": clinic.Name,
	})
	return clinic, nil
}

// UpdateClinicProfile persists a change that needs no review and sends nothing.
func (s *Service) UpdateClinicProfile(ctx context.Context, userID uuid.UUID, update *model.ClinicProfileUpdate) (*model.Clinic, error) {
	if update == nil {
		return nil, apperrors.Validation("profile update is required")
	}
	clinic, err := s.clinics.GetByUserID(ctx, userID)
	if err != nil {
		return nil, service.StoreError("clinic profile", err)
	}

	changes := update.Apply(clinic)
	if len(changes) == 0 {
		return clinic, nil
	}
	if err := s.clinics.Update(ctx, clinic); err != nil {
		return nil, service.StoreError("clinic profile", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &userID,
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityClinic,
		EntityID:   clinic.ID,
		Changes:    changes,
	})
	return clinic, nil
}

// GetClinicProfile returns the clinic owned by userID with its user attached.
func (s *Service) GetClinicProfile(ctx context.Context, userID uuid.UUID) (*model.Clinic, error) {
	clinic, err := s.clinics.GetByUserID(ctx, userID)
	if err != nil {
		return nil, service.StoreError("clinic profile", err)
	}
	if clinic.User, err = s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	return clinic, nil
}
