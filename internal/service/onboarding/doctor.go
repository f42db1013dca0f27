package onboarding

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
	"github.com/jwalitptl/onboarding-api/internal/service"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

// clinicRouter decides, before the update is applied, whether a doctor submission
// goes to the doctor's clinic instead of the admins.
type clinicRouter func(user *model.User, doctor *model.Doctor) bool

// routeByClinicLink sends the submission to the clinic whenever the doctor has one.
func routeByClinicLink(_ *model.User, doctor *model.Doctor) bool {
	return doctor.HasClinic()
}

// routeByClinicStage sends documents to the clinic only for doctors a clinic created
// that are still filling in their details.
func routeByClinicStage(user *model.User, doctor *model.Doctor) bool {
	return user.OnboardingStage == string(model.StageDoctorClinicDetail) && doctor.HasClinic()
}

// SubmitDoctorProfile applies a professional info or details change and opens (or
// refreshes) a review request with the doctor's clinic, or with the admins when the
// doctor has no clinic. fallback picks who is told when the clinic has no contact
// email; empty uses the configured default.
func (s *Service) SubmitDoctorProfile(ctx context.Context, userID uuid.UUID, update *model.DoctorProfileUpdate, fallback model.FallbackPolicy) (*model.ApprovalRequest, error) {
	return s.submitDoctor(ctx, userID, update, routeByClinicLink, fallback)
}

// SubmitDoctorDocuments stores uploaded documents and opens a review request. It is
// routed to the clinic only when the doctor was at doctor-clinic-detail before the
// upload and is linked to a clinic.
func (s *Service) SubmitDoctorDocuments(ctx context.Context, userID uuid.UUID, documents model.JSONMap, fallback model.FallbackPolicy) (*model.ApprovalRequest, error) {
	if len(documents) == 0 {
		return nil, apperrors.Validation("documents are required")
	}
	return s.submitDoctor(ctx, userID, &model.DoctorProfileUpdate{Documents: documents}, routeByClinicStage, fallback)
}

// UpdateDoctorProfile persists a change that needs no review. The onboarding stage is untouched.
func (s *Service) UpdateDoctorProfile(ctx context.Context, userID uuid.UUID, update *model.DoctorProfileUpdate) (*model.Doctor, error) {
	if update == nil {
		return nil, apperrors.Validation("profile update is required")
	}
	doctor, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, service.StoreError("doctor profile", err)
	}

	changes := update.Apply(doctor)
	if len(changes) == 0 {
		return doctor, nil
	}
	if err := s.doctors.Update(ctx, doctor); err != nil {
		return nil, doctorUpdateError(err)
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &userID,
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityDoctor,
		EntityID:   doctor.ID,
		Changes:    changes,
	})
	return doctor, nil
}

// GetDoctorProfile returns the doctor owned by userID with its user and clinic attached.
func (s *Service) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, service.StoreError("doctor profile", err)
	}
	if doctor.User, err = s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	if doctor.HasClinic() {
		doctor.Clinic = s.loadClinicContact(ctx, *doctor.ClinicID)
	}
	return doctor, nil
}

func (s *Service) submitDoctor(ctx context.Context, userID uuid.UUID, update *model.DoctorProfileUpdate, toClinic clinicRouter, policy model.FallbackPolicy) (*model.ApprovalRequest, error) {
	if update == nil {
		return nil, apperrors.Validation("profile update is required")
	}
	fallback, err := s.resolveFallback(policy)
	if err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, service.StoreError("doctor profile", err)
	}

	clinicRoute := toClinic(user, doctor)
	event := model.EventDoctorSubmittedToAdmin
	if clinicRoute {
		event = model.EventDoctorSubmittedToClinic
	}
	next, err := nextStage(user, event)
	if err != nil {
		return nil, err
	}

	snapshot := update.Apply(doctor)
	if len(snapshot) == 0 {
		return nil, apperrors.Validation("no profile fields submitted")
	}

	// The profile change is stored with the request, never ahead of it.
	req := &model.ApprovalRequest{
		RequestType: model.RequestTypeDoctor,
		UserID:      user.ID,
		EntityID:    doctor.ID,
		RequestData: snapshot,
		Entity:      model.DoctorEntity{Doctor: doctor},
	}
	scope := model.AdminScope()
	if clinicRoute {
		clinicID := *doctor.ClinicID
		req.ClinicID = &clinicID
		scope = model.ClinicScope(clinicID)
	}

	refreshed, err := s.approvals.CreateOrRefresh(ctx, req, next)
	if err != nil {
		return nil, doctorUpdateError(err)
	}
	s.metrics.ObserveSubmission(string(model.RequestTypeDoctor), scope.String(), refreshed)

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
	doctor.User = user
	if clinicRoute {
		doctor.Clinic = s.loadClinicContact(ctx, *doctor.ClinicID)
	}

	s.notifyDoctorSubmission(ctx, req, doctor, clinicRoute, fallback)
	return req, nil
}

func (s *Service) notifyDoctorSubmission(ctx context.Context, req *model.ApprovalRequest, doctor *model.Doctor, clinicRoute bool, fallback model.FallbackPolicy) {
	payload := map[string]interface{}{
		"doctor_name":  doctor.User.Name,
		"doctor_email": doctor.User.Email,
		"request_id":   req.ID.String(),
		"scope":        model.AdminScope().String(),
	}
	if !clinicRoute {
		s.notifyAdmins(ctx, model.TemplateDoctorApprovalRequested, payload)
		return
	}

	payload["scope"] = "clinic"
	if contact := doctor.Clinic.ContactEmail(); contact != "" {
		payload["clinic_name"] = doctor.Clinic.Name
		s.notifyOne(ctx, model.TargetClinic, contact, model.TemplateDoctorApprovalRequested, payload)
		return
	}

	s.logger.Info().
		Str("request_id", req.ID.String()).
		Str("fallback", string(fallback)).
		Msg("clinic has no contact email, using fallback recipients")
	switch fallback {
	case model.FallbackSelf:
		s.notifyOne(ctx, model.TargetSelf, doctor.User.Email, model.TemplateDoctorApprovalRequested, payload)
	default:
		s.notifyAdmins(ctx, model.TemplateDoctorApprovalRequested, payload)
	}
}

func doctorUpdateError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.Conflict("license number already registered", err)
	}
	return service.StoreError("doctor profile", err)
}
