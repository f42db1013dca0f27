package onboarding

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service"
	"github.com/jwalitptl/onboarding-api/internal/service/approval"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

type decision struct {
	scope       model.ApprovalScope
	requestID   uuid.UUID
	reviewerID  uuid.UUID
	status      model.ApprovalStatus
	event       model.OnboardingEvent
	reason      *string
	renewalDate *time.Time
}

// Approve accepts a pending admin-queue request and moves the requester to APPROVED_BY_ADMIN.
func (s *Service) Approve(ctx context.Context, requestID, reviewerID uuid.UUID) (*model.ApprovalRequest, error) {
	return s.decide(ctx, decision{
		scope:      model.AdminScope(),
		requestID:  requestID,
		reviewerID: reviewerID,
		status:     model.ApprovalStatusApproved,
		event:      model.EventAdminApproved,
	})
}

// Reject declines a pending admin-queue request. reason must not be blank.
func (s *Service) Reject(ctx context.Context, requestID, reviewerID uuid.UUID, reason string) (*model.ApprovalRequest, error) {
	r, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, decision{
		scope:      model.AdminScope(),
		requestID:  requestID,
		reviewerID: reviewerID,
		status:     model.ApprovalStatusRejected,
		event:      model.EventAdminRejected,
		reason:     &r,
	})
}

// ApproveByClinic accepts a pending doctor request in the queue of the clinic owned by
// clinicUserID. Requests of other clinics are reported as not found.
func (s *Service) ApproveByClinic(ctx context.Context, requestID, clinicUserID uuid.UUID, renewalDate *time.Time) (*model.ApprovalRequest, error) {
	if renewalDate != nil && !renewalDate.After(time.Now()) {
		return nil, apperrors.Validation("renewal date must be in the future")
	}
	scope, err := s.clinicScope(ctx, clinicUserID)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, decision{
		scope:       scope,
		requestID:   requestID,
		reviewerID:  clinicUserID,
		status:      model.ApprovalStatusApproved,
		event:       model.EventClinicApproved,
		renewalDate: renewalDate,
	})
}

// RejectByClinic declines a pending doctor request in the clinic's queue.
func (s *Service) RejectByClinic(ctx context.Context, requestID, clinicUserID uuid.UUID, reason string) (*model.ApprovalRequest, error) {
	r, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	scope, err := s.clinicScope(ctx, clinicUserID)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, decision{
		scope:      scope,
		requestID:  requestID,
		reviewerID: clinicUserID,
		status:     model.ApprovalStatusRejected,
		event:      model.EventClinicRejected,
		reason:     &r,
	})
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", apperrors.Validation("rejection reason is required")
	}
	return reason, nil
}

func (s *Service) clinicScope(ctx context.Context, clinicUserID uuid.UUID) (model.ApprovalScope, error) {
	clinic, err := s.clinics.GetByUserID(ctx, clinicUserID)
	if err != nil {
		return model.ApprovalScope{}, service.StoreError("clinic", err)
	}
	return model.ClinicScope(clinic.ID), nil
}

func (s *Service) decide(ctx context.Context, d decision) (*model.ApprovalRequest, error) {
	req, err := s.approvals.Get(ctx, d.requestID, d.scope)
	if err != nil {
		return nil, err
	}
	if req.Status != model.ApprovalStatusPending {
		return nil, apperrors.NotFound("approval request", nil)
	}
	if clinicID, ok := d.scope.ClinicID(); ok && !approval.LinkedToClinic(req, clinicID) {
		return nil, apperrors.NotFound("approval request", nil)
	}

	user, err := s.getUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	next, err := nextStage(user, d.event)
	if err != nil {
		return nil, err
	}

	decided, err := s.approvals.Decide(ctx, &model.Decision{
		RequestID:       d.requestID,
		Scope:           d.scope,
		Status:          d.status,
		ReviewerID:      d.reviewerID,
		RejectionReason: d.reason,
		RenewalDate:     d.renewalDate,
		NextStage:       next,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDecision(d.scope.String(), string(d.status))

	action := model.AuditActionApprove
	changes := map[string]interface{}{"status": string(d.status), "onboarding_stage": string(next)}
	if d.status == model.ApprovalStatusRejected {
		action = model.AuditActionReject
		changes["rejection_reason"] = *d.reason
	}
	if d.renewalDate != nil {
		changes["renewal_date"] = d.renewalDate.UTC().Format(time.RFC3339)
	}
	reviewer := d.reviewerID
	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &reviewer,
		Action:     action,
		EntityType: model.AuditEntityApproval,
		EntityID:   decided.ID,
		Changes:    changes,
	})

	user.OnboardingStage = string(next)
	s.notifyDecision(ctx, d, decided, user)
	return decided, nil
}

func (s *Service) notifyDecision(ctx context.Context, d decision, req *model.ApprovalRequest, requester *model.User) {
	payload := map[string]interface{}{
		"name":       requester.Name,
		"request_id": req.ID.String(),
	}
	if d.reason != nil {
		payload["reason"] = *d.reason
	}

	var clinic *model.Clinic
	switch e := req.Entity.(type) {
	case model.DoctorEntity:
		if e.Doctor != nil {
			clinic = e.Doctor.Clinic
		}
	case model.ClinicEntity:
		clinic = e.Clinic
	}
	if clinic != nil {
		payload["clinic_name"] = clinic.Name
	}

	if !d.scope.IsAdmin() {
		template := model.TemplateClinicApprovedDoctor
		if d.status == model.ApprovalStatusRejected {
			template = model.TemplateClinicRejectedDoctor
		}
		if d.renewalDate != nil {
			payload["renewal_date"] = d.renewalDate.UTC().Format("2006-01-02")
		}
		s.notifyOne(ctx, model.TargetSelf, requester.Email, template, payload)
		return
	}

	switch req.RequestType {
	case model.RequestTypeClinic:
		template := model.TemplateClinicApproved
		if d.status == model.ApprovalStatusRejected {
			template = model.TemplateClinicRejected
		}
		email := clinic.ContactEmail()
		if email == "" {
			email = requester.Email
		}
		s.notifyOne(ctx, model.TargetClinic, email, template, payload)
	default:
		template := model.TemplateDoctorApproved
		if d.status == model.ApprovalStatusRejected {
			template = model.TemplateDoctorRejected
		}
		s.notifyOne(ctx, model.TargetSelf, requester.Email, template, payload)
	}
}
