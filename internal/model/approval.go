package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ApprovalRequestType string

const (
	RequestTypeDoctor ApprovalRequestType = "DOCTOR"
	RequestTypeClinic ApprovalRequestType = "CLINIC"
)

func (t ApprovalRequestType) Valid() bool {
	return t == RequestTypeDoctor || t == RequestTypeClinic
}

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

// ApprovalRequest is a review of a doctor's or clinic's profile change.
// A non-nil ClinicID places it in that clinic's queue; nil places it in the admin queue.
type ApprovalRequest struct {
	Base
	RequestType     ApprovalRequestType `db:"request_type" json:"request_type"`
	UserID          uuid.UUID           `db:"user_id" json:"user_id"`
	EntityID        uuid.UUID           `db:"entity_id" json:"entity_id"`
	ClinicID        *uuid.UUID          `db:"clinic_id" json:"clinic_id"`
	Status          ApprovalStatus      `db:"status" json:"status"`
	RejectionReason *string             `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time          `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RenewalDate     *time.Time          `db:"renewal_date" json:"renewal_date,omitempty"`
	RequestData     JSONMap             `db:"request_data" json:"request_data"`

	Entity ApprovalEntity `db:"-" json:"entity,omitempty"`
}

// IsClinicScoped reports whether r belongs to a clinic review queue.
func (r *ApprovalRequest) IsClinicScoped() bool {
	return r.ClinicID != nil
}

// ApprovalEntity is the record an approval request refers to: either a DoctorEntity or a ClinicEntity.
type ApprovalEntity interface {
	EntityType() ApprovalRequestType
	approvalEntity()
}

type DoctorEntity struct {
	Doctor *Doctor
}

func (DoctorEntity) EntityType() ApprovalRequestType { return RequestTypeDoctor }
func (DoctorEntity) approvalEntity()                 {}

func (e DoctorEntity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   ApprovalRequestType `json:"type"`
		Doctor *Doctor             `json:"doctor"`
	}{RequestTypeDoctor, e.Doctor})
}

type ClinicEntity struct {
	Clinic *Clinic
}

func (ClinicEntity) EntityType() ApprovalRequestType { return RequestTypeClinic }
func (ClinicEntity) approvalEntity()                 {}

func (e ClinicEntity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   ApprovalRequestType `json:"type"`
		Clinic *Clinic             `json:"clinic"`
	}{RequestTypeClinic, e.Clinic})
}

// ApprovalScope selects which review queue a query may see.
type ApprovalScope struct {
	clinicID *uuid.UUID
}

// AdminScope sees only requests without a clinic.
func AdminScope() ApprovalScope {
	return ApprovalScope{}
}

// ClinicScope sees only DOCTOR requests addressed to clinicID.
func ClinicScope(clinicID uuid.UUID) ApprovalScope {
	return ApprovalScope{clinicID: &clinicID}
}

func (s ApprovalScope) IsAdmin() bool {
	return s.clinicID == nil
}

// ClinicID returns the clinic of a clinic scope.
func (s ApprovalScope) ClinicID() (uuid.UUID, bool) {
	if s.clinicID == nil {
		return uuid.Nil, false
	}
	return *s.clinicID, true
}

func (s ApprovalScope) String() string {
	if s.IsAdmin() {
		return "admin"
	}
	return "clinic"
}

// Admits reports whether r is visible in s.
func (s ApprovalScope) Admits(r *ApprovalRequest) bool {
	if s.IsAdmin() {
		return r.ClinicID == nil
	}
	return r.ClinicID != nil && *r.ClinicID == *s.clinicID && r.RequestType == RequestTypeDoctor
}

// Decision is a single adjudication applied to a pending request.
type Decision struct {
	RequestID       uuid.UUID
	Scope           ApprovalScope
	Status          ApprovalStatus
	ReviewerID      uuid.UUID
	RejectionReason *string
	RenewalDate     *time.Time
	ReviewedAt      time.Time
	// NextStage is written to the requesting user in the same transaction.
	NextStage OnboardingStage
}

type ApprovalListQuery struct {
	Status string `form:"status" binding:"omitempty,approval_status"`
}

type ApproveRequest struct {
	RequestID string `json:"requestId" binding:"required,uuid"`
}

type ClinicApproveRequest struct {
	RequestID   string     `json:"requestId" binding:"required,uuid"`
	RenewalDate *time.Time `json:"renewalDate"`
}

type RejectRequest struct {
	RequestID       string `json:"requestId" binding:"required,uuid"`
	RejectionReason string `json:"rejectionReason"`
}
