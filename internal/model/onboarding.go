package model

import (
	"fmt"
)

// OnboardingStage is the advisory workflow cursor stored on a user.
// It drives UI flow only and is never consulted for authorization.
type OnboardingStage string

const (
	StageNone                    OnboardingStage = ""
	StageRoleSelection           OnboardingStage = "ROLE_SELECTION"
	StageDoctorDetail            OnboardingStage = "doctor-detail"
	StageDoctorClinicDetail      OnboardingStage = "doctor-clinic-detail"
	StageClinicDetail            OnboardingStage = "clinic-detail"
	StageDoctorApprovalPending   OnboardingStage = "DOCTOR_APPROVAL_PENDING"
	StageClinicApprovalPending   OnboardingStage = "CLINIC_APPROVAL_PENDING"
	StageApprovedByAdmin         OnboardingStage = "APPROVED_BY_ADMIN"
	StageApprovedByClinic        OnboardingStage = "APPROVED_BY_CLINIC"
	StageRejected                OnboardingStage = "REJECTED"
	StageClinicRejectDoctor      OnboardingStage = "CLINIC_REJECT_DOCTOR"
	StagePatientProfileCompleted OnboardingStage = "PATIENT_PROFILE_COMPLETED"
)

var knownStages = map[OnboardingStage]struct{}{
	StageNone:                    {},
	StageRoleSelection:           {},
	StageDoctorDetail:            {},
	StageDoctorClinicDetail:      {},
	StageClinicDetail:            {},
	StageDoctorApprovalPending:   {},
	StageClinicApprovalPending:   {},
	StageApprovedByAdmin:         {},
	StageApprovedByClinic:        {},
	StageRejected:                {},
	StageClinicRejectDoctor:      {},
	StagePatientProfileCompleted: {},
}

// ParseStage maps a stored value onto the closed stage set.
func ParseStage(s string) (OnboardingStage, bool) {
	st := OnboardingStage(s)
	_, ok := knownStages[st]
	return st, ok
}

// OnboardingEvent is something that moves a user's stage.
type OnboardingEvent string

const (
	EventDoctorRoleSelected      OnboardingEvent = "doctor_role_selected"
	EventClinicRoleSelected      OnboardingEvent = "clinic_role_selected"
	EventClinicCreatedDoctor     OnboardingEvent = "clinic_created_doctor"
	EventPatientProfileCompleted OnboardingEvent = "patient_profile_completed"
	EventDoctorSubmittedToAdmin  OnboardingEvent = "doctor_submitted_to_admin"
	EventDoctorSubmittedToClinic OnboardingEvent = "doctor_submitted_to_clinic"
	EventClinicSubmitted         OnboardingEvent = "clinic_submitted"
	EventAdminApproved           OnboardingEvent = "admin_approved"
	EventAdminRejected           OnboardingEvent = "admin_rejected"
	EventClinicApproved          OnboardingEvent = "clinic_approved"
	EventClinicRejected          OnboardingEvent = "clinic_rejected"
)

type transition struct {
	from []OnboardingStage
	to   OnboardingStage
}

var (
	doctorSubmitFrom = []OnboardingStage{
		StageNone, StageRoleSelection, StageDoctorDetail, StageDoctorClinicDetail,
		StageDoctorApprovalPending, StageClinicApprovalPending,
		StageApprovedByAdmin, StageApprovedByClinic, StageRejected, StageClinicRejectDoctor,
	}
	clinicSubmitFrom = []OnboardingStage{
		StageNone, StageRoleSelection, StageClinicDetail,
		StageClinicApprovalPending, StageApprovedByAdmin, StageRejected,
	}
	reviewableFrom = []OnboardingStage{
		StageDoctorApprovalPending, StageClinicApprovalPending,
		StageApprovedByAdmin, StageApprovedByClinic, StageRejected, StageClinicRejectDoctor,
	}
	roleSelectionFrom = []OnboardingStage{
		StageNone, StageRoleSelection, StageDoctorDetail, StageClinicDetail,
	}
)

var transitions = map[OnboardingEvent]transition{
	EventDoctorRoleSelected:      {from: roleSelectionFrom, to: StageDoctorDetail},
	EventClinicRoleSelected:      {from: roleSelectionFrom, to: StageClinicDetail},
	EventClinicCreatedDoctor:     {from: []OnboardingStage{StageNone, StageRoleSelection}, to: StageDoctorClinicDetail},
	EventPatientProfileCompleted: {from: []OnboardingStage{StageNone, StageRoleSelection, StagePatientProfileCompleted}, to: StagePatientProfileCompleted},
	EventDoctorSubmittedToAdmin:  {from: doctorSubmitFrom, to: StageDoctorApprovalPending},
	EventDoctorSubmittedToClinic: {from: doctorSubmitFrom, to: StageClinicApprovalPending},
	EventClinicSubmitted:         {from: clinicSubmitFrom, to: StageClinicApprovalPending},
	EventAdminApproved:           {from: reviewableFrom, to: StageApprovedByAdmin},
	EventAdminRejected:           {from: reviewableFrom, to: StageRejected},
	EventClinicApproved:          {from: reviewableFrom, to: StageApprovedByClinic},
	EventClinicRejected:          {from: reviewableFrom, to: StageClinicRejectDoctor},
}

// EntryStage is where onboarding restarts when a user is moved onto role.
func EntryStage(role SystemRole) OnboardingStage {
	switch role {
	case RoleDoctor:
		return StageDoctorDetail
	case RoleClinic:
		return StageClinicDetail
	default:
		return StageRoleSelection
	}
}

// TransitionError reports an event that is not allowed from the current stage.
type TransitionError struct {
	From  string
	Event OnboardingEvent
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("onboarding event %q not allowed from stage %q", e.Event, e.From)
}

// NextStage applies event to the stored stage value current.
func NextStage(current string, event OnboardingEvent) (OnboardingStage, error) {
	t, ok := transitions[event]
	if !ok {
		return "", fmt.Errorf("unknown onboarding event %q", event)
	}
	from, ok := ParseStage(current)
	if !ok {
		return "", &TransitionError{From: current, Event: event}
	}
	for _, allowed := range t.from {
		if allowed == from {
			return t.to, nil
		}
	}
	return "", &TransitionError{From: current, Event: event}
}
