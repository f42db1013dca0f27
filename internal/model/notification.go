package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationTarget names who a notification is addressed to.
type NotificationTarget string

const (
	TargetClinic NotificationTarget = "clinic"
	TargetAdmin  NotificationTarget = "admin"
	TargetSelf   NotificationTarget = "self"
	TargetNone   NotificationTarget = "none"
)

// TemplateKey selects a message template.
type TemplateKey string

const (
	TemplateDoctorApprovalRequested TemplateKey = "doctor_approval_requested"
	TemplateClinicApprovalRequested TemplateKey = "clinic_approval_requested"
	TemplateClinicDocumentsUpdated  TemplateKey = "clinic_documents_updated"
	TemplateDoctorApproved          TemplateKey = "doctor_approved"
	TemplateClinicApproved          TemplateKey = "clinic_approved"
	TemplateDoctorRejected          TemplateKey = "doctor_rejected"
	TemplateClinicRejected          TemplateKey = "clinic_rejected"
	TemplateClinicRejectedDoctor    TemplateKey = "clinic_rejected_doctor"
	TemplateClinicApprovedDoctor    TemplateKey = "clinic_approved_doctor"
	TemplateDoctorWelcome           TemplateKey = "doctor_welcome"
)

// Notification is a routing decision handed to the dispatcher.
type Notification struct {
	Target     NotificationTarget     `json:"target"`
	Recipients []string               `json:"recipients"`
	Template   TemplateKey            `json:"template"`
	Payload    map[string]interface{} `json:"payload"`
}

// NotificationEvent is the message published on the broker after delivery.
type NotificationEvent struct {
	ID         uuid.UUID          `json:"id"`
	Target     NotificationTarget `json:"target"`
	Template   TemplateKey        `json:"template"`
	Recipients []string           `json:"recipients"`
	SentAt     time.Time          `json:"sent_at"`
}

// FallbackPolicy decides who is notified when a clinic has no resolvable contact email.
type FallbackPolicy string

const (
	FallbackAdmin FallbackPolicy = "admin"
	FallbackSelf  FallbackPolicy = "self"
)

func ParseFallbackPolicy(s string) (FallbackPolicy, bool) {
	switch FallbackPolicy(s) {
	case FallbackAdmin:
		return FallbackAdmin, true
	case FallbackSelf:
		return FallbackSelf, true
	}
	return "", false
}
