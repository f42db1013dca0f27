package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id" db:"entity_id"`
	Changes    JSONMap    `json:"changes" db:"changes"`
	IPAddress  string     `json:"ip_address" db:"ip_address"`
	UserAgent  string     `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate  = "create"
	AuditActionUpdate  = "update"
	AuditActionDelete  = "delete"
	AuditActionApprove = "approve"
	AuditActionReject  = "reject"
	AuditActionAssign  = "assign"
	AuditActionLogin   = "login"

	// Entity types
	AuditEntityUser     = "user"
	AuditEntityRole     = "role"
	AuditEntityDoctor   = "doctor"
	AuditEntityClinic   = "clinic"
	AuditEntityApproval = "approval_request"
)

type AuditFilter struct {
	UserID     string `form:"user_id" binding:"omitempty,uuid"`
	EntityType string `form:"entity_type"`
	Action     string `form:"action"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
}
