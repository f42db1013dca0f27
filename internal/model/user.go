package model

import (
	"strings"

	"github.com/google/uuid"
)

// SystemRole is the fixed role stored directly on a user row.
type SystemRole string

const (
	RoleGuest   SystemRole = "GUEST"
	RolePatient SystemRole = "PATIENT"
	RoleDoctor  SystemRole = "DOCTOR"
	RoleClinic  SystemRole = "CLINIC"
	RoleAdmin   SystemRole = "ADMIN"
)

// SystemRoles lists every fixed role in a stable order.
var SystemRoles = []SystemRole{RoleGuest, RolePatient, RoleDoctor, RoleClinic, RoleAdmin}

// RoleNameEquals is the only comparison allowed between role names.
// Role names are case-insensitive: "ADMIN", "admin" and "Admin" are the same role.
func RoleNameEquals(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

// Is reports whether name denotes r.
func (r SystemRole) Is(name string) bool {
	return RoleNameEquals(string(r), name)
}

// IsAdminRole reports whether name denotes the ADMIN system role.
func IsAdminRole(name string) bool {
	return RoleAdmin.Is(name)
}

// ParseSystemRole resolves name to a fixed role, case-insensitively.
func ParseSystemRole(name string) (SystemRole, bool) {
	for _, r := range SystemRoles {
		if r.Is(name) {
			return r, true
		}
	}
	return "", false
}

// IsReservedRoleName reports whether name collides with a fixed role.
func IsReservedRoleName(name string) bool {
	_, ok := ParseSystemRole(name)
	return ok
}

// User represents a platform principal
type User struct {
	Base
	Email           string     `json:"email" db:"email"`
	Name            string     `json:"name" db:"name"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	Role            string     `json:"role" db:"role"`
	RoleID          *uuid.UUID `json:"role_id,omitempty" db:"role_id"`
	OnboardingStage string     `json:"onboarding_stage" db:"onboarding_stage"`
}

// SystemRole returns the parsed fixed role of u; ok is false for unknown values.
func (u *User) SystemRole() (SystemRole, bool) {
	return ParseSystemRole(u.Role)
}

type SetSystemRoleRequest struct {
	Role string `json:"role" binding:"required,system_role"`
}

type AssignRoleRequest struct {
	RoleID *string `json:"role_id" binding:"omitempty,uuid"`
}
