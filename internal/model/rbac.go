package model

import (
	"github.com/google/uuid"
)

// Statement is a single (resource, action) capability.
type Statement struct {
	Resource string `json:"resource" db:"resource"`
	Action   string `json:"action" db:"action"`
}

func (s Statement) String() string {
	return s.Resource + ":" + s.Action
}

// Role is an admin-defined (dynamic) role, or the row backing a fixed role when IsSystem is set.
type Role struct {
	Base
	Name        string        `db:"name" json:"name"`
	DisplayName string        `db:"display_name" json:"display_name"`
	Description string        `db:"description" json:"description"`
	IsSystem    bool          `db:"is_system" json:"is_system"`
	Permissions []*Permission `db:"-" json:"permissions,omitempty"`
}

// Permission is a seeded capability row, unique on (resource, action).
type Permission struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Resource    string    `db:"resource" json:"resource"`
	Action      string    `db:"action" json:"action"`
	Description string    `db:"description" json:"description"`
}

func (p *Permission) Statement() Statement {
	return Statement{Resource: p.Resource, Action: p.Action}
}

type CreateRoleRequest struct {
	Name        string      `json:"name" binding:"required,min=2,max=64"`
	DisplayName string      `json:"display_name" binding:"max=128"`
	Description string      `json:"description"`
	Permissions []Statement `json:"permissions" binding:"dive"`
}

type UpdateRoleRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=64"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=128"`
	Description *string `json:"description"`
}

type SetRolePermissionsRequest struct {
	Permissions []Statement `json:"permissions" binding:"required,dive"`
}

type PermissionCheckRequest struct {
	UserID   *string `json:"userId" binding:"omitempty,uuid"`
	Role     string  `json:"role"`
	Resource string  `json:"resource" binding:"required"`
	Action   string  `json:"action" binding:"required"`
}
