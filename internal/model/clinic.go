package model

import (
	"github.com/google/uuid"
)

type Clinic struct {
	Base
	UserID             uuid.UUID `db:"user_id" json:"user_id"`
	Name               string    `db:"name" json:"name"`
	Email              *string   `db:"email" json:"email,omitempty"`
	Phone              *string   `db:"phone" json:"phone,omitempty"`
	Address            *string   `db:"address" json:"address,omitempty"`
	RegistrationNumber *string   `db:"registration_number" json:"registration_number,omitempty"`
	Documents          JSONMap   `db:"documents" json:"documents"`

	User *User `db:"-" json:"user,omitempty"`
}

// ContactEmail resolves where clinic notifications go: the linked user's email,
// then the clinic's own email. Empty when neither is set.
func (c *Clinic) ContactEmail() string {
	if c == nil {
		return ""
	}
	if c.User != nil && c.User.Email != "" {
		return c.User.Email
	}
	if c.Email != nil {
		return *c.Email
	}
	return ""
}

// ClinicProfileUpdate carries the mutable clinic fields. Nil fields are left untouched.
type ClinicProfileUpdate struct {
	Name               *string `json:"name" binding:"omitempty,min=2"`
	Email              *string `json:"email" binding:"omitempty,email"`
	Phone              *string `json:"phone"`
	Address            *string `json:"address"`
	RegistrationNumber *string `json:"registration_number"`
	Documents          JSONMap `json:"documents"`
}

// Apply writes the non-nil fields of u onto c and returns the submitted fields as a snapshot.
func (u *ClinicProfileUpdate) Apply(c *Clinic) JSONMap {
	snapshot := JSONMap{}
	if u.Name != nil {
		c.Name = *u.Name
		snapshot["name"] = *u.Name
	}
	if u.Email != nil {
		c.Email = u.Email
		snapshot["email"] = *u.Email
	}
	if u.Phone != nil {
		c.Phone = u.Phone
		snapshot["phone"] = *u.Phone
	}
	if u.Address != nil {
		c.Address = u.Address
		snapshot["address"] = *u.Address
	}
	if u.RegistrationNumber != nil {
		c.RegistrationNumber = u.RegistrationNumber
		snapshot["registration_number"] = *u.RegistrationNumber
	}
	if len(u.Documents) > 0 {
		c.Documents = c.Documents.Merge(u.Documents)
		snapshot["documents"] = map[string]interface{}(u.Documents)
	}
	return snapshot
}
