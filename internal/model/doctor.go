package model

import (
	"github.com/google/uuid"
)

type Doctor struct {
	Base
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	ClinicID        *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	Specialization  *string    `db:"specialization" json:"specialization,omitempty"`
	LicenseNumber   *string    `db:"license_number" json:"license_number,omitempty"`
	Qualification   *string    `db:"qualification" json:"qualification,omitempty"`
	ExperienceYears *int       `db:"experience_years" json:"experience_years,omitempty"`
	Bio             *string    `db:"bio" json:"bio,omitempty"`
	Documents       JSONMap    `db:"documents" json:"documents"`

	User   *User   `db:"-" json:"user,omitempty"`
	Clinic *Clinic `db:"-" json:"clinic,omitempty"`
}

// HasClinic reports whether the doctor is linked to a clinic.
func (d *Doctor) HasClinic() bool {
	return d.ClinicID != nil && *d.ClinicID != uuid.Nil
}

// DoctorProfileUpdate carries the mutable doctor fields. Nil fields are left untouched.
type DoctorProfileUpdate struct {
	Specialization  *string `json:"specialization"`
	LicenseNumber   *string `json:"license_number"`
	Qualification   *string `json:"qualification"`
	ExperienceYears *int    `json:"experience_years" binding:"omitempty,min=0,max=80"`
	Bio             *string `json:"bio"`
	Documents       JSONMap `json:"documents"`
}

// Apply writes the non-nil fields of u onto d and returns the submitted fields as a snapshot.
func (u *DoctorProfileUpdate) Apply(d *Doctor) JSONMap {
	snapshot := JSONMap{}
	if u.Specialization != nil {
		d.Specialization = u.Specialization
		snapshot["specialization"] = *u.Specialization
	}
	if u.LicenseNumber != nil {
		d.LicenseNumber = u.LicenseNumber
		snapshot["license_number"] = *u.LicenseNumber
	}
	if u.Qualification != nil {
		d.Qualification = u.Qualification
		snapshot["qualification"] = *u.Qualification
	}
	if u.ExperienceYears != nil {
		d.ExperienceYears = u.ExperienceYears
		snapshot["experience_years"] = *u.ExperienceYears
	}
	if u.Bio != nil {
		d.Bio = u.Bio
		snapshot["bio"] = *u.Bio
	}
	if len(u.Documents) > 0 {
		d.Documents = d.Documents.Merge(u.Documents)
		snapshot["documents"] = map[string]interface{}(u.Documents)
	}
	return snapshot
}

// CreateClinicDoctorRequest is submitted by a clinic to open a doctor account under it.
type CreateClinicDoctorRequest struct {
	Email          string  `json:"email" binding:"required,email"`
	Name           string  `json:"name" binding:"required"`
	Specialization *string `json:"specialization"`
	LicenseNumber  *string `json:"license_number"`
}
