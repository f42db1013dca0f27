package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestApprovalScopeAdmits(t *testing.T) {
	clinicA := uuid.New()
	clinicB := uuid.New()

	adminReq := &ApprovalRequest{RequestType: RequestTypeDoctor}
	clinicReq := &ApprovalRequest{RequestType: RequestTypeDoctor, ClinicID: &clinicA}
	clinicTypedWrong := &ApprovalRequest{RequestType: RequestTypeClinic, ClinicID: &clinicA}

	assert.True(t, AdminScope().Admits(adminReq))
	assert.False(t, AdminScope().Admits(clinicReq))

	assert.True(t, ClinicScope(clinicA).Admits(clinicReq))
	assert.False(t, ClinicScope(clinicB).Admits(clinicReq))
	assert.False(t, ClinicScope(clinicA).Admits(adminReq))
	assert.False(t, ClinicScope(clinicA).Admits(clinicTypedWrong))

	id, ok := ClinicScope(clinicA).ClinicID()
	assert.True(t, ok)
	assert.Equal(t, clinicA, id)
	assert.Equal(t, "admin", AdminScope().String())
	assert.Equal(t, "clinic", ClinicScope(clinicA).String())
}

func TestClinicContactEmail(t *testing.T) {
	own := "front-desk@clinic.test"

	assert.Equal(t, "", (*Clinic)(nil).ContactEmail())
	assert.Equal(t, "", (&Clinic{}).ContactEmail())
	assert.Equal(t, own, (&Clinic{Email: &own}).ContactEmail())
	assert.Equal(t, "owner@clinic.test", (&Clinic{
		Email: &own,
		User:  &User{Email: "owner@clinic.test"},
	}).ContactEmail())
}

func TestDoctorProfileUpdateApply(t *testing.T) {
	spec := "cardiology"
	years := 7
	doctor := &Doctor{Documents: JSONMap{"license": "a.pdf"}}

	snapshot := (&DoctorProfileUpdate{
		Specialization:  &spec,
		ExperienceYears: &years,
		Documents:       JSONMap{"degree": "b.pdf"},
	}).Apply(doctor)

	assert.Equal(t, "cardiology", *doctor.Specialization)
	assert.Equal(t, 7, *doctor.ExperienceYears)
	assert.Nil(t, doctor.Bio)
	assert.Equal(t, "a.pdf", doctor.Documents["license"])
	assert.Equal(t, "b.pdf", doctor.Documents["degree"])
	assert.Len(t, snapshot, 3)
	assert.Equal(t, "cardiology", snapshot["specialization"])

	assert.Empty(t, (&DoctorProfileUpdate{}).Apply(doctor))
}
