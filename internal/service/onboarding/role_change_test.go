package onboarding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	usersvc "github.com/jwalitptl/onboarding-api/internal/service/user"
	"github.com/jwalitptl/onboarding-api/pkg/logger"
)

func TestReassignedUserCanSubmit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, model.FallbackAdmin)
	users := usersvc.NewService(e.store.Users(), nil, audit.NopRecorder{}, logger.Nop())

	t.Run("patient made doctor", func(t *testing.T) {
		patient := e.user(t, model.RolePatient, model.StagePatientProfileCompleted)
		require.NoError(t, e.store.Doctors().Create(ctx, &model.Doctor{UserID: patient.ID}))

		_, err := users.SetSystemRole(ctx, e.admin.ID, patient.ID, "DOCTOR")
		require.NoError(t, err)

		req, err := e.svc.SubmitDoctorProfile(ctx, patient.ID, &model.DoctorProfileUpdate{Specialization: strPtr("neurology")}, "")
		require.NoError(t, err)
		assert.Equal(t, model.RequestTypeDoctor, req.RequestType)
		assert.Equal(t, string(model.StageDoctorApprovalPending), e.stage(t, patient.ID))
	})

	t.Run("pending doctor made clinic", func(t *testing.T) {
		doctor, _ := e.doctor(t, model.StageDoctorApprovalPending, nil)
		require.NoError(t, e.store.Clinics().Create(ctx, &model.Clinic{UserID: doctor.ID, Name: "Harbor Clinic"}))

		_, err := users.SetSystemRole(ctx, e.admin.ID, doctor.ID, "CLINIC")
		require.NoError(t, err)

		req, err := e.svc.SubmitClinicProfile(ctx, doctor.ID, &model.ClinicProfileUpdate{Address: strPtr("3 Quay Rd")})
		require.NoError(t, err)
		assert.Equal(t, model.RequestTypeClinic, req.RequestType)
		assert.Equal(t, string(model.StageClinicApprovalPending), e.stage(t, doctor.ID))
	})

	t.Run("clinic made doctor", func(t *testing.T) {
		clinicUser, _ := e.clinic(t)
		require.NoError(t, e.store.Doctors().Create(ctx, &model.Doctor{UserID: clinicUser.ID}))

		_, err := users.SetSystemRole(ctx, e.admin.ID, clinicUser.ID, "doctor")
		require.NoError(t, err)

		_, err = e.svc.SubmitDoctorDocuments(ctx, clinicUser.ID, model.JSONMap{"license": "s3://docs/license.pdf"}, "")
		require.NoError(t, err)
		assert.Equal(t, string(model.StageDoctorApprovalPending), e.stage(t, clinicUser.ID))
	})
}
