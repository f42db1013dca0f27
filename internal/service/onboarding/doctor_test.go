package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/model"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

func TestSubmitDoctorProfileStandalone(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	u, d := e.doctor(t, model.StageDoctorDetail, nil)

	req, err := e.svc.SubmitDoctorProfile(ctx, u.ID, &model.DoctorProfileUpdate{Specialization: strPtr("dermatology")}, "")
	require.NoError(t, err)

	assert.Equal(t, model.RequestTypeDoctor, req.RequestType)
	assert.Nil(t, req.ClinicID)
	assert.Equal(t, d.ID, req.EntityID)
	assert.Equal(t, model.ApprovalStatusPending, req.Status)
	assert.Equal(t, "dermatology", req.RequestData["specialization"])
	assert.Equal(t, string(model.StageDoctorApprovalPending), e.stage(t, u.ID))

	entity, ok := req.Entity.(model.DoctorEntity)
	require.True(t, ok)
	assert.Equal(t, "dermatology", *entity.Doctor.Specialization)

	n := e.notifier.last(t)
	assert.Equal(t, model.TargetAdmin, n.Target)
	assert.Equal(t, model.TemplateDoctorApprovalRequested, n.Template)
	assert.Equal(t, []string{e.admin.Email}, n.Recipients)
}

func TestSubmitDoctorProfileClinicLinked(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	clinicUser, clinic := e.clinic(t)
	u, _ := e.doctor(t, model.StageDoctorDetail, &clinic.ID)

	req, err := e.svc.SubmitDoctorProfile(ctx, u.ID, &model.DoctorProfileUpdate{Bio: strPtr("ten years in practice")}, "")
	require.NoError(t, err)

	require.NotNil(t, req.ClinicID)
	assert.Equal(t, clinic.ID, *req.ClinicID)
	assert.Equal(t, model.RequestTypeDoctor, req.RequestType)
	assert.Equal(t, string(model.StageClinicApprovalPending), e.stage(t, u.ID))

	n := e.notifier.last(t)
	assert.Equal(t, model.TargetClinic, n.Target)
	assert.Equal(t, []string{clinicUser.Email}, n.Recipients)
	assert.Equal(t, "Riverside Clinic", n.Payload["clinic_name"])
}

func TestSubmitDoctorProfileRefreshesPendingRequest(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	u, _ := e.doctor(t, model.StageDoctorDetail, nil)

	first, err := e.svc.SubmitDoctorProfile(ctx, u.ID, &model.DoctorProfileUpdate{Specialization: strPtr("cardiology")}, "")
	require.NoError(t, err)
	second, err := e.svc.SubmitDoctorProfile(ctx, u.ID, &model.DoctorProfileUpdate{Specialization: strPtr("neurology")}, "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	rows := e.store.ApprovalRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "neurology", rows[0].RequestData["specialization"])
	assert.Equal(t, model.ApprovalStatusPending, rows[0].Status)
}

func TestSubmitDoctorProfileContactFallback(t *testing.T) {
	tests := []struct {
		name       string
		configured model.FallbackPolicy
		requested  model.FallbackPolicy
		wantTarget model.NotificationTarget
	}{
		{"configured admin", model.FallbackAdmin, "", model.TargetAdmin},
		{"configured self", model.FallbackSelf, "", model.TargetSelf},
		{"per call override", model.FallbackAdmin, model.FallbackSelf, model.TargetSelf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, tt.configured)
			clinic := e.contactlessClinic(t)
			u, _ := e.doctor(t, model.StageDoctorDetail, &clinic.ID)

			req, err := e.svc.SubmitDoctorProfile(context.Background(), u.ID,
				&model.DoctorProfileUpdate{Qualification: strPtr("MBBS")}, tt.requested)
			require.NoError(t, err)
			require.NotNil(t, req.ClinicID, "routing does not depend on the contact")

			n := e.notifier.last(t)
			assert.Equal(t, tt.wantTarget, n.Target)
			if tt.wantTarget == model.TargetSelf {
				assert.Equal(t, []string{u.Email}, n.Recipients)
			} else {
				assert.Equal(t, []string{e.admin.Email}, n.Recipients)
			}
		})
	}
}

func TestSubmitDoctorProfileInvalidFallback(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	u, _ := e.doctor(t, model.StageDoctorDetail, nil)

	_, err := e.svc.SubmitDoctorProfile(context.Background(), u.ID,
		&model.DoctorProfileUpdate{Bio: strPtr("x")}, model.FallbackPolicy("nobody"))
	assert.True(t, apperrors.IsBadRequest(err))
	assert.Empty(t, e.store.ApprovalRows())
}

func TestSubmitDoctorProfileRejectsInvalidTransition(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	u, _ := e.doctor(t, model.StagePatientProfileCompleted, nil)

	_, err := e.svc.SubmitDoctorProfile(context.Background(), u.ID, &model.DoctorProfileUpdate{Bio: strPtr("x")}, "")
	assert.True(t, apperrors.IsBadRequest(err))
	assert.Empty(t, e.store.ApprovalRows())
	assert.Empty(t, e.notifier.all())
	assert.Equal(t, string(model.StagePatientProfileCompleted), e.stage(t, u.ID))
}

func TestSubmitDoctorProfileRequiresFields(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	u, _ := e.doctor(t, model.StageDoctorDetail, nil)

	_, err := e.svc.SubmitDoctorProfile(context.Background(), u.ID, &model.DoctorProfileUpdate{}, "")
	assert.True(t, apperrors.IsBadRequest(err))
	assert.Empty(t, e.store.ApprovalRows())
}

func TestSubmitDoctorProfileLicenseConflict(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	first, _ := e.doctor(t, model.StageDoctorDetail, nil)
	second, _ := e.doctor(t, model.StageDoctorDetail, nil)

	_, err := e.svc.SubmitDoctorProfile(ctx, first.ID, &model.DoctorProfileUpdate{LicenseNumber: strPtr("LIC-1")}, "")
	require.NoError(t, err)

	_, err = e.svc.SubmitDoctorProfile(ctx, second.ID, &model.DoctorProfileUpdate{LicenseNumber: strPtr("LIC-1")}, "")
	assert.True(t, apperrors.IsConflict(err))
	assert.Len(t, e.store.ApprovalRows(), 1)
	assert.Equal(t, string(model.StageDoctorDetail), e.stage(t, second.ID))
}

func TestSubmitDoctorProfileNotStoredWithoutRequest(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	u, d := e.doctor(t, model.StageDoctorDetail, nil)
	e.store.FailOn("approvals.CreateOrRefresh", errors.New("connection reset"))

	_, err := e.svc.SubmitDoctorProfile(ctx, u.ID, &model.DoctorProfileUpdate{Specialization: strPtr("neuro")}, "")
	require.Error(t, err)
	assert.False(t, apperrors.IsBadRequest(err))

	stored, err := e.store.Doctors().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Specialization)
	assert.Empty(t, e.store.ApprovalRows())
	assert.Equal(t, string(model.StageDoctorDetail), e.stage(t, u.ID))
	assert.Empty(t, e.notifier.all())

	e.store.FailOn("approvals.CreateOrRefresh", nil)
	_, err = e.svc.SubmitDoctorProfile(ctx, u.ID, &model.DoctorProfileUpdate{Specialization: strPtr("neuro")}, "")
	require.NoError(t, err)
	stored, err = e.store.Doctors().Get(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Specialization)
	assert.Equal(t, "neuro", *stored.Specialization)
}

func TestSubmitDoctorDocumentsRouting(t *testing.T) {
	docs := model.JSONMap{"license": "license.pdf"}

	t.Run("clinic-created doctor goes to clinic", func(t *testing.T) {
		e := newEnv(t, model.FallbackAdmin)
		_, clinic := e.clinic(t)
		u, _ := e.doctor(t, model.StageDoctorClinicDetail, &clinic.ID)

		req, err := e.svc.SubmitDoctorDocuments(context.Background(), u.ID, docs, "")
		require.NoError(t, err)
		require.NotNil(t, req.ClinicID)
		assert.Equal(t, clinic.ID, *req.ClinicID)
		assert.Equal(t, string(model.StageClinicApprovalPending), e.stage(t, u.ID))
	})

	t.Run("linked doctor past clinic detail goes to admin", func(t *testing.T) {
		e := newEnv(t, model.FallbackAdmin)
		_, clinic := e.clinic(t)
		u, _ := e.doctor(t, model.StageDoctorDetail, &clinic.ID)

		req, err := e.svc.SubmitDoctorDocuments(context.Background(), u.ID, docs, "")
		require.NoError(t, err)
		assert.Nil(t, req.ClinicID)
		assert.Equal(t, string(model.StageDoctorApprovalPending), e.stage(t, u.ID))
	})

	t.Run("documents are required", func(t *testing.T) {
		e := newEnv(t, model.FallbackAdmin)
		u, _ := e.doctor(t, model.StageDoctorDetail, nil)

		_, err := e.svc.SubmitDoctorDocuments(context.Background(), u.ID, nil, "")
		assert.True(t, apperrors.IsBadRequest(err))
	})
}

func TestUpdateDoctorProfileLeavesStage(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	u, _ := e.doctor(t, model.StageDoctorDetail, nil)

	doctor, err := e.svc.UpdateDoctorProfile(ctx, u.ID, &model.DoctorProfileUpdate{Bio: strPtr("hello")})
	require.NoError(t, err)
	assert.Equal(t, "hello", *doctor.Bio)
	assert.Equal(t, string(model.StageDoctorDetail), e.stage(t, u.ID))
	assert.Empty(t, e.store.ApprovalRows())
	assert.Empty(t, e.notifier.all())

	got, err := e.svc.GetDoctorProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", *got.Bio)
	assert.Equal(t, u.Email, got.User.Email)
}
