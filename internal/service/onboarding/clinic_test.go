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

func TestSubmitClinicProfile(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	clinicUser, clinic := e.clinic(t)

	req, err := e.svc.SubmitClinicProfile(ctx, clinicUser.ID, &model.ClinicProfileUpdate{Address: strPtr("1 Main St")})
	require.NoError(t, err)

	assert.Equal(t, model.RequestTypeClinic, req.RequestType)
	assert.Nil(t, req.ClinicID, "clinic requests always go to admins")
	assert.Equal(t, clinic.ID, req.EntityID)
	assert.Equal(t, string(model.StageClinicApprovalPending), e.stage(t, clinicUser.ID))

	n := e.notifier.last(t)
	assert.Equal(t, model.TargetAdmin, n.Target)
	assert.Equal(t, model.TemplateClinicApprovalRequested, n.Template)

	again, err := e.svc.SubmitClinicProfile(ctx, clinicUser.ID, &model.ClinicProfileUpdate{Address: strPtr("2 Main St")})
	require.NoError(t, err)
	assert.Equal(t, req.ID, again.ID)
	require.Len(t, e.store.ApprovalRows(), 1)
	assert.Equal(t, "2 Main St", e.store.ApprovalRows()[0].RequestData["address"])
}

func TestSubmitClinicProfileNotStoredWithoutRequest(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	clinicUser, clinic := e.clinic(t)
	e.store.FailOn("approvals.CreateOrRefresh", errors.New("connection reset"))

	_, err := e.svc.SubmitClinicProfile(ctx, clinicUser.ID, &model.ClinicProfileUpdate{RegistrationNumber: strPtr("REG-9")})
	require.Error(t, err)

	stored, err := e.store.Clinics().Get(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RegistrationNumber)
	assert.Empty(t, e.store.ApprovalRows())
	assert.Equal(t, string(model.StageClinicDetail), e.stage(t, clinicUser.ID))
}

func TestSubmitClinicDocuments(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	clinicUser, _ := e.clinic(t)

	_, err := e.svc.SubmitClinicDocuments(ctx, clinicUser.ID, model.JSONMap{})
	assert.True(t, apperrors.IsBadRequest(err))

	req, err := e.svc.SubmitClinicDocuments(ctx, clinicUser.ID, model.JSONMap{"registration": "reg.pdf"})
	require.NoError(t, err)
	assert.Equal(t, model.RequestTypeClinic, req.RequestType)

	profile, err := e.svc.GetClinicProfile(ctx, clinicUser.ID)
	require.NoError(t, err)
	assert.Equal(t, "reg.pdf", profile.Documents["registration"])
}

func TestNotifyClinicDocumentsUpdate(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	clinicUser, _ := e.clinic(t)

	clinic, err := e.svc.NotifyClinicDocumentsUpdate(ctx, clinicUser.ID, model.JSONMap{"insurance": "ins.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "ins.pdf", clinic.Documents["insurance"])

	assert.Empty(t, e.store.ApprovalRows())
	assert.Equal(t, string(model.StageClinicDetail), e.stage(t, clinicUser.ID))
	n := e.notifier.last(t)
	assert.Equal(t, model.TemplateClinicDocumentsUpdated, n.Template)
	assert.Equal(t, model.TargetAdmin, n.Target)
}

func TestUpdateClinicProfileSendsNothing(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	clinicUser, _ := e.clinic(t)

	clinic, err := e.svc.UpdateClinicProfile(context.Background(), clinicUser.ID, &model.ClinicProfileUpdate{Name: strPtr("Hillside")})
	require.NoError(t, err)
	assert.Equal(t, "Hillside", clinic.Name)
	assert.Empty(t, e.notifier.all())
	assert.Empty(t, e.store.ApprovalRows())
}

func TestReviewQueuesAreIsolated(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()

	clinicUserA, clinicA := e.clinic(t)
	clinicUserB, clinicB := e.clinic(t)
	doctorA, _ := e.doctor(t, model.StageDoctorClinicDetail, &clinicA.ID)
	doctorB, _ := e.doctor(t, model.StageDoctorClinicDetail, &clinicB.ID)
	standalone, _ := e.doctor(t, model.StageDoctorDetail, nil)

	for _, id := range []*model.User{doctorA, doctorB, standalone} {
		_, err := e.svc.SubmitDoctorProfile(ctx, id.ID, &model.DoctorProfileUpdate{Bio: strPtr("x")}, "")
		require.NoError(t, err)
	}
	_, err := e.svc.SubmitClinicProfile(ctx, clinicUserA.ID, &model.ClinicProfileUpdate{Phone: strPtr("1")})
	require.NoError(t, err)

	adminQueue, err := e.approvals.ListPending(ctx, model.AdminScope())
	require.NoError(t, err)
	require.Len(t, adminQueue, 2)
	for _, r := range adminQueue {
		assert.Nil(t, r.ClinicID)
	}

	queueA, err := e.approvals.ListForClinicUser(ctx, clinicUserA.ID, nil)
	require.NoError(t, err)
	require.Len(t, queueA, 1)
	assert.Equal(t, doctorA.ID, queueA[0].UserID)
	assert.Equal(t, clinicA.ID, *queueA[0].ClinicID)
	assert.Equal(t, model.RequestTypeDoctor, queueA[0].RequestType)

	queueB, err := e.approvals.ListForClinicUser(ctx, clinicUserB.ID, nil)
	require.NoError(t, err)
	require.Len(t, queueB, 1)
	assert.Equal(t, doctorB.ID, queueB[0].UserID)
}

func TestClinicQueueSkipsRequestsOfUnlinkedDoctors(t *testing.T) {
	e := newEnv(t, model.FallbackAdmin)
	ctx := context.Background()
	clinicUser, clinic := e.clinic(t)
	u, d := e.doctor(t, model.StageDoctorClinicDetail, &clinic.ID)

	_, err := e.svc.SubmitDoctorProfile(ctx, u.ID, &model.DoctorProfileUpdate{Bio: strPtr("x")}, "")
	require.NoError(t, err)

	doctor, err := e.store.Doctors().Get(ctx, d.ID)
	require.NoError(t, err)
	doctor.ClinicID = nil
	require.NoError(t, e.store.Doctors().Update(ctx, doctor))

	queue, err := e.approvals.ListForClinicUser(ctx, clinicUser.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, queue)
}
