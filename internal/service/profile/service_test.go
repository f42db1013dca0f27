package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository/repotest"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
	"github.com/jwalitptl/onboarding-api/pkg/logger"
	"github.com/jwalitptl/onboarding-api/pkg/security"
)

type captureNotifier struct {
	sent []model.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n model.Notification) {
	c.sent = append(c.sent, n)
}

func newService(store *repotest.Store, notifier *captureNotifier) *Service {
	return NewService(
		store.Users(), store.Doctors(), store.Clinics(),
		security.NewBcryptHasher(bcrypt.MinCost),
		notifier, audit.NopRecorder{}, logger.Nop(),
	)
}

func createUser(t *testing.T, store *repotest.Store, role model.SystemRole) *model.User {
	t.Helper()
	u := &model.User{Email: uuid.NewString()[:8] + "@example.test", Name: "Owner", Role: string(role)}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func TestEnsureProfile(t *testing.T) {
	store := repotest.NewStore()
	svc := newService(store, &captureNotifier{})
	ctx := context.Background()

	doctor := createUser(t, store, model.RoleDoctor)
	require.NoError(t, svc.EnsureProfile(ctx, doctor))
	require.NoError(t, svc.EnsureProfile(ctx, doctor))
	_, err := store.Doctors().GetByUserID(ctx, doctor.ID)
	assert.NoError(t, err)

	clinic := createUser(t, store, model.RoleClinic)
	require.NoError(t, svc.EnsureProfile(ctx, clinic))
	c, err := store.Clinics().GetByUserID(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owner", c.Name)

	patient := createUser(t, store, model.RolePatient)
	assert.NoError(t, svc.EnsureProfile(ctx, patient))
}

func TestEnsureProfileReportsStoreFailure(t *testing.T) {
	store := repotest.NewStore()
	svc := newService(store, &captureNotifier{})
	doctor := createUser(t, store, model.RoleDoctor)

	store.FailOn("doctors.GetByUserID", errors.New("timeout"))
	assert.Error(t, svc.EnsureProfile(context.Background(), doctor))
}

func TestCreateClinicDoctor(t *testing.T) {
	store := repotest.NewStore()
	notifier := &captureNotifier{}
	svc := newService(store, notifier)
	ctx := context.Background()

	owner := createUser(t, store, model.RoleClinic)
	clinic := &model.Clinic{UserID: owner.ID, Name: "Lakeside"}
	require.NoError(t, store.Clinics().Create(ctx, clinic))

	doctor, err := svc.CreateClinicDoctor(ctx, owner.ID, &model.CreateClinicDoctorRequest{
		Email: "new.doctor@example.test",
		Name:  "New Doctor",
	})
	require.NoError(t, err)

	require.NotNil(t, doctor.ClinicID)
	assert.Equal(t, clinic.ID, *doctor.ClinicID)
	assert.Equal(t, string(model.RoleDoctor), doctor.User.Role)
	assert.Equal(t, string(model.StageDoctorClinicDetail), doctor.User.OnboardingStage)

	require.Len(t, notifier.sent, 1)
	n := notifier.sent[0]
	assert.Equal(t, model.TemplateDoctorWelcome, n.Template)
	assert.Equal(t, []string{"new.doctor@example.test"}, n.Recipients)

	password, ok := n.Payload["temporary_password"].(string)
	require.True(t, ok)
	stored, err := store.Users().GetByEmail(ctx, "new.doctor@example.test")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)))

	doctors, err := svc.ListClinicDoctors(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "New Doctor", doctors[0].User.Name)
}

func TestCreateClinicDoctorDuplicateEmail(t *testing.T) {
	store := repotest.NewStore()
	svc := newService(store, &captureNotifier{})
	ctx := context.Background()

	owner := createUser(t, store, model.RoleClinic)
	require.NoError(t, store.Clinics().Create(ctx, &model.Clinic{UserID: owner.ID, Name: "Lakeside"}))

	_, err := svc.CreateClinicDoctor(ctx, owner.ID, &model.CreateClinicDoctorRequest{Email: owner.Email, Name: "Dup"})
	assert.True(t, apperrors.IsConflict(err))
}

func TestCreateClinicDoctorRemovesUserWhenDoctorFails(t *testing.T) {
	store := repotest.NewStore()
	notifier := &captureNotifier{}
	svc := newService(store, notifier)
	ctx := context.Background()

	owner := createUser(t, store, model.RoleClinic)
	require.NoError(t, store.Clinics().Create(ctx, &model.Clinic{UserID: owner.ID, Name: "Lakeside"}))

	store.FailOn("doctors.Create", errors.New("disk full"))
	_, err := svc.CreateClinicDoctor(ctx, owner.ID, &model.CreateClinicDoctorRequest{Email: "gone@example.test", Name: "Gone"})
	require.Error(t, err)

	_, err = store.Users().GetByEmail(ctx, "gone@example.test")
	assert.Error(t, err)
	assert.Empty(t, notifier.sent)
}

func TestCreateClinicDoctorUnknownClinic(t *testing.T) {
	store := repotest.NewStore()
	svc := newService(store, &captureNotifier{})

	_, err := svc.CreateClinicDoctor(context.Background(), uuid.New(), &model.CreateClinicDoctorRequest{Email: "a@example.test", Name: "A"})
	assert.True(t, apperrors.IsNotFound(err))
}
