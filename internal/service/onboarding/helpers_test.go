package onboarding

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository/repotest"
	"github.com/jwalitptl/onboarding-api/internal/service/approval"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	"github.com/jwalitptl/onboarding-api/pkg/logger"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *recordingNotifier) last(t *testing.T) model.Notification {
	t.Helper()
	all := r.all()
	require.NotEmpty(t, all, "no notification sent")
	return all[len(all)-1]
}

type env struct {
	store     *repotest.Store
	approvals *approval.Service
	notifier  *recordingNotifier
	svc       *Service
	admin     *model.User
}

func newEnv(t *testing.T, fallback model.FallbackPolicy) *env {
	t.Helper()
	store := repotest.NewStore()
	approvals := approval.NewService(store.Approvals(), store.Users(), store.Doctors(), store.Clinics(), logger.Nop())
	notifier := &recordingNotifier{}
	auditor := audit.NewAuditLogger(audit.NewService(store.Audit(), logger.Nop()))

	e := &env{
		store:     store,
		approvals: approvals,
		notifier:  notifier,
		svc: NewService(Dependencies{
			Users:     store.Users(),
			Doctors:   store.Doctors(),
			Clinics:   store.Clinics(),
			Approvals: approvals,
			Notifier:  notifier,
			Auditor:   auditor,
			Fallback:  fallback,
			Logger:    logger.Nop(),
		}),
	}
	e.admin = e.user(t, model.RoleAdmin, "")
	return e
}

func (e *env) user(t *testing.T, role model.SystemRole, stage model.OnboardingStage) *model.User {
	t.Helper()
	u := &model.User{
		Email:           uuid.NewString()[:8] + "@example.test",
		Name:            string(role) + " user",
		Role:            string(role),
		OnboardingStage: string(stage),
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

// doctor creates a DOCTOR user at stage with a doctor row, optionally linked to clinicID.
func (e *env) doctor(t *testing.T, stage model.OnboardingStage, clinicID *uuid.UUID) (*model.User, *model.Doctor) {
	t.Helper()
	u := e.user(t, model.RoleDoctor, stage)
	d := &model.Doctor{UserID: u.ID, ClinicID: clinicID}
	require.NoError(t, e.store.Doctors().Create(context.Background(), d))
	return u, d
}

// clinic creates a CLINIC user with a clinic row.
func (e *env) clinic(t *testing.T) (*model.User, *model.Clinic) {
	t.Helper()
	u := e.user(t, model.RoleClinic, model.StageClinicDetail)
	c := &model.Clinic{UserID: u.ID, Name: "Riverside Clinic"}
	require.NoError(t, e.store.Clinics().Create(context.Background(), c))
	return u, c
}

// contactlessClinic creates a clinic with neither an email nor a resolvable user.
func (e *env) contactlessClinic(t *testing.T) *model.Clinic {
	t.Helper()
	c := &model.Clinic{UserID: uuid.New(), Name: "Unreachable Clinic"}
	require.NoError(t, e.store.Clinics().Create(context.Background(), c))
	return c
}

func (e *env) stage(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	u, err := e.store.Users().Get(context.Background(), userID)
	require.NoError(t, err)
	return u.OnboardingStage
}

func strPtr(s string) *string { return &s }
