package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

var userRowColumns = []string{
	"id", "email", "name", "password_hash", "role", "role_id", "onboarding_stage", "created_at", "updated_at",
}

func TestUserCreate(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewUserRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "ann@example.test", "Ann", "hash", "DOCTOR", sqlmock.AnyArg(),
			string(model.StageDoctorDetail), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &model.User{
		Email:           "ann@example.test",
		Name:            "Ann",
		PasswordHash:    "hash",
		Role:            "DOCTOR",
		OnboardingStage: string(model.StageDoctorDetail),
	}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewUserRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Message: "duplicate key value"})

	err := repo.Create(context.Background(), &model.User{Email: "dup@example.test"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrDuplicate))
}

func TestUserGet(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewUserRepository(base)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(id.String(), "ann@example.test", "Ann", "hash", "PATIENT", nil, "", now, now))

	u, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "PATIENT", u.Role)
	assert.Nil(t, u.RoleID)
}

func TestUserGetNotFound(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewUserRepository(base)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.Get(context.Background(), id)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestUserListByRoleRechecksRoleNames(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewUserRepository(base)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE UPPER(TRIM(role)) = $1")).
		WithArgs("ADMIN").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(uuid.NewString(), "root@example.test", "Root", "h", " admin ", nil, "", now, now).
			AddRow(uuid.NewString(), "other@example.test", "Other", "h", "ADMINISTRATOR", nil, "", now, now))

	users, err := repo.ListByRole(context.Background(), model.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "root@example.test", users[0].Email)
}

func TestUserUpdateSystemRoleNotFound(t *testing.T) {
	base, mock := setupMockDB(t)
	repo := NewUserRepository(base)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("CLINIC", sqlmock.AnyArg(), sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	stage := model.StageClinicDetail
	err := repo.UpdateSystemRole(context.Background(), id, model.RoleClinic, &stage)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}
