package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

const userColumns = `id, email, name, password_hash, role, role_id, onboarding_stage, created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, name, password_hash, role, role_id,
			onboarding_stage, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.RoleID,
		user.OnboardingStage,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return translate("create user", err)
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, translate("get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, translate("get user by email", err)
	}
	return &user, nil
}

func (r *userRepository) UpdateSystemRole(ctx context.Context, id uuid.UUID, role model.SystemRole, stage *model.OnboardingStage) error {
	query := `
		UPDATE users
		SET role = $1,
			onboarding_stage = COALESCE($2, onboarding_stage),
			updated_at = $3
		WHERE id = $4
	`
	var st *string
	if stage != nil {
		s := string(*stage)
		st = &s
	}

	result, err := r.db.ExecContext(ctx, query, string(role), st, time.Now().UTC(), id)
	if err != nil {
		return translate("update user role", err)
	}
	return expectOne("update user role", result)
}

func (r *userRepository) UpdateStage(ctx context.Context, id uuid.UUID, stage model.OnboardingStage) error {
	query := `UPDATE users SET onboarding_stage = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, string(stage), time.Now().UTC(), id)
	if err != nil {
		return translate("update onboarding stage", err)
	}
	return expectOne("update onboarding stage", result)
}

func (r *userRepository) AssignRole(ctx context.Context, id uuid.UUID, roleID *uuid.UUID) error {
	query := `UPDATE users SET role_id = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, roleID, time.Now().UTC(), id)
	if err != nil {
		return translate("assign role", err)
	}
	return expectOne("assign role", result)
}

// ListByRole narrows in SQL on UPPER(role) and then re-checks each row with
// model.RoleNameEquals so stray whitespace in stored values still matches.
func (r *userRepository) ListByRole(ctx context.Context, role model.SystemRole) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE UPPER(TRIM(role)) = $1 ORDER BY created_at`

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, string(role)); err != nil {
		return nil, translate("list users by role", err)
	}

	out := users[:0]
	for _, u := range users {
		if role.Is(u.Role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate("delete user", err)
	}
	return expectOne("delete user", result)
}
