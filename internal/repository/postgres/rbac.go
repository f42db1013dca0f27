package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

const roleColumns = `id, name, display_name, description, is_system, created_at, updated_at`

type roleRepository struct {
	BaseRepository
}

func NewRoleRepository(base BaseRepository) repository.RoleRepository {
	return &roleRepository{base}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role, permissionIDs []uuid.UUID) error {
	query := `
		INSERT INTO roles (id, name, display_name, description, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			role.ID,
			role.Name,
			role.DisplayName,
			role.Description,
			role.IsSystem,
			role.CreatedAt,
			role.UpdatedAt,
		); err != nil {
			return translate("create role", err)
		}
		return grantPermissions(ctx, tx, role.ID, permissionIDs)
	})
}

func (r *roleRepository) EnsureSystem(ctx context.Context, role *model.Role) error {
	query := `
		INSERT INTO roles (id, name, display_name, description, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT ((LOWER(name))) DO NOTHING
	`
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	role.IsSystem = true

	_, err := r.db.ExecContext(ctx, query, role.ID, role.Name, role.DisplayName, role.Description)
	return translate("ensure system role", err)
}

func (r *roleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`

	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, id); err != nil {
		return nil, translate("get role", err)
	}
	return &role, nil
}

func (r *roleRepository) GetByName(ctx context.Context, name string) (*model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE LOWER(name) = LOWER(TRIM($1))`

	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, name); err != nil {
		return nil, translate("get role by name", err)
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context) ([]*model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles ORDER BY is_system DESC, name`

	var roles []*model.Role
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, translate("list roles", err)
	}
	return roles, nil
}

// Update and Delete skip system rows and report them as not found.
func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	query := `
		UPDATE roles
		SET name = $1, display_name = $2, description = $3, updated_at = $4
		WHERE id = $5 AND is_system = FALSE
	`
	role.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		role.Name,
		role.DisplayName,
		role.Description,
		role.UpdatedAt,
		role.ID,
	)
	if err != nil {
		return translate("update role", err)
	}
	return expectOne("update role", result)
}

func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM roles WHERE id = $1 AND is_system = FALSE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate("delete role", err)
	}
	return expectOne("delete role", result)
}

// SetPermissions replaces the role's permission set atomically.
func (r *roleRepository) SetPermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return translate("clear role permissions", err)
		}
		if err := grantPermissions(ctx, tx, roleID, permissionIDs); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE roles SET updated_at = NOW() WHERE id = $1`, roleID)
		return translate("touch role", err)
	})
}

func grantPermissions(ctx context.Context, tx *sqlx.Tx, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	for _, pid := range permissionIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			roleID, pid,
		); err != nil {
			return translate("add role permission", err)
		}
	}
	return nil
}

func (r *roleRepository) ListPermissions(ctx context.Context, roleID uuid.UUID) ([]*model.Permission, error) {
	query := `
		SELECT p.id, p.resource, p.action, p.description
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.resource, p.action
	`
	var permissions []*model.Permission
	if err := r.db.SelectContext(ctx, &permissions, query, roleID); err != nil {
		return nil, translate("list role permissions", err)
	}
	return permissions, nil
}

func (r *roleRepository) HasPermission(ctx context.Context, roleID uuid.UUID, resource, action string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM role_permissions rp
			JOIN permissions p ON p.id = rp.permission_id
			WHERE rp.role_id = $1 AND p.resource = $2 AND p.action = $3
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, roleID, resource, action); err != nil {
		return false, translate("check role permission", err)
	}
	return exists, nil
}
