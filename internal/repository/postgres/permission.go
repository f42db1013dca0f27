package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

type permissionRepository struct {
	BaseRepository
}

func NewPermissionRepository(base BaseRepository) repository.PermissionRepository {
	return &permissionRepository{base}
}

func (r *permissionRepository) Upsert(ctx context.Context, p *model.Permission) (bool, error) {
	query := `
		INSERT INTO permissions (id, resource, action, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resource, action) DO NOTHING
	`
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	result, err := r.db.ExecContext(ctx, query, p.ID, p.Resource, p.Action, p.Description)
	if err != nil {
		return false, translate("upsert permission", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, translate("upsert permission", err)
	}
	return rows == 1, nil
}

func (r *permissionRepository) Find(ctx context.Context, resource, action string) (*model.Permission, error) {
	query := `
		SELECT id, resource, action, description
		FROM permissions
		WHERE resource = $1 AND action = $2
	`
	var p model.Permission
	if err := r.db.GetContext(ctx, &p, query, resource, action); err != nil {
		return nil, translate("find permission", err)
	}
	return &p, nil
}

func (r *permissionRepository) List(ctx context.Context) ([]*model.Permission, error) {
	query := `
		SELECT id, resource, action, description
		FROM permissions
		ORDER BY resource, action
	`
	var permissions []*model.Permission
	if err := r.db.SelectContext(ctx, &permissions, query); err != nil {
		return nil, translate("list permissions", err)
	}
	return permissions, nil
}
