package role

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
	"github.com/jwalitptl/onboarding-api/internal/service"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

type RoleService interface {
	CreateRole(ctx context.Context, actorID uuid.UUID, req *model.CreateRoleRequest) (*model.Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error)
	ListRoles(ctx context.Context) ([]*model.Role, error)
	UpdateRole(ctx context.Context, actorID, id uuid.UUID, req *model.UpdateRoleRequest) (*model.Role, error)
	DeleteRole(ctx context.Context, actorID, id uuid.UUID) error
}

// PermissionResolver maps statements onto stored permission rows.
type PermissionResolver interface {
	Resolve(ctx context.Context, stmts []model.Statement) ([]*model.Permission, []model.Statement, error)
}

// Invalidator drops cached authorization data for a dynamic role.
type Invalidator interface {
	InvalidateRole(roleID uuid.UUID)
}

type Service struct {
	roles       repository.RoleRepository
	users       repository.UserRepository
	permissions PermissionResolver
	cache       Invalidator
	auditor     audit.Recorder
	logger      zerolog.Logger
}

func NewService(
	roles repository.RoleRepository,
	users repository.UserRepository,
	permissions PermissionResolver,
	cache Invalidator,
	auditor audit.Recorder,
	logger zerolog.Logger,
) *Service {
	return &Service{
		roles:       roles,
		users:       users,
		permissions: permissions,
		cache:       cache,
		auditor:     auditor,
		logger:      logger.With().Str("component", "roles").Logger(),
	}
}

func (s *Service) CreateRole(ctx context.Context, actorID uuid.UUID, req *model.CreateRoleRequest) (*model.Role, error) {
	name := strings.TrimSpace(req.Name)
	if err := checkName(name); err != nil {
		return nil, err
	}
	perms, err := s.resolve(ctx, req.Permissions)
	if err != nil {
		return nil, err
	}

	role := &model.Role{
		Name:        name,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Description: req.Description,
	}
	if role.DisplayName == "" {
		role.DisplayName = name
	}
	if err := s.roles.Create(ctx, role, permissionIDs(perms)); err != nil {
		return nil, nameError(err)
	}
	role.Permissions = perms

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		Action:     model.AuditActionCreate,
		EntityType: model.AuditEntityRole,
		EntityID:   role.ID,
		Changes:    map[string]interface{}{"name": role.Name, "permissions": statements(perms)},
	})
	return role, nil
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.roles.Get(ctx, id)
	if err != nil {
		return nil, service.StoreError("role", err)
	}
	if role.Permissions, err = s.roles.ListPermissions(ctx, id); err != nil {
		return nil, apperrors.Internal(err)
	}
	return role, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*model.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return roles, nil
}

// UpdateRole renames or redescribes a dynamic role. System roles cannot be changed.
func (s *Service) UpdateRole(ctx context.Context, actorID, id uuid.UUID, req *model.UpdateRoleRequest) (*model.Role, error) {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := checkName(name); err != nil {
			return nil, err
		}
		role.Name = name
		changes["name"] = name
	}
	if req.DisplayName != nil {
		role.DisplayName = strings.TrimSpace(*req.DisplayName)
		changes["display_name"] = role.DisplayName
	}
	if req.Description != nil {
		role.Description = *req.Description
		changes["description"] = role.Description
	}

	if err := s.roles.Update(ctx, role); err != nil {
		return nil, nameError(err)
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityRole,
		EntityID:   role.ID,
		Changes:    changes,
	})
	return role, nil
}

func (s *Service) DeleteRole(ctx context.Context, actorID, id uuid.UUID) error {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return err
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		return service.StoreError("role", err)
	}
	s.cache.InvalidateRole(id)

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		Action:     model.AuditActionDelete,
		EntityType: model.AuditEntityRole,
		EntityID:   id,
		Changes:    map[string]interface{}{"name": role.Name},
	})
	return nil
}

// SetPermissions replaces the permission set of a dynamic role.
func (s *Service) SetPermissions(ctx context.Context, actorID, id uuid.UUID, stmts []model.Statement) (*model.Role, error) {
	role, err := s.mutableRole(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := s.resolve(ctx, stmts)
	if err != nil {
		return nil, err
	}
	if err := s.roles.SetPermissions(ctx, id, permissionIDs(perms)); err != nil {
		return nil, service.StoreError("role", err)
	}
	s.cache.InvalidateRole(id)
	role.Permissions = perms

	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		Action:     model.AuditActionUpdate,
		EntityType: model.AuditEntityRole,
		EntityID:   id,
		Changes:    map[string]interface{}{"permissions": statements(perms)},
	})
	return role, nil
}

// AssignToUser sets or clears (roleID nil) the dynamic role of a user.
func (s *Service) AssignToUser(ctx context.Context, actorID, userID uuid.UUID, roleID *uuid.UUID) (*model.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, service.StoreError("user", err)
	}
	if roleID != nil {
		role, err := s.roles.Get(ctx, *roleID)
		if err != nil {
			return nil, service.StoreError("role", err)
		}
		if role.IsSystem {
			return nil, apperrors.Validation("system roles are assigned through the user's role, not as a dynamic role")
		}
	}

	if err := s.users.AssignRole(ctx, userID, roleID); err != nil {
		return nil, service.StoreError("user", err)
	}
	user.RoleID = roleID

	changes := map[string]interface{}{"role_id": nil}
	if roleID != nil {
		changes["role_id"] = roleID.String()
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:    &actorID,
		Action:     model.AuditActionAssign,
		EntityType: model.AuditEntityUser,
		EntityID:   userID,
		Changes:    changes,
	})
	return user, nil
}

func (s *Service) mutableRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	role, err := s.roles.Get(ctx, id)
	if err != nil {
		return nil, service.StoreError("role", err)
	}
	if role.IsSystem {
		return nil, apperrors.Forbidden("system roles cannot be modified")
	}
	return role, nil
}

func (s *Service) resolve(ctx context.Context, stmts []model.Statement) ([]*model.Permission, error) {
	perms, missing, err := s.permissions.Resolve(ctx, stmts)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = m.String()
		}
		return nil, apperrors.Validation(fmt.Sprintf("unknown permissions: %s", strings.Join(names, ", ")))
	}
	return perms, nil
}

func checkName(name string) error {
	if name == "" {
		return apperrors.Validation("role name is required")
	}
	if model.IsReservedRoleName(name) {
		return apperrors.Conflict(fmt.Sprintf("role name %q is reserved for a system role", name), nil)
	}
	return nil
}

func nameError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.Conflict("role name already exists", err)
	}
	return service.StoreError("role", err)
}

func permissionIDs(perms []*model.Permission) []uuid.UUID {
	ids := make([]uuid.UUID, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	return ids
}

func statements(perms []*model.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.Statement().String()
	}
	return out
}
