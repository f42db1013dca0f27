package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
	"github.com/jwalitptl/onboarding-api/internal/service/permission"
	"github.com/jwalitptl/onboarding-api/pkg/metrics"
)

var errEmptyPrincipal = errors.New("principal has neither user id nor role")

// Principal identifies who is asking. When UserID is set the user's stored roles are
// used and Role is ignored.
type Principal struct {
	UserID *uuid.UUID
	Role   string
}

func UserPrincipal(id uuid.UUID) Principal {
	return Principal{UserID: &id}
}

func RolePrincipal(role string) Principal {
	return Principal{Role: role}
}

// subject is a principal resolved to its fixed role and optional dynamic role.
type subject struct {
	systemRole  string
	dynamicRole *uuid.UUID
}

type Service struct {
	users   repository.UserRepository
	roles   repository.RoleRepository
	cache   *cache.Cache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewService builds the authorization engine. A cacheTTL of zero disables the
// dynamic-role permission cache and every check goes to the database.
func NewService(users repository.UserRepository, roles repository.RoleRepository, cacheTTL time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Service {
	s := &Service{
		users:   users,
		roles:   roles,
		metrics: m,
		logger:  logger.With().Str("component", "rbac").Logger(),
	}
	if cacheTTL > 0 {
		s.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return s
}

// HasPermission reports whether p may perform action on resource. Any failure
// along the way denies.
func (s *Service) HasPermission(ctx context.Context, p Principal, resource, action string) bool {
	granted := false
	if sub, err := s.resolve(ctx, p); err != nil {
		s.logger.Warn().Err(err).Str("resource", resource).Str("action", action).Msg("permission check denied: principal lookup failed")
	} else {
		granted = s.allowed(ctx, sub, resource, action)
	}
	s.metrics.ObserveAuthorization(granted)
	return granted
}

// HasAllPermissions reports whether p holds every action listed per resource. It
// stops at the first missing grant.
func (s *Service) HasAllPermissions(ctx context.Context, p Principal, required map[string][]string) bool {
	sub, err := s.resolve(ctx, p)
	if err != nil {
		s.logger.Warn().Err(err).Msg("permission check denied: principal lookup failed")
		s.metrics.ObserveAuthorization(false)
		return false
	}

	resources := make([]string, 0, len(required))
	for r := range required {
		resources = append(resources, r)
	}
	sort.Strings(resources)

	for _, resource := range resources {
		for _, action := range required[resource] {
			if !s.allowed(ctx, sub, resource, action) {
				s.metrics.ObserveAuthorization(false)
				return false
			}
		}
	}
	s.metrics.ObserveAuthorization(true)
	return true
}

// ListPermissions returns the effective statements of a user: the full catalogue for
// ADMIN, otherwise the fixed grants of the system role plus those of the dynamic role.
func (s *Service) ListPermissions(ctx context.Context, userID uuid.UUID) ([]model.Statement, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if model.IsAdminRole(user.Role) {
		return permission.AdminStatements(), nil
	}

	seen := map[model.Statement]bool{}
	var out []model.Statement
	add := func(st model.Statement) {
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}

	if role, ok := user.SystemRole(); ok {
		for _, st := range permission.RoleStatements(role) {
			add(st)
		}
	}
	if user.RoleID != nil {
		perms, err := s.roles.ListPermissions(ctx, *user.RoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to list role permissions: %w", err)
		}
		for _, p := range perms {
			add(p.Statement())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

// InvalidateRole drops the cached permission set of a dynamic role.
func (s *Service) InvalidateRole(roleID uuid.UUID) {
	if s.cache != nil {
		s.cache.Delete(roleID.String())
	}
}

func (s *Service) resolve(ctx context.Context, p Principal) (subject, error) {
	if p.UserID != nil {
		user, err := s.users.Get(ctx, *p.UserID)
		if err != nil {
			return subject{}, err
		}
		return subject{systemRole: user.Role, dynamicRole: user.RoleID}, nil
	}

	name := strings.TrimSpace(p.Role)
	if name == "" {
		return subject{}, errEmptyPrincipal
	}
	if model.IsReservedRoleName(name) {
		return subject{systemRole: name}, nil
	}
	role, err := s.roles.GetByName(ctx, name)
	if err != nil {
		return subject{}, err
	}
	return subject{dynamicRole: &role.ID}, nil
}

func (s *Service) allowed(ctx context.Context, sub subject, resource, action string) bool {
	if model.IsAdminRole(sub.systemRole) {
		return true
	}
	if role, ok := model.ParseSystemRole(sub.systemRole); ok && permission.Granted(role, resource, action) {
		return true
	}
	if sub.dynamicRole == nil {
		return false
	}

	if s.cache == nil {
		ok, err := s.roles.HasPermission(ctx, *sub.dynamicRole, resource, action)
		if err != nil {
			s.logger.Error().Err(err).Str("role_id", sub.dynamicRole.String()).Msg("dynamic role lookup failed")
			return false
		}
		return ok
	}

	set, err := s.rolePermissions(ctx, *sub.dynamicRole)
	if err != nil {
		s.logger.Error().Err(err).Str("role_id", sub.dynamicRole.String()).Msg("dynamic role lookup failed")
		return false
	}
	return set[model.Statement{Resource: resource, Action: action}]
}

func (s *Service) rolePermissions(ctx context.Context, roleID uuid.UUID) (map[model.Statement]bool, error) {
	key := roleID.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(map[model.Statement]bool), nil
	}

	perms, err := s.roles.ListPermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	set := make(map[model.Statement]bool, len(perms))
	for _, p := range perms {
		set[p.Statement()] = true
	}
	s.cache.SetDefault(key, set)
	return set, nil
}
