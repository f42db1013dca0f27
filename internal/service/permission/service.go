package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository"
)

var systemRoleDescriptions = map[model.SystemRole]string{
	model.RoleGuest:   "Signed-up user who has not picked a role yet",
	model.RolePatient: "Patient",
	model.RoleDoctor:  "Practitioner",
	model.RoleClinic:  "Clinic account",
	model.RoleAdmin:   "Platform administrator",
}

type Service struct {
	permissions repository.PermissionRepository
	roles       repository.RoleRepository
	logger      zerolog.Logger
}

func NewService(permissions repository.PermissionRepository, roles repository.RoleRepository, logger zerolog.Logger) *Service {
	return &Service{
		permissions: permissions,
		roles:       roles,
		logger:      logger,
	}
}

// Seed upserts every permission the ADMIN grant set names and a row for each fixed role.
// It is additive and safe to run on every start.
func (s *Service) Seed(ctx context.Context) error {
	created := 0
	for _, st := range AdminStatements() {
		p := &model.Permission{
			Resource:    st.Resource,
			Action:      st.Action,
			Description: fmt.Sprintf("Allows %s on %s", st.Action, st.Resource),
		}
		ok, err := s.permissions.Upsert(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", st, err)
		}
		if ok {
			created++
		}
	}

	for _, r := range model.SystemRoles {
		role := &model.Role{
			Name:        string(r),
			DisplayName: string(r),
			Description: systemRoleDescriptions[r],
		}
		if err := s.roles.EnsureSystem(ctx, role); err != nil {
			return fmt.Errorf("failed to seed system role %s: %w", r, err)
		}
	}

	s.logger.Info().Int("permissions_created", created).Msg("permission catalogue seeded")
	return nil
}

// List returns the stored permission rows.
func (s *Service) List(ctx context.Context) ([]*model.Permission, error) {
	perms, err := s.permissions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	return perms, nil
}

// Resolve maps statements onto stored permission ids. Unknown statements are reported in missing.
func (s *Service) Resolve(ctx context.Context, stmts []model.Statement) (found []*model.Permission, missing []model.Statement, err error) {
	for _, st := range stmts {
		p, err := s.permissions.Find(ctx, st.Resource, st.Action)
		if err != nil {
			if isNotFound(err) {
				missing = append(missing, st)
				continue
			}
			return nil, nil, fmt.Errorf("failed to find permission %s: %w", st, err)
		}
		found = append(found, p)
	}
	return found, missing, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
