package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository/repotest"
	"github.com/jwalitptl/onboarding-api/internal/service/permission"
	"github.com/jwalitptl/onboarding-api/pkg/logger"
)

type fixture struct {
	store *repotest.Store
	svc   *Service
}

func newFixture(t *testing.T, cacheTTL time.Duration) *fixture {
	t.Helper()
	store := repotest.NewStore()
	perms := permission.NewService(store.Permissions(), store.Roles(), logger.Nop())
	require.NoError(t, perms.Seed(context.Background()))
	return &fixture{
		store: store,
		svc:   NewService(store.Users(), store.Roles(), cacheTTL, nil, logger.Nop()),
	}
}

func (f *fixture) user(t *testing.T, role string, roleID *uuid.UUID) uuid.UUID {
	t.Helper()
	u := &model.User{Email: uuid.NewString() + "@example.test", Name: "u", Role: role, RoleID: roleID}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u.ID
}

func (f *fixture) dynamicRole(t *testing.T, name string, grants ...model.Statement) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	var ids []uuid.UUID
	for _, st := range grants {
		p, err := f.store.Permissions().Find(ctx, st.Resource, st.Action)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	role := &model.Role{Name: name}
	require.NoError(t, f.store.Roles().Create(ctx, role, ids))
	return role.ID
}

func TestHasPermissionSystemRoles(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	admin := f.user(t, "admin", nil)
	doctor := f.user(t, "DOCTOR", nil)
	clinic := f.user(t, "Clinic", nil)
	guest := f.user(t, "GUEST", nil)

	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(admin), "user", "ban"))
	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(admin), "anything", "at-all"))

	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(doctor), "doctor", "update"))
	assert.False(t, f.svc.HasPermission(ctx, UserPrincipal(doctor), "approval_request", "approve"))

	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(clinic), "clinic", "approve-doctor"))
	assert.False(t, f.svc.HasPermission(ctx, UserPrincipal(clinic), "role", "create"))

	assert.False(t, f.svc.HasPermission(ctx, UserPrincipal(guest), "user", "read"))
}

func TestHasPermissionDynamicRole(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	roleID := f.dynamicRole(t, "auditor", model.Statement{Resource: "audit_log", Action: "list"})
	userID := f.user(t, "GUEST", &roleID)

	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "audit_log", "list"))
	assert.False(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "audit_log", "read"))
}

func TestHasPermissionUnionOfSystemAndDynamicRole(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	roleID := f.dynamicRole(t, "reporter", model.Statement{Resource: "report", Action: "export"})
	userID := f.user(t, "DOCTOR", &roleID)

	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "doctor", "read"))
	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "report", "export"))
}

func TestHasPermissionRolePrincipal(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	f.dynamicRole(t, "billing", model.Statement{Resource: "invoice", Action: "create"})

	assert.True(t, f.svc.HasPermission(ctx, RolePrincipal("admin"), "role", "delete"))
	assert.True(t, f.svc.HasPermission(ctx, RolePrincipal("patient"), "appointment", "create"))
	assert.True(t, f.svc.HasPermission(ctx, RolePrincipal("Billing"), "invoice", "create"))
	assert.False(t, f.svc.HasPermission(ctx, RolePrincipal("billing"), "invoice", "list"))
	assert.False(t, f.svc.HasPermission(ctx, RolePrincipal("unknown"), "invoice", "create"))
	assert.False(t, f.svc.HasPermission(ctx, RolePrincipal(""), "invoice", "create"))
}

func TestHasPermissionUserWinsOverRole(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	guest := f.user(t, "GUEST", nil)

	p := Principal{UserID: &guest, Role: "ADMIN"}
	assert.False(t, f.svc.HasPermission(ctx, p, "role", "create"))
}

func TestHasPermissionFailsClosed(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	roleID := f.dynamicRole(t, "support", model.Statement{Resource: "user_query", Action: "respond"})
	userID := f.user(t, "GUEST", &roleID)

	assert.False(t, f.svc.HasPermission(ctx, UserPrincipal(uuid.New()), "user", "read"), "unknown user")

	f.store.FailOn("roles.HasPermission", errors.New("connection reset"))
	assert.False(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "user_query", "respond"))
	f.store.FailOn("roles.HasPermission", nil)
	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "user_query", "respond"))

	f.store.FailOn("users.Get", errors.New("connection reset"))
	assert.False(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "user_query", "respond"))
}

func TestHasPermissionCacheInvalidation(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	roleID := f.dynamicRole(t, "scheduler", model.Statement{Resource: "appointment", Action: "list"})
	userID := f.user(t, "GUEST", &roleID)

	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "appointment", "list"))

	require.NoError(t, f.store.Roles().SetPermissions(ctx, roleID, nil))
	assert.True(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "appointment", "list"), "served from cache")

	f.svc.InvalidateRole(roleID)
	assert.False(t, f.svc.HasPermission(ctx, UserPrincipal(userID), "appointment", "list"))
}

func TestHasAllPermissions(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	clinic := f.user(t, "CLINIC", nil)

	assert.True(t, f.svc.HasAllPermissions(ctx, UserPrincipal(clinic), map[string][]string{
		"clinic": {"read", "update"},
		"doctor": {"create"},
	}))
	assert.False(t, f.svc.HasAllPermissions(ctx, UserPrincipal(clinic), map[string][]string{
		"clinic": {"read"},
		"role":   {"create"},
	}))
	assert.False(t, f.svc.HasAllPermissions(ctx, RolePrincipal(""), map[string][]string{"clinic": {"read"}}))
}

func TestListPermissions(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	admin := f.user(t, "ADMIN", nil)
	perms, err := f.svc.ListPermissions(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, permission.AdminStatements(), perms)

	roleID := f.dynamicRole(t, "exporter",
		model.Statement{Resource: "report", Action: "export"},
		model.Statement{Resource: "doctor", Action: "read"},
	)
	doctor := f.user(t, "DOCTOR", &roleID)
	perms, err = f.svc.ListPermissions(ctx, doctor)
	require.NoError(t, err)

	assert.Contains(t, perms, model.Statement{Resource: "report", Action: "export"})
	assert.Contains(t, perms, model.Statement{Resource: "approval_request", Action: "create"})

	count := 0
	for _, st := range perms {
		if st == (model.Statement{Resource: "doctor", Action: "read"}) {
			count++
		}
	}
	assert.Equal(t, 1, count, "statements are deduplicated")

	_, err = f.svc.ListPermissions(ctx, uuid.New())
	assert.Error(t, err)
}
