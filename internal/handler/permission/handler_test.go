package permission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/repository/repotest"
	permissionService "github.com/jwalitptl/onboarding-api/internal/service/permission"
	"github.com/jwalitptl/onboarding-api/internal/service/rbac"
	"github.com/jwalitptl/onboarding-api/pkg/logger"
)

type checkEnvelope struct {
	Status string        `json:"status"`
	Data   checkResponse `json:"data"`
}

func setupRouter(t *testing.T) (*gin.Engine, *repotest.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repotest.NewStore()
	catalogue := permissionService.NewService(store.Permissions(), store.Roles(), logger.Nop())
	require.NoError(t, catalogue.Seed(context.Background()))
	h := NewHandler(catalogue, rbac.NewService(store.Users(), store.Roles(), 0, nil, logger.Nop()))

	r := gin.New()
	r.POST("/permissions/check", h.CheckPermission)
	return r, store
}

func check(t *testing.T, r *gin.Engine, body string) (int, checkEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/permissions/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var env checkEnvelope
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func TestCheckPermissionByRole(t *testing.T) {
	r, _ := setupRouter(t)

	code, env := check(t, r, `{"role":"doctor","resource":"doctor","action":"update"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", env.Status)
	assert.True(t, env.Data.HasPermission)

	code, env = check(t, r, `{"role":"DOCTOR","resource":"role","action":"create"}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, env.Data.HasPermission)

	code, env = check(t, r, `{"role":"nobody","resource":"doctor","action":"read"}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, env.Data.HasPermission, "unknown roles are denied")
}

func TestCheckPermissionUserTakesPrecedence(t *testing.T) {
	r, store := setupRouter(t)
	u := &model.User{Email: "pat@example.test", Role: string(model.RolePatient)}
	require.NoError(t, store.Users().Create(context.Background(), u))

	code, env := check(t, r, `{"userId":"`+u.ID.String()+`","role":"ADMIN","resource":"role","action":"create"}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, env.Data.HasPermission)
}

func TestCheckPermissionUnknownUserIsDenied(t *testing.T) {
	r, _ := setupRouter(t)

	code, env := check(t, r, `{"userId":"`+uuid.NewString()+`","resource":"user","action":"read"}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, env.Data.HasPermission)
}

func TestCheckPermissionValidation(t *testing.T) {
	r, _ := setupRouter(t)

	for _, body := range []string{
		`{"resource":"user","action":"read"}`,
		`{"role":"ADMIN","resource":"user"}`,
		`{"userId":"not-a-uuid","resource":"user","action":"read"}`,
	} {
		code, _ := check(t, r, body)
		assert.Equal(t, http.StatusBadRequest, code, body)
	}
}

var _ handler.Guard = (*passGuard)(nil)

type passGuard struct{}

func (passGuard) RequirePermission(string, string) gin.HandlerFunc {
	return func(c *gin.Context) { c.Next() }
}

func (passGuard) RequireRole(...model.SystemRole) gin.HandlerFunc {
	return func(c *gin.Context) { c.Next() }
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := repotest.NewStore()
	catalogue := permissionService.NewService(store.Permissions(), store.Roles(), logger.Nop())
	require.NoError(t, catalogue.Seed(context.Background()))

	r := gin.New()
	NewHandler(catalogue, rbac.NewService(store.Users(), store.Roles(), 0, nil, logger.Nop())).
		RegisterRoutes(r.Group("/api/v1"), passGuard{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/permissions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"resource":"doctor"`)
}
