package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service/rbac"
	"github.com/jwalitptl/onboarding-api/pkg/auth"
)

// Authorizer answers permission checks for a principal.
type Authorizer interface {
	HasPermission(ctx context.Context, p rbac.Principal, resource, action string) bool
}

// UserGetter loads the stored user behind a token.
type UserGetter interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type AuthMiddleware struct {
	tokens auth.JWTService
	authz  Authorizer
	users  UserGetter
}

func NewAuthMiddleware(tokens auth.JWTService, authz Authorizer, users UserGetter) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		authz:  authz,
		users:  users,
	}
}

// Authenticate verifies the bearer token and puts the caller into the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			return
		}

		c.Set(handler.ContextUserID, claims.UserID)
		c.Set(handler.ContextUserEmail, claims.Email)
		c.Set(handler.ContextUserRole, claims.Role)
		c.Next()
	}
}

// RequirePermission lets the request through only when the caller holds resource:action.
// The caller's stored roles are used, not the role claim in the token.
func (m *AuthMiddleware) RequirePermission(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := handler.MustUserID(c)
		if !ok {
			return
		}
		if !m.authz.HasPermission(c.Request.Context(), rbac.UserPrincipal(userID), resource, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, handler.NewErrorResponse("permission denied"))
			return
		}
		c.Next()
	}
}

// RequireRole restricts a route to callers whose stored system role is one of roles.
func (m *AuthMiddleware) RequireRole(roles ...model.SystemRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := handler.MustUserID(c)
		if !ok {
			return
		}
		user, err := m.users.GetUser(c.Request.Context(), userID)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		for _, r := range roles {
			if r.Is(user.Role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, handler.NewErrorResponse("permission denied"))
	}
}
