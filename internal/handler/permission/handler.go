package permission

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/model"
	permissionService "github.com/jwalitptl/onboarding-api/internal/service/permission"
	"github.com/jwalitptl/onboarding-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

type Handler struct {
	catalogue *permissionService.Service
	authz     *rbac.Service
}

func NewHandler(catalogue *permissionService.Service, authz *rbac.Service) *Handler {
	return &Handler{catalogue: catalogue, authz: authz}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	perms := r.Group("/permissions")
	{
		perms.GET("", guard.RequirePermission("permission", "list"), h.ListPermissions)
		perms.POST("/check", guard.RequirePermission("permission", "check"), h.CheckPermission)
		perms.GET("/me", h.MyPermissions)
	}
}

type checkResponse struct {
	HasPermission bool `json:"hasPermission"`
}

// CheckPermission answers whether a user (or, without userId, a role name) holds
// resource:action. A userId takes precedence over role.
func (h *Handler) CheckPermission(c *gin.Context) {
	var req model.PermissionCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	var principal rbac.Principal
	switch {
	case req.UserID != nil && *req.UserID != "":
		id, err := uuid.Parse(*req.UserID)
		if err != nil {
			handler.RespondError(c, apperrors.Validation("invalid userId"))
			return
		}
		principal = rbac.UserPrincipal(id)
	case req.Role != "":
		principal = rbac.RolePrincipal(req.Role)
	default:
		handler.RespondError(c, apperrors.Validation("userId or role is required"))
		return
	}

	granted := h.authz.HasPermission(c.Request.Context(), principal, req.Resource, req.Action)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(checkResponse{HasPermission: granted}))
}

func (h *Handler) ListPermissions(c *gin.Context) {
	perms, err := h.catalogue.List(c.Request.Context())
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(perms))
}

// MyPermissions lists the effective statements of the caller.
func (h *Handler) MyPermissions(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	stmts, err := h.authz.ListPermissions(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stmts))
}
