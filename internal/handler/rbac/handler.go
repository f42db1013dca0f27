package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service/role"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

type Handler struct {
	roles *role.Service
}

func NewHandler(roles *role.Service) *Handler {
	return &Handler{roles: roles}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	roles := r.Group("/roles")
	{
		roles.POST("", guard.RequirePermission("role", "create"), h.CreateRole)
		roles.GET("", guard.RequirePermission("role", "list"), h.ListRoles)
		roles.GET("/:id", guard.RequirePermission("role", "read"), h.GetRole)
		roles.PUT("/:id", guard.RequirePermission("role", "update"), h.UpdateRole)
		roles.DELETE("/:id", guard.RequirePermission("role", "delete"), h.DeleteRole)
		roles.PUT("/:id/permissions", guard.RequirePermission("role", "update"), h.SetPermissions)
	}
	r.PUT("/users/:id/dynamic-role", guard.RequirePermission("role", "assign"), h.AssignRole)
}

func (h *Handler) CreateRole(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var req model.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	created, err := h.roles.CreateRole(c.Request.Context(), actorID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(roles))
}

func (h *Handler) GetRole(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	found, err := h.roles.GetRole(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) UpdateRole(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	updated, err := h.roles.UpdateRole(c.Request.Context(), actorID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) DeleteRole(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.roles.DeleteRole(c.Request.Context(), actorID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetPermissions(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.SetRolePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	updated, err := h.roles.SetPermissions(c.Request.Context(), actorID, id, req.Permissions)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

// AssignRole sets the dynamic role of a user; a null role_id clears it.
func (h *Handler) AssignRole(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	userID, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	var roleID *uuid.UUID
	if req.RoleID != nil && *req.RoleID != "" {
		id, err := uuid.Parse(*req.RoleID)
		if err != nil {
			handler.RespondError(c, apperrors.Validation("invalid role_id"))
			return
		}
		roleID = &id
	}

	user, err := h.roles.AssignToUser(c.Request.Context(), actorID, userID, roleID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(user))
}
