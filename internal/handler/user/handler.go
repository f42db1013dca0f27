package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service/user"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

type Handler struct {
	service *user.Service
}

func NewHandler(service *user.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	users := r.Group("/users")
	{
		users.GET("/me", h.GetMe)
		users.PUT("/me/role", h.SelectRole)
		users.GET("/:id", guard.RequirePermission("user", "read"), h.GetUser)
		users.PUT("/:id/role", guard.RequirePermission("user", "set-role"), h.SetRole)
	}
}

func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	u, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}

// GetUser returns a user. Callers other than ADMIN only see themselves.
func (h *Handler) GetUser(c *gin.Context) {
	callerID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	if id != callerID {
		caller, err := h.service.GetUser(c.Request.Context(), callerID)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		if !model.IsAdminRole(caller.Role) {
			handler.RespondError(c, apperrors.NotFound("user", nil))
			return
		}
	}

	u, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}

// SelectRole is a GUEST picking their own role during onboarding.
func (h *Handler) SelectRole(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var req model.SetSystemRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	u, err := h.service.SelectOwnRole(c.Request.Context(), userID, req.Role)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}

func (h *Handler) SetRole(c *gin.Context) {
	actorID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.SetSystemRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	u, err := h.service.SetSystemRole(c.Request.Context(), actorID, id, req.Role)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}
