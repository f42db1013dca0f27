package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service/user"
)

type Handler struct {
	users *user.Service
}

func NewHandler(users *user.Service) *Handler {
	return &Handler{users: users}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	patient := r.Group("/patient", guard.RequireRole(model.RolePatient))
	{
		patient.POST("/profile/complete", guard.RequirePermission("user", "update"), h.CompleteProfile)
	}
}

func (h *Handler) CompleteProfile(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	u, err := h.users.CompletePatientProfile(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(u))
}
