package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service/onboarding"
)

type Handler struct {
	onboarding *onboarding.Service
}

func NewHandler(onboarding *onboarding.Service) *Handler {
	return &Handler{onboarding: onboarding}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	doctor := r.Group("/doctor", guard.RequireRole(model.RoleDoctor))
	{
		doctor.GET("/profile", guard.RequirePermission("doctor", "read"), h.GetProfile)
		doctor.PUT("/profile", guard.RequirePermission("doctor", "update"), h.UpdateProfile)
		doctor.POST("/profile/submit", guard.RequirePermission("approval_request", "create"), h.SubmitProfile)
		doctor.POST("/documents", guard.RequirePermission("approval_request", "create"), h.SubmitDocuments)
	}
}

type documentsRequest struct {
	Documents model.JSONMap `json:"documents" binding:"required"`
}

// fallbackQuery reads ?contact_fallback; empty means the configured default.
func fallbackQuery(c *gin.Context) model.FallbackPolicy {
	return model.FallbackPolicy(c.Query("contact_fallback"))
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	doctor, err := h.onboarding.GetDoctorProfile(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var update model.DoctorProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	doctor, err := h.onboarding.UpdateDoctorProfile(c.Request.Context(), userID, &update)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}

func (h *Handler) SubmitProfile(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var update model.DoctorProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	req, err := h.onboarding.SubmitDoctorProfile(c.Request.Context(), userID, &update, fallbackQuery(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(req))
}

func (h *Handler) SubmitDocuments(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var body documentsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	req, err := h.onboarding.SubmitDoctorDocuments(c.Request.Context(), userID, body.Documents, fallbackQuery(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(req))
}
