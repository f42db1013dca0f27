package clinic

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	approvalHandler "github.com/jwalitptl/onboarding-api/internal/handler/approval"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service/approval"
	"github.com/jwalitptl/onboarding-api/internal/service/onboarding"
	"github.com/jwalitptl/onboarding-api/internal/service/profile"
)

// Handler serves the clinic's own profile, its doctors and its review queue.
type Handler struct {
	onboarding *onboarding.Service
	approvals  *approval.Service
	profiles   *profile.Service
}

func NewHandler(onboarding *onboarding.Service, approvals *approval.Service, profiles *profile.Service) *Handler {
	return &Handler{onboarding: onboarding, approvals: approvals, profiles: profiles}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	clinic := r.Group("/clinic", guard.RequireRole(model.RoleClinic))
	{
		clinic.GET("/profile", guard.RequirePermission("clinic", "read"), h.GetProfile)
		clinic.PUT("/profile", guard.RequirePermission("clinic", "update"), h.UpdateProfile)
		clinic.POST("/profile/submit", guard.RequirePermission("approval_request", "create"), h.SubmitProfile)
		clinic.POST("/documents", guard.RequirePermission("approval_request", "create"), h.SubmitDocuments)
		clinic.PUT("/documents", guard.RequirePermission("clinic", "update"), h.UpdateDocuments)

		clinic.POST("/doctors", guard.RequirePermission("doctor", "create"), h.CreateDoctor)
		clinic.GET("/doctors", guard.RequirePermission("doctor", "list"), h.ListDoctors)

		clinic.GET("/approvals", guard.RequirePermission("approval_request", "list"), h.ListApprovals)
		clinic.POST("/approvals/approve", guard.RequirePermission("clinic", "approve-doctor"), h.Approve)
		clinic.POST("/approvals/reject", guard.RequirePermission("clinic", "approve-doctor"), h.Reject)
	}
}

type documentsRequest struct {
	Documents model.JSONMap `json:"documents" binding:"required"`
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	clinic, err := h.onboarding.GetClinicProfile(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(clinic))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var update model.ClinicProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	clinic, err := h.onboarding.UpdateClinicProfile(c.Request.Context(), userID, &update)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(clinic))
}

func (h *Handler) SubmitProfile(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var update model.ClinicProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	req, err := h.onboarding.SubmitClinicProfile(c.Request.Context(), userID, &update)
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
	req, err := h.onboarding.SubmitClinicDocuments(c.Request.Context(), userID, body.Documents)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(req))
}

// UpdateDocuments stores documents and tells the admins, without opening a review.
func (h *Handler) UpdateDocuments(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var body documentsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	clinic, err := h.onboarding.NotifyClinicDocumentsUpdate(c.Request.Context(), userID, body.Documents)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(clinic))
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var req model.CreateClinicDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	doctor, err := h.profiles.CreateClinicDoctor(c.Request.Context(), userID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(doctor))
}

func (h *Handler) ListDoctors(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	doctors, err := h.profiles.ListClinicDoctors(c.Request.Context(), userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) ListApprovals(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	status, ok := approvalHandler.StatusQuery(c)
	if !ok {
		return
	}
	if status == nil {
		pending := model.ApprovalStatusPending
		status = &pending
	}
	reqs, err := h.approvals.ListForClinicUser(c.Request.Context(), userID, status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(reqs))
}

func (h *Handler) Approve(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var body model.ClinicApproveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	id, ok := handler.BodyUUID(c, "requestId", body.RequestID)
	if !ok {
		return
	}
	req, err := h.onboarding.ApproveByClinic(c.Request.Context(), id, userID, body.RenewalDate)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

func (h *Handler) Reject(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var body model.RejectRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	id, ok := handler.BodyUUID(c, "requestId", body.RequestID)
	if !ok {
		return
	}
	req, err := h.onboarding.RejectByClinic(c.Request.Context(), id, userID, body.RejectionReason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}
