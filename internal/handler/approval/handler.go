package approval

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service/approval"
	"github.com/jwalitptl/onboarding-api/internal/service/onboarding"
)

// Handler serves the admin review queue and the caller's own requests.
type Handler struct {
	approvals  *approval.Service
	onboarding *onboarding.Service
}

func NewHandler(approvals *approval.Service, onboarding *onboarding.Service) *Handler {
	return &Handler{approvals: approvals, onboarding: onboarding}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	admin := r.Group("/admin/approvals", guard.RequireRole(model.RoleAdmin))
	{
		admin.GET("", guard.RequirePermission("approval_request", "list"), h.ListAdmin)
		admin.GET("/:id", guard.RequirePermission("approval_request", "read"), h.GetAdmin)
		admin.POST("/approve", guard.RequirePermission("approval_request", "approve"), h.Approve)
		admin.POST("/reject", guard.RequirePermission("approval_request", "reject"), h.Reject)
	}
	r.GET("/approvals/mine", h.ListMine)
}

// StatusQuery parses the optional ?status filter.
func StatusQuery(c *gin.Context) (*model.ApprovalStatus, bool) {
	var q model.ApprovalListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.RespondBindError(c, err)
		return nil, false
	}
	if q.Status == "" {
		return nil, true
	}
	status := model.ApprovalStatus(strings.ToUpper(q.Status))
	return &status, true
}

func (h *Handler) ListAdmin(c *gin.Context) {
	status, ok := StatusQuery(c)
	if !ok {
		return
	}
	if status == nil {
		pending := model.ApprovalStatusPending
		status = &pending
	}
	reqs, err := h.approvals.ListByStatus(c.Request.Context(), model.AdminScope(), status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(reqs))
}

func (h *Handler) GetAdmin(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	req, err := h.approvals.Get(c.Request.Context(), id, model.AdminScope())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

func (h *Handler) Approve(c *gin.Context) {
	reviewerID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	var body model.ApproveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	id, ok := handler.BodyUUID(c, "requestId", body.RequestID)
	if !ok {
		return
	}

	req, err := h.onboarding.Approve(c.Request.Context(), id, reviewerID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

func (h *Handler) Reject(c *gin.Context) {
	reviewerID, ok := handler.MustUserID(c)
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

	req, err := h.onboarding.Reject(c.Request.Context(), id, reviewerID, body.RejectionReason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

// ListMine returns the requests the caller has submitted.
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := handler.MustUserID(c)
	if !ok {
		return
	}
	status, ok := StatusQuery(c)
	if !ok {
		return
	}
	reqs, err := h.approvals.ListByUser(c.Request.Context(), userID, status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(reqs))
}
