package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	"github.com/jwalitptl/onboarding-api/internal/model"
	"github.com/jwalitptl/onboarding-api/internal/service/audit"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	r.GET("/audit-logs", guard.RequirePermission("audit_log", "list"), h.ListLogs)
}

const defaultLimit = 50

type listResponse struct {
	Logs   []*model.AuditLog `json:"logs"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func (h *Handler) ListLogs(c *gin.Context) {
	var filter model.AuditFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.RespondBindError(c, err)
		return
	}
	if filter.Limit == 0 {
		filter.Limit = defaultLimit
	}

	logs, total, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}
	if logs == nil {
		logs = []*model.AuditLog{}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(listResponse{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}))
}
