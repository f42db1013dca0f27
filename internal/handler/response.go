package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/onboarding-api/internal/model"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

// Context keys set by the authentication middleware.
const (
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
	ContextUserRole  = "user_role"
)

type Response struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one failed binding rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

var fieldMessages = map[string]string{
	"required":        "field is required",
	"email":           "invalid email format",
	"uuid":            "must be a valid UUID",
	"min":             "value is too short",
	"max":             "value is too long",
	"system_role":     "must be one of GUEST, PATIENT, DOCTOR, CLINIC, ADMIN",
	"approval_status": "must be one of PENDING, APPROVED, REJECTED",
}

// RespondError writes err in the error envelope. AppErrors carry their own status;
// anything else is a 500 with a generic message.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
		return
	}
	status := appErr.StatusCode()
	message := appErr.Message
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, NewErrorResponse(message))
}

// RespondBindError reports a request that failed binding or validation.
func RespondBindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid request body"))
		return
	}
	resp := NewErrorResponse("validation failed")
	for _, e := range verrs {
		msg, ok := fieldMessages[e.Tag()]
		if !ok {
			msg = e.Error()
		}
		resp.Errors = append(resp.Errors, FieldError{Field: e.Field(), Message: msg})
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

// CurrentUserID returns the authenticated caller.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// MustUserID returns the authenticated caller or writes a 401 and reports false.
func MustUserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := CurrentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse("unauthorized"))
	}
	return id, ok
}

// ParamUUID parses the path parameter name, writing a 400 when it is malformed.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// BodyUUID parses value read from the request body field, writing a 400 when it is malformed.
func BodyUUID(c *gin.Context, field, value string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		RespondError(c, apperrors.Validation("invalid "+field))
		return uuid.Nil, false
	}
	return id, true
}

// Guard builds the per-route access checks.
type Guard interface {
	RequirePermission(resource, action string) gin.HandlerFunc
	RequireRole(roles ...model.SystemRole) gin.HandlerFunc
}
