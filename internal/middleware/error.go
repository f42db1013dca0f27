package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/onboarding-api/internal/handler"
	apperrors "github.com/jwalitptl/onboarding-api/pkg/errors"
)

// ErrorHandler logs every error attached to the request. When nothing has been
// written yet the last error is rendered in the error envelope.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			event := log.Warn()
			if apperrors.CodeOf(e.Err) == apperrors.ErrInternal && e.Type != gin.ErrorTypeBind {
				event = log.Error()
			}
			event.
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		status := http.StatusInternalServerError
		message := "internal server error"
		var appErr *apperrors.AppError
		if errors.As(lastErr.Err, &appErr) && appErr.StatusCode() != http.StatusInternalServerError {
			status = appErr.StatusCode()
			message = appErr.Message
		} else if lastErr.Type == gin.ErrorTypeBind {
			status = http.StatusBadRequest
			message = "invalid request"
		}
		c.JSON(status, handler.NewErrorResponse(message))
	}
}
