package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/onboarding-api/internal/service/audit"
)

// AuditContext attaches the caller's address and user agent to the request context
// so audit rows written further down carry them.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClientInfo(c.Request.Context(), audit.ClientInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
