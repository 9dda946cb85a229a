package context

import (
	"strings"

	"github.com/gin-gonic/gin"
)

func RequestIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value := RequestIDFromContext(c.Request.Context()); value != "" {
		return value
	}
	return strings.TrimSpace(c.GetString("request_id"))
}

func TenantIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value := TenantIDFromContext(c.Request.Context()); value != "" {
		return value
	}
	return strings.TrimSpace(c.GetString("tenant_id"))
}
