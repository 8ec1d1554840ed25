package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/wadesk/internal/observability/context"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
)

const contextTenantIDKey = "tenant_id"

// TenantContext parses the :tenant_id path segment and carries it on the
// request context for logging and tracing.
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Param("tenant_id"))
		tenantID, err := snowflake.ParseString(raw)
		if err != nil || tenantID <= 0 {
			AbortWithError(c, usagedomain.ErrInvalidTenant)
			return
		}

		c.Set(contextTenantIDKey, tenantID)
		c.Request = c.Request.WithContext(obscontext.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Next()
	}
}

func tenantIDFromContext(c *gin.Context) snowflake.ID {
	value, ok := c.Get(contextTenantIDKey)
	if !ok {
		return 0
	}
	id, _ := value.(snowflake.ID)
	return id
}
