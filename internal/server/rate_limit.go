package server

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/wadesk/internal/observability/logger"
	"go.uber.org/zap"
)

// AggregateRateLimit throttles on-demand aggregation per tenant. It is a no-op
// when Redis is not configured.
func (s *Server) AggregateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		tenantID := tenantIDFromContext(c)

		result, err := s.limiter.AllowTenant(ctx, tenantID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("usage aggregate rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyAggregateRateLimit(c, result.RetryAfter)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Next()
	}
}

func denyAggregateRateLimit(c *gin.Context, retryAfter time.Duration) {
	logger.FromContext(c.Request.Context()).Warn("usage aggregate rate limit exceeded",
		zap.Duration("retry_after", retryAfter),
	)

	seconds := int64(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.FormatInt(seconds, 10))
	AbortWithError(c, ErrRateLimited)
}
