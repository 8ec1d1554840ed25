package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	obscontext "github.com/smallbiznis/wadesk/internal/observability/context"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware assigns a request id and logs each request once it completes.
func GinMiddleware(base *zap.Logger, cfg MiddlewareConfig) gin.HandlerFunc {
	if base == nil {
		base = zap.NewNop()
	}
	base = base.Named("http")

	return func(c *gin.Context) {
		start := time.Now()
		requestID := ensureRequestID(c)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}

		errorType := ""
		if lastErr := c.Errors.Last(); lastErr != nil {
			errorCode := ""
			if cfg.ErrorClassifier != nil {
				errorType, errorCode = cfg.ErrorClassifier(lastErr.Err)
			}
			fields = append(fields,
				zap.String("error_type", errorType),
				zap.String("error_code", errorCode),
			)
			if cfg.Debug {
				fields = append(fields, zap.Error(lastErr.Err))
			}
		}

		log := WithContext(c.Request.Context(), base)
		switch {
		case route == "/metrics" || route == "/health":
			log.Debug("http_request", fields...)
		case status >= http.StatusInternalServerError:
			log.Error("http_request", fields...)
		case errorType == "validation_error":
			log.Debug("http_request", fields...)
		case errorType == "rate_limited":
			log.Warn("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if requestID == "" {
		requestID = ulid.Make().String()
	}
	c.Set("request_id", requestID)
	c.Header(requestIDHeader, requestID)
	return requestID
}
