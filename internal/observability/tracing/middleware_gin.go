package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/wadesk/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "wadesk/http"

// GinMiddleware wraps each request in a server span. Spans are named after
// the route template so tenant ids in the path never become span names.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)

	return func(c *gin.Context) {
		parent := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(parent, spanName(c.Request.Method, c.FullPath()),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.request.method", c.Request.Method)),
		)
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		finishSpan(span, c)
	}
}

func finishSpan(span trace.Span, c *gin.Context) {
	status := c.Writer.Status()
	span.SetAttributes(
		attribute.String("http.route", routeOf(c)),
		attribute.Int("http.response.status_code", status),
	)
	if tenantID := obscontext.TenantIDFromContext(c.Request.Context()); tenantID != "" {
		span.SetAttributes(attribute.String("tenant_id", tenantID))
	}

	if lastErr := c.Errors.Last(); lastErr != nil {
		span.RecordError(lastErr.Err)
	}
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

func spanName(method, route string) string {
	if route == "" {
		return "HTTP " + method
	}
	return method + " " + route
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
