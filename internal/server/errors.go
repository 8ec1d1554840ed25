package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/wadesk/internal/plan"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// Domain sentinels that surface as a single-field validation error.
var fieldErrors = []struct {
	err     error
	field   string
	message string
}{
	{usagedomain.ErrInvalidTenant, "tenant", "tenant id must be a positive integer"},
	{usagedomain.ErrInvalidDate, "date", "date must be YYYY-MM-DD or RFC3339"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

func validationPayload(errs []ValidationError) errorPayload {
	return errorPayload{Type: "validation_error", Message: "validation error", Errors: errs}
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, validationPayload(vErr.Errors)
	}

	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			return http.StatusBadRequest, validationPayload([]ValidationError{
				{Field: fe.field, Code: fe.err.Error(), Message: fe.message},
			})
		}
	}

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, usagedomain.ErrTenantNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, plan.ErrUnknownPlan):
		return http.StatusUnprocessableEntity, errorPayload{Type: "unknown_plan", Message: "tenant plan is not recognized"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

// classifyErrorForLog feeds the request logger's error_type and error_code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
