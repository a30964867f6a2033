package errors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/mo-task-monitor/internal/constants"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/services"
	"go.uber.org/zap"
)

// Error codes
const (
	// Authentication errors
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"

	// Authorization errors
	ErrCodeForbidden = "FORBIDDEN"

	// Validation errors
	ErrCodeInvalidInput = "INVALID_INPUT"

	// Resource errors
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"

	// Service errors
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeNotSupported       = "NOT_SUPPORTED"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError
func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, statusCode int, err *APIError) {
	c.JSON(statusCode, err)
}

// RespondWithServiceError maps a service or storage error to its HTTP status
// and logs it.
func RespondWithServiceError(c *gin.Context, err error) {
	log := Logger(c).With(zap.Error(err))

	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, repository.ErrInvalidImage):
		log.Info("Rejected request")
		BadRequest(c, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		log.Info("Rejected credentials")
		RespondWithError(c, http.StatusUnauthorized, NewAPIError(ErrCodeInvalidCredentials, err.Error()))
	case errors.Is(err, repository.ErrTaskNotFound),
		errors.Is(err, repository.ErrOrganizationNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		log.Info("Resource not found")
		NotFound(c, err.Error())
	case errors.Is(err, repository.ErrConflict):
		log.Warn("Write conflict")
		Conflict(c, err.Error())
	case errors.Is(err, repository.ErrUnsupported):
		log.Warn("Unsupported operation")
		RespondWithError(c, http.StatusConflict, NewAPIError(ErrCodeNotSupported, err.Error()))
	case errors.Is(err, repository.ErrBackendUnavailable):
		log.Error("Storage unavailable")
		ServiceUnavailable(c, "")
	default:
		log.Error("Request failed")
		InternalError(c, "")
	}
}

// Logger returns the request-scoped logger, or the global one outside requests.
func Logger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(constants.ContextKeyLogger); ok {
		if log, ok := v.(*zap.Logger); ok {
			return log
		}
	}
	return zap.L()
}

// Helper functions for common error responses

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, NewAPIError(ErrCodeUnauthorized, message))
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Access denied"
	}
	RespondWithError(c, http.StatusForbidden, NewAPIError(ErrCodeForbidden, message))
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, NewAPIError(ErrCodeNotFound, message))
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	RespondWithError(c, http.StatusBadRequest, NewAPIError(ErrCodeInvalidInput, message))
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	if message == "" {
		message = "Resource conflict"
	}
	RespondWithError(c, http.StatusConflict, NewAPIError(ErrCodeConflict, message))
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	RespondWithError(c, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, message))
}

// ServiceUnavailable sends a 503 response
func ServiceUnavailable(c *gin.Context, message string) {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	RespondWithError(c, http.StatusServiceUnavailable, NewAPIError(ErrCodeServiceUnavailable, message))
}
