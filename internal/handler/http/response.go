package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
)

// ResponseError is the error envelope of the API.
type ResponseError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RespondWithError sends an error response and logs it.
func RespondWithError(c *gin.Context, statusCode int, message string, errorCode string, logger *zap.Logger) {
	logger.Error("API error response",
		zap.Int("status_code", statusCode),
		zap.String("error_message", message),
		zap.String("error_code", errorCode),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)

	c.JSON(statusCode, ResponseError{
		Error: message,
		Code:  errorCode,
	})
}

// RespondWithData sends a success response carrying data.
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondWithMessage sends a success response carrying only a message.
func RespondWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"message": message})
}

// RespondWithNoContent sends an empty 204 response.
func RespondWithNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// RespondWithDomainError maps a domain sentinel to its HTTP rendering. An
// *AppError takes precedence; unknown errors become 500.
func RespondWithDomainError(c *gin.Context, err error, logger *zap.Logger) {
	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		RespondWithError(c, appErr.StatusCode, appErr.Message, appErr.Code, logger)
		return
	}

	status, code := classifyDomainError(err)
	RespondWithError(c, status, err.Error(), code, logger)
}

func classifyDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domainErrors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domainErrors.ErrInvalidCode):
		return http.StatusUnauthorized, "invalid_code"
	case errors.Is(err, domainErrors.ErrExpiredCode):
		return http.StatusUnauthorized, "expired_code"
	case errors.Is(err, domainErrors.ErrAlreadyUsedCode):
		return http.StatusUnauthorized, "code_already_used"
	case errors.Is(err, domainErrors.ErrAttemptsExhausted):
		return http.StatusUnauthorized, "attempts_exhausted"
	case errors.Is(err, domainErrors.ErrBackupCodeConsumed):
		return http.StatusUnauthorized, "backup_code_consumed"
	case errors.Is(err, domainErrors.ErrCredentialMismatch):
		return http.StatusUnauthorized, "credential_mismatch"
	case errors.Is(err, domainErrors.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domainErrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domainErrors.ErrEnforcedMFACannotDisable):
		return http.StatusForbidden, "mfa_enforced"
	case errors.Is(err, domainErrors.ErrMethodNotFound),
		errors.Is(err, domainErrors.ErrDeviceNotFound),
		errors.Is(err, domainErrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domainErrors.ErrMethodAlreadyExists),
		errors.Is(err, domainErrors.ErrAlreadyExists),
		errors.Is(err, domainErrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domainErrors.ErrMethodNotVerified):
		return http.StatusUnprocessableEntity, "method_not_verified"
	case errors.Is(err, domainErrors.ErrMFANotEnabled):
		return http.StatusUnprocessableEntity, "mfa_not_enabled"
	case errors.Is(err, domainErrors.ErrNoBackupCodes):
		return http.StatusUnprocessableEntity, "no_backup_codes"
	case errors.Is(err, domainErrors.ErrDeliveryFailed):
		return http.StatusBadGateway, "delivery_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
