package errors

import (
	"errors"
	"fmt"
)

var (
	// Generic errors
	ErrInternal      = errors.New("internal server error")
	ErrInvalidInput  = errors.New("invalid request")
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrForbidden     = errors.New("access denied")
	ErrConflict      = errors.New("resource conflict")

	// Code verification errors
	ErrInvalidCode       = errors.New("invalid verification code")
	ErrExpiredCode       = errors.New("verification code expired")
	ErrAlreadyUsedCode   = errors.New("verification code already used")
	ErrAttemptsExhausted = errors.New("verification code attempts exhausted")
	ErrRateLimited       = errors.New("too many failed verification attempts")

	// Method errors
	ErrMethodNotFound      = errors.New("verification method not found")
	ErrMethodAlreadyExists = errors.New("verification method already exists")
	ErrMethodNotVerified   = errors.New("verification method not verified")
	ErrMFANotEnabled       = errors.New("multi-factor authentication not enabled")

	// Backup code errors
	ErrBackupCodeConsumed = errors.New("backup code invalid or already consumed")
	ErrNoBackupCodes      = errors.New("no backup codes issued")

	// Policy errors
	ErrEnforcedMFACannotDisable = errors.New("multi-factor authentication is enforced and cannot be disabled")
	ErrCredentialMismatch       = errors.New("primary credential mismatch")

	// Device trust errors
	ErrDeviceNotFound = errors.New("trusted device not found")
	ErrDeviceRevoked  = errors.New("trusted device revoked")

	// Delivery errors
	ErrDeliveryFailed = errors.New("code delivery failed")
)

// AppError carries an HTTP status and a machine-readable code alongside the
// underlying error so handlers can render an actionable response.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(err error, message string, statusCode int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
	}
}
