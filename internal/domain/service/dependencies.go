package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
)

// Notifier dispatches a verification code to its destination out-of-band.
// Delivery is fire-and-forget from the core's perspective: a failure is
// surfaced to the caller but never retried here.
type Notifier interface {
	SendCode(ctx context.Context, methodType models.MethodType, destination, code string, purpose models.CodePurpose) error
}

// CredentialVerifier re-validates the user's primary credential. Implemented
// by the account-service client; the MFA core never sees password hashes.
type CredentialVerifier interface {
	VerifyPrimaryCredential(ctx context.Context, userID uuid.UUID, credential string) (bool, error)
}

// EventPublisher emits domain events for downstream consumers. Publishing
// failures are logged, never propagated into the verification outcome.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, subject string, payload interface{}) error
}

// Event types published by this service.
const (
	EventMethodEnrolled         = "mfa.method.enrolled"
	EventMethodVerified         = "mfa.method.verified"
	EventVerificationSucceeded  = "mfa.verification.succeeded"
	EventVerificationFailed     = "mfa.verification.failed"
	EventUserLocked             = "mfa.user.locked"
	EventDisabled               = "mfa.disabled"
	EventBackupCodesRegenerated = "mfa.backup_codes.regenerated"
	EventDeviceTrusted          = "mfa.device.trusted"
	EventDeviceRevoked          = "mfa.device.revoked"
)

// LockoutCache mirrors the policy lock in a fast store so a locked user is
// short-circuited without touching the database. A nil implementation is
// valid; the policy row stays authoritative either way.
type LockoutCache interface {
	IsLocked(ctx context.Context, userID uuid.UUID) (bool, error)
	SetLocked(ctx context.Context, userID uuid.UUID, untilSeconds int64) error
	Clear(ctx context.Context, userID uuid.UUID) error
}
