package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
)

// TrustedDeviceRepository persists device-trust records.
type TrustedDeviceRepository interface {
	Create(ctx context.Context, device *models.TrustedDevice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TrustedDevice, error)
	// FindActiveByFingerprint returns the newest non-revoked record for the
	// fingerprint, expired or not; revoked records are never returned.
	FindActiveByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.TrustedDevice, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.TrustedDevice, error)
	// RefreshTrust extends trust on an existing non-revoked record. Returns
	// false when no such record exists and a new one must be created.
	RefreshTrust(ctx context.Context, userID uuid.UUID, fingerprint string, expiresAt time.Time, friendlyName string) (*models.TrustedDevice, bool, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	// Revoke sets revoked with its reason; revoking an already-revoked
	// record is a no-op success.
	Revoke(ctx context.Context, id uuid.UUID, reason string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string) (int64, error)
}
