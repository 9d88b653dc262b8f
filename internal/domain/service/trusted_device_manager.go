package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/repository"
)

// TrustedDeviceManager mints, evaluates and revokes time-bounded device
// trust.
type TrustedDeviceManager interface {
	// Evaluate reports whether the fingerprint maps to a live trust record.
	Evaluate(ctx context.Context, userID uuid.UUID, fingerprint string) (bool, *models.TrustedDevice, error)
	// Mint creates or refreshes trust for the fingerprint with
	// expiry = now + durationDays.
	Mint(ctx context.Context, userID uuid.UUID, fingerprint, friendlyName string, durationDays int) (*models.TrustedDevice, error)
	// Revoke revokes one device; revoking an already-revoked device is a
	// no-op success.
	Revoke(ctx context.Context, userID, deviceID uuid.UUID, reason string) error
	RevokeAll(ctx context.Context, userID uuid.UUID, reason string) (int64, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.TrustedDevice, error)
}

type trustedDeviceManager struct {
	devices repository.TrustedDeviceRepository
	events  EventPublisher
	logger  *zap.Logger
}

// NewTrustedDeviceManager creates a TrustedDeviceManager.
func NewTrustedDeviceManager(devices repository.TrustedDeviceRepository, events EventPublisher, logger *zap.Logger) TrustedDeviceManager {
	return &trustedDeviceManager{devices: devices, events: events, logger: logger}
}

func (m *trustedDeviceManager) Evaluate(ctx context.Context, userID uuid.UUID, fingerprint string) (bool, *models.TrustedDevice, error) {
	if fingerprint == "" {
		return false, nil, nil
	}
	device, err := m.devices.FindActiveByFingerprint(ctx, userID, fingerprint)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to look up trusted device: %w", err)
	}

	now := time.Now().UTC()
	if !device.Trusted(now) {
		return false, device, nil
	}
	if err := m.devices.TouchLastUsed(ctx, device.ID, now); err != nil {
		// Trust still stands; the timestamp is best-effort.
		m.logger.Warn("failed to touch trusted device",
			zap.String("device_id", device.ID.String()), zap.Error(err))
	}
	return true, device, nil
}

func (m *trustedDeviceManager) Mint(ctx context.Context, userID uuid.UUID, fingerprint, friendlyName string, durationDays int) (*models.TrustedDevice, error) {
	if fingerprint == "" {
		return nil, fmt.Errorf("%w: device fingerprint is required", domainErrors.ErrInvalidInput)
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("%w: device trust duration must be positive", domainErrors.ErrInvalidInput)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(durationDays) * 24 * time.Hour)

	// A non-revoked record for the fingerprint is refreshed in place; a
	// revoked one never comes back, so a new record is created instead.
	device, refreshed, err := m.devices.RefreshTrust(ctx, userID, fingerprint, expiresAt, friendlyName)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh device trust: %w", err)
	}
	if !refreshed {
		device = &models.TrustedDevice{
			ID:             uuid.New(),
			UserID:         userID,
			Fingerprint:    fingerprint,
			FriendlyName:   friendlyName,
			TrustExpiresAt: expiresAt,
			CreatedAt:      now,
		}
		if err := m.devices.Create(ctx, device); err != nil {
			return nil, fmt.Errorf("failed to create trusted device: %w", err)
		}
	}

	m.publish(ctx, EventDeviceTrusted, userID, map[string]interface{}{
		"device_id":  device.ID.String(),
		"expires_at": device.TrustExpiresAt,
	})
	return device, nil
}

func (m *trustedDeviceManager) Revoke(ctx context.Context, userID, deviceID uuid.UUID, reason string) error {
	device, err := m.devices.FindByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return domainErrors.ErrDeviceNotFound
		}
		return fmt.Errorf("failed to load trusted device: %w", err)
	}
	if device.UserID != userID {
		return domainErrors.ErrForbidden
	}
	if device.Revoked {
		return nil
	}
	if err := m.devices.Revoke(ctx, deviceID, reason); err != nil {
		return fmt.Errorf("failed to revoke trusted device: %w", err)
	}
	m.publish(ctx, EventDeviceRevoked, userID, map[string]interface{}{
		"device_id": deviceID.String(),
		"reason":    reason,
	})
	return nil
}

func (m *trustedDeviceManager) RevokeAll(ctx context.Context, userID uuid.UUID, reason string) (int64, error) {
	revoked, err := m.devices.RevokeAllForUser(ctx, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke trusted devices: %w", err)
	}
	if revoked > 0 {
		m.publish(ctx, EventDeviceRevoked, userID, map[string]interface{}{
			"count":  revoked,
			"reason": reason,
		})
	}
	return revoked, nil
}

func (m *trustedDeviceManager) List(ctx context.Context, userID uuid.UUID) ([]*models.TrustedDevice, error) {
	return m.devices.ListByUserID(ctx, userID)
}

func (m *trustedDeviceManager) publish(ctx context.Context, eventType string, userID uuid.UUID, payload interface{}) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, eventType, userID.String(), payload); err != nil {
		m.logger.Warn("failed to publish device event", zap.String("type", eventType), zap.Error(err))
	}
}

var _ TrustedDeviceManager = (*trustedDeviceManager)(nil)
