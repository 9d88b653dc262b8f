package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/service"
)

func newDeviceManagerForTest() (service.TrustedDeviceManager, *MockTrustedDeviceRepository, *MockEventPublisher) {
	devices := new(MockTrustedDeviceRepository)
	events := new(MockEventPublisher)
	manager := service.NewTrustedDeviceManager(devices, events, zap.NewNop())
	return manager, devices, events
}

func TestTrustedDeviceManager_Evaluate_EmptyFingerprint(t *testing.T) {
	ctx := context.Background()
	manager, devices, _ := newDeviceManagerForTest()

	trusted, device, err := manager.Evaluate(ctx, uuid.New(), "")

	require.NoError(t, err)
	assert.False(t, trusted)
	assert.Nil(t, device)
	devices.AssertNotCalled(t, "FindActiveByFingerprint", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrustedDeviceManager_Evaluate_UnknownDevice(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager, devices, _ := newDeviceManagerForTest()

	devices.On("FindActiveByFingerprint", ctx, userID, "fp-1").Return(nil, domainErrors.ErrNotFound).Once()

	trusted, device, err := manager.Evaluate(ctx, userID, "fp-1")

	require.NoError(t, err)
	assert.False(t, trusted)
	assert.Nil(t, device)
}

func TestTrustedDeviceManager_Evaluate_Trusted(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager, devices, _ := newDeviceManagerForTest()

	record := &models.TrustedDevice{
		ID:             uuid.New(),
		UserID:         userID,
		Fingerprint:    "fp-1",
		TrustExpiresAt: time.Now().Add(24 * time.Hour),
	}
	devices.On("FindActiveByFingerprint", ctx, userID, "fp-1").Return(record, nil).Once()
	devices.On("TouchLastUsed", ctx, record.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

	trusted, device, err := manager.Evaluate(ctx, userID, "fp-1")

	require.NoError(t, err)
	assert.True(t, trusted)
	assert.Equal(t, record, device)
	devices.AssertExpectations(t)
}

func TestTrustedDeviceManager_Evaluate_ExpiredTrust(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager, devices, _ := newDeviceManagerForTest()

	record := &models.TrustedDevice{
		ID:             uuid.New(),
		UserID:         userID,
		TrustExpiresAt: time.Now().Add(-time.Hour),
	}
	devices.On("FindActiveByFingerprint", ctx, userID, "fp-1").Return(record, nil).Once()

	trusted, device, err := manager.Evaluate(ctx, userID, "fp-1")

	require.NoError(t, err)
	assert.False(t, trusted)
	assert.Equal(t, record, device)
	devices.AssertNotCalled(t, "TouchLastUsed", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrustedDeviceManager_Mint_RefreshesExistingRecord(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager, devices, events := newDeviceManagerForTest()

	refreshed := &models.TrustedDevice{
		ID:             uuid.New(),
		UserID:         userID,
		Fingerprint:    "fp-1",
		TrustExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	}
	devices.On("RefreshTrust", ctx, userID, "fp-1", mock.AnythingOfType("time.Time"), "Chrome on Linux").
		Return(refreshed, true, nil).Once()
	events.On("Publish", ctx, service.EventDeviceTrusted, userID.String(), mock.Anything).Return(nil).Once()

	device, err := manager.Mint(ctx, userID, "fp-1", "Chrome on Linux", 30)

	require.NoError(t, err)
	assert.Equal(t, refreshed, device)
	devices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	events.AssertExpectations(t)
}

func TestTrustedDeviceManager_Mint_CreatesWhenNoLiveRecord(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager, devices, events := newDeviceManagerForTest()

	devices.On("RefreshTrust", ctx, userID, "fp-1", mock.AnythingOfType("time.Time"), "Firefox on Windows").
		Return(nil, false, nil).Once()
	devices.On("Create", ctx, mock.MatchedBy(func(d *models.TrustedDevice) bool {
		return d.UserID == userID && d.Fingerprint == "fp-1" && d.FriendlyName == "Firefox on Windows" && !d.Revoked
	})).Return(nil).Once()
	events.On("Publish", ctx, service.EventDeviceTrusted, userID.String(), mock.Anything).Return(nil).Once()

	device, err := manager.Mint(ctx, userID, "fp-1", "Firefox on Windows", 7)

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), device.TrustExpiresAt, 10*time.Second)
	devices.AssertExpectations(t)
}

func TestTrustedDeviceManager_Mint_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newDeviceManagerForTest()

	_, err := manager.Mint(ctx, uuid.New(), "", "name", 30)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)

	_, err = manager.Mint(ctx, uuid.New(), "fp-1", "name", 0)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)
}

func TestTrustedDeviceManager_Revoke_Success(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager, devices, events := newDeviceManagerForTest()

	record := &models.TrustedDevice{ID: uuid.New(), UserID: userID}
	devices.On("FindByID", ctx, record.ID).Return(record, nil).Once()
	devices.On("Revoke", ctx, record.ID, "lost phone").Return(nil).Once()
	events.On("Publish", ctx, service.EventDeviceRevoked, userID.String(), mock.Anything).Return(nil).Once()

	require.NoError(t, manager.Revoke(ctx, userID, record.ID, "lost phone"))
	devices.AssertExpectations(t)
}

func TestTrustedDeviceManager_Revoke_WrongOwner(t *testing.T) {
	ctx := context.Background()
	manager, devices, _ := newDeviceManagerForTest()

	record := &models.TrustedDevice{ID: uuid.New(), UserID: uuid.New()}
	devices.On("FindByID", ctx, record.ID).Return(record, nil).Once()

	err := manager.Revoke(ctx, uuid.New(), record.ID, "reason")

	assert.ErrorIs(t, err, domainErrors.ErrForbidden)
	devices.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrustedDeviceManager_Revoke_NotFound(t *testing.T) {
	ctx := context.Background()
	manager, devices, _ := newDeviceManagerForTest()

	deviceID := uuid.New()
	devices.On("FindByID", ctx, deviceID).Return(nil, domainErrors.ErrNotFound).Once()

	err := manager.Revoke(ctx, uuid.New(), deviceID, "reason")

	assert.ErrorIs(t, err, domainErrors.ErrDeviceNotFound)
}

func TestTrustedDeviceManager_Revoke_AlreadyRevokedIsNoop(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager, devices, events := newDeviceManagerForTest()

	record := &models.TrustedDevice{ID: uuid.New(), UserID: userID, Revoked: true}
	devices.On("FindByID", ctx, record.ID).Return(record, nil).Once()

	require.NoError(t, manager.Revoke(ctx, userID, record.ID, "reason"))
	devices.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrustedDeviceManager_RevokeAll(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager, devices, events := newDeviceManagerForTest()

	devices.On("RevokeAllForUser", ctx, userID, "mfa disabled").Return(int64(3), nil).Once()
	events.On("Publish", ctx, service.EventDeviceRevoked, userID.String(), mock.Anything).Return(nil).Once()

	revoked, err := manager.RevokeAll(ctx, userID, "mfa disabled")

	require.NoError(t, err)
	assert.Equal(t, int64(3), revoked)
	events.AssertExpectations(t)
}

func TestTrustedDeviceManager_RevokeAll_NothingToRevoke(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	manager, devices, events := newDeviceManagerForTest()

	devices.On("RevokeAllForUser", ctx, userID, "reason").Return(int64(0), nil).Once()

	revoked, err := manager.RevokeAll(ctx, userID, "reason")

	require.NoError(t, err)
	assert.Zero(t, revoked)
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
