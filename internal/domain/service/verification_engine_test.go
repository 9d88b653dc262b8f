package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/config"
	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/service"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/utils/metrics"
)

type engineTestDeps struct {
	policies     *MockPolicyRepository
	methods      *MockMethodRepository
	vault        *MockBackupCodeVault
	channelStore *MockChannelCodeStore
	devices      *MockTrustedDeviceManager
	totp         *MockTOTPProvider
	encryption   *MockEncryptionService
	credentials  *MockCredentialVerifier
	notifier     *MockNotifier
	events       *MockEventPublisher
	lockoutCache *MockLockoutCache
}

func newEngineForTest() (service.VerificationEngine, *engineTestDeps) {
	deps := &engineTestDeps{
		policies:     new(MockPolicyRepository),
		methods:      new(MockMethodRepository),
		vault:        new(MockBackupCodeVault),
		channelStore: new(MockChannelCodeStore),
		devices:      new(MockTrustedDeviceManager),
		totp:         new(MockTOTPProvider),
		encryption:   new(MockEncryptionService),
		credentials:  new(MockCredentialVerifier),
		notifier:     new(MockNotifier),
		events:       new(MockEventPublisher),
		lockoutCache: new(MockLockoutCache),
	}
	mfaCfg := &config.MFAConfig{
		TOTPSecretEncryptionKey: testEncryptionKey,
		DeviceTrustDurationDays: 30,
	}
	lockoutCfg := &config.LockoutConfig{
		MaxConsecutiveFailures: 5,
		Cooldown:               15 * time.Minute,
	}
	engine := service.NewVerificationEngine(
		mfaCfg,
		lockoutCfg,
		deps.policies,
		deps.methods,
		deps.vault,
		deps.channelStore,
		deps.devices,
		deps.totp,
		deps.encryption,
		deps.credentials,
		deps.notifier,
		deps.events,
		deps.lockoutCache,
		zap.NewNop(),
	)
	return engine, deps
}

func enabledPolicy(userID uuid.UUID) *models.MFAPolicy {
	return &models.MFAPolicy{UserID: userID, Enabled: true}
}

func totpMethod(userID uuid.UUID) *models.MFAMethod {
	return &models.MFAMethod{
		ID:              uuid.New(),
		UserID:          userID,
		Type:            models.MethodTypeTOTP,
		IsEnabled:       true,
		IsVerified:      true,
		SecretEncrypted: "enc-blob",
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestVerificationEngine_Verify_TOTPSuccess(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()
	method := totpMethod(userID)

	deps.policies.On("EnsureForUser", ctx, userID, mock.AnythingOfType("models.MFAPolicy")).
		Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{method}, nil).Once()
	deps.encryption.On("Decrypt", "enc-blob", testEncryptionKey).Return("SECRET", nil).Once()
	deps.totp.On("ValidateAt", "SECRET", "123456", mock.AnythingOfType("time.Time")).
		Return(true, int64(107374), nil).Once()
	deps.policies.On("RecordSuccess", ctx, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	deps.lockoutCache.On("Clear", ctx, userID).Return(nil).Once()
	deps.methods.On("RecordUse", ctx, method.ID, mock.AnythingOfType("time.Time"), mock.MatchedBy(func(c *int64) bool {
		return c != nil && *c == 107374
	})).Return(nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationSucceeded, userID.String(), mock.Anything).Return(nil).Once()

	result, err := engine.Verify(ctx, models.VerifyRequest{UserID: userID, Code: "123456"})

	require.NoError(t, err)
	assert.Equal(t, models.MethodTypeTOTP, result.MethodUsed)
	assert.False(t, result.UsedBackup)
	assert.Nil(t, result.Device)
	deps.policies.AssertExpectations(t)
	deps.methods.AssertExpectations(t)
}

func TestVerificationEngine_Verify_TOTPReplayRejected(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()
	method := totpMethod(userID)
	method.LastUsedCounter = int64Ptr(107374)

	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{method}, nil).Once()
	deps.encryption.On("Decrypt", "enc-blob", testEncryptionKey).Return("SECRET", nil).Once()
	// The code is valid for the same counter the method already consumed.
	deps.totp.On("ValidateAt", "SECRET", "123456", mock.AnythingOfType("time.Time")).
		Return(true, int64(107374), nil).Once()
	deps.policies.On("RecordFailure", ctx, userID, mock.AnythingOfType("time.Time"), 5, 15*time.Minute).
		Return(1, nil, nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationFailed, userID.String(), mock.Anything).Return(nil).Once()

	_, err := engine.Verify(ctx, models.VerifyRequest{UserID: userID, Code: "123456"})

	assert.ErrorIs(t, err, domainErrors.ErrAlreadyUsedCode)
	deps.methods.AssertNotCalled(t, "RecordUse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationEngine_Verify_LockedByCache(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(true, nil).Once()

	_, err := engine.Verify(ctx, models.VerifyRequest{UserID: userID, Code: "123456"})

	assert.ErrorIs(t, err, domainErrors.ErrRateLimited)
	deps.methods.AssertNotCalled(t, "ListByUserID", mock.Anything, mock.Anything)
}

func TestVerificationEngine_Verify_LockedByPolicy(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	until := time.Now().Add(10 * time.Minute)
	policy := enabledPolicy(userID)
	policy.LockedUntil = &until

	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(policy, nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()

	_, err := engine.Verify(ctx, models.VerifyRequest{UserID: userID, Code: "123456"})

	assert.ErrorIs(t, err, domainErrors.ErrRateLimited)
}

func TestVerificationEngine_Verify_FailureTripsLockout(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()
	method := totpMethod(userID)

	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{method}, nil).Once()
	deps.encryption.On("Decrypt", "enc-blob", testEncryptionKey).Return("SECRET", nil).Once()
	deps.totp.On("ValidateAt", "SECRET", "000000", mock.AnythingOfType("time.Time")).
		Return(false, int64(0), nil).Once()

	lockedUntil := time.Now().Add(15 * time.Minute)
	deps.policies.On("RecordFailure", ctx, userID, mock.AnythingOfType("time.Time"), 5, 15*time.Minute).
		Return(5, &lockedUntil, nil).Once()
	deps.lockoutCache.On("SetLocked", ctx, userID, mock.AnythingOfType("int64")).Return(nil).Once()
	deps.events.On("Publish", ctx, service.EventUserLocked, userID.String(), mock.Anything).Return(nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationFailed, userID.String(), mock.Anything).Return(nil).Once()

	lockoutsBefore := testutil.ToFloat64(metrics.LockoutsTotal)
	_, err := engine.Verify(ctx, models.VerifyRequest{UserID: userID, Code: "000000"})

	assert.ErrorIs(t, err, domainErrors.ErrInvalidCode)
	assert.Equal(t, lockoutsBefore+1, testutil.ToFloat64(metrics.LockoutsTotal))
	deps.lockoutCache.AssertExpectations(t)
	deps.events.AssertExpectations(t)
}

func TestVerificationEngine_Verify_BackupCodePath(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.vault.On("Consume", ctx, userID, "ABCD-EF23", "10.0.0.1").Return(3, nil).Once()
	deps.policies.On("RecordSuccess", ctx, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	deps.lockoutCache.On("Clear", ctx, userID).Return(nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationSucceeded, userID.String(), mock.Anything).Return(nil).Once()

	result, err := engine.Verify(ctx, models.VerifyRequest{UserID: userID, Code: "ABCD-EF23", ClientIP: "10.0.0.1"})

	require.NoError(t, err)
	assert.True(t, result.UsedBackup)
	require.NotNil(t, result.BackupCodesRemaining)
	assert.Equal(t, 3, *result.BackupCodesRemaining)
	deps.methods.AssertNotCalled(t, "ListByUserID", mock.Anything, mock.Anything)
}

func TestVerificationEngine_Verify_BackupCodeConsumedCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.vault.On("Consume", ctx, userID, "ABCD-EF23", "").Return(0, domainErrors.ErrBackupCodeConsumed).Once()
	deps.policies.On("RecordFailure", ctx, userID, mock.AnythingOfType("time.Time"), 5, 15*time.Minute).
		Return(2, nil, nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationFailed, userID.String(), mock.Anything).Return(nil).Once()

	_, err := engine.Verify(ctx, models.VerifyRequest{UserID: userID, Code: "ABCD-EF23"})

	assert.ErrorIs(t, err, domainErrors.ErrBackupCodeConsumed)
	deps.policies.AssertExpectations(t)
}

func TestVerificationEngine_Verify_RememberDeviceMintsTrust(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()
	method := totpMethod(userID)

	policy := enabledPolicy(userID)
	policy.DeviceTrustEnabled = true

	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(policy, nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{method}, nil).Once()
	deps.encryption.On("Decrypt", "enc-blob", testEncryptionKey).Return("SECRET", nil).Once()
	deps.totp.On("ValidateAt", "SECRET", "123456", mock.AnythingOfType("time.Time")).
		Return(true, int64(107374), nil).Once()
	deps.policies.On("RecordSuccess", ctx, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	deps.lockoutCache.On("Clear", ctx, userID).Return(nil).Once()
	deps.methods.On("RecordUse", ctx, method.ID, mock.AnythingOfType("time.Time"), mock.Anything).Return(nil).Once()
	// Policy carries no duration override, so the configured default applies.
	deps.policies.On("FindByUserID", ctx, userID).Return(policy, nil).Once()
	minted := &models.TrustedDevice{ID: uuid.New(), UserID: userID, Fingerprint: "fp-1"}
	deps.devices.On("Mint", ctx, userID, "fp-1", "Chrome on Linux", 30).Return(minted, nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationSucceeded, userID.String(), mock.Anything).Return(nil).Once()

	result, err := engine.Verify(ctx, models.VerifyRequest{
		UserID:         userID,
		Code:           "123456",
		RememberDevice: true,
		Fingerprint:    "fp-1",
		FriendlyName:   "Chrome on Linux",
	})

	require.NoError(t, err)
	assert.Equal(t, minted, result.Device)
	deps.devices.AssertExpectations(t)
}

func TestVerificationEngine_Verify_DeviceTrustDisabledSkipsMint(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()
	method := totpMethod(userID)

	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{method}, nil).Once()
	deps.encryption.On("Decrypt", "enc-blob", testEncryptionKey).Return("SECRET", nil).Once()
	deps.totp.On("ValidateAt", "SECRET", "123456", mock.AnythingOfType("time.Time")).
		Return(true, int64(1), nil).Once()
	deps.policies.On("RecordSuccess", ctx, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	deps.lockoutCache.On("Clear", ctx, userID).Return(nil).Once()
	deps.methods.On("RecordUse", ctx, method.ID, mock.AnythingOfType("time.Time"), mock.Anything).Return(nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationSucceeded, userID.String(), mock.Anything).Return(nil).Once()

	result, err := engine.Verify(ctx, models.VerifyRequest{
		UserID:         userID,
		Code:           "123456",
		RememberDevice: true,
		Fingerprint:    "fp-1",
	})

	require.NoError(t, err)
	assert.Nil(t, result.Device)
	deps.devices.AssertNotCalled(t, "Mint", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationEngine_Verify_BackupCodeRespectsDeviceTrustSetting(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	// Device trust is switched off, so recovery must not mint a device even
	// when the client asks to be remembered.
	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.vault.On("Consume", ctx, userID, "ABCD-EF23", "").Return(5, nil).Once()
	deps.policies.On("RecordSuccess", ctx, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	deps.lockoutCache.On("Clear", ctx, userID).Return(nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationSucceeded, userID.String(), mock.Anything).Return(nil).Once()

	result, err := engine.Verify(ctx, models.VerifyRequest{
		UserID:         userID,
		Code:           "ABCD-EF23",
		RememberDevice: true,
		Fingerprint:    "fp-1",
	})

	require.NoError(t, err)
	assert.True(t, result.UsedBackup)
	assert.Nil(t, result.Device)
	deps.devices.AssertNotCalled(t, "Mint", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerificationEngine_Verify_BackupCodeMintsWhenTrustEnabled(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	policy := enabledPolicy(userID)
	policy.DeviceTrustEnabled = true

	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(policy, nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.vault.On("Consume", ctx, userID, "ABCD-EF23", "").Return(5, nil).Once()
	deps.policies.On("RecordSuccess", ctx, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	deps.lockoutCache.On("Clear", ctx, userID).Return(nil).Once()
	deps.policies.On("FindByUserID", ctx, userID).Return(policy, nil).Once()
	minted := &models.TrustedDevice{ID: uuid.New(), UserID: userID, Fingerprint: "fp-1"}
	deps.devices.On("Mint", ctx, userID, "fp-1", "", 30).Return(minted, nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationSucceeded, userID.String(), mock.Anything).Return(nil).Once()

	result, err := engine.Verify(ctx, models.VerifyRequest{
		UserID:         userID,
		Code:           "ABCD-EF23",
		RememberDevice: true,
		Fingerprint:    "fp-1",
	})

	require.NoError(t, err)
	assert.Equal(t, minted, result.Device)
	deps.devices.AssertExpectations(t)
}

func TestVerificationEngine_Verify_NoUsableMethods(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	pending := &models.MFAMethod{ID: uuid.New(), UserID: userID, Type: models.MethodTypeTOTP, IsEnabled: true, IsVerified: false}
	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{pending}, nil).Once()
	deps.policies.On("RecordFailure", ctx, userID, mock.AnythingOfType("time.Time"), 5, 15*time.Minute).
		Return(1, nil, nil).Once()

	_, err := engine.Verify(ctx, models.VerifyRequest{UserID: userID, Code: "123456"})

	assert.ErrorIs(t, err, domainErrors.ErrMethodNotFound)
}

func TestVerificationEngine_Verify_HintRestrictsToRequestedType(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	totpM := totpMethod(userID)
	sms := smsMethod(userID)
	deps.policies.On("EnsureForUser", ctx, userID, mock.Anything).Return(enabledPolicy(userID), nil).Once()
	deps.lockoutCache.On("IsLocked", ctx, userID).Return(false, nil).Once()
	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{totpM, sms}, nil).Once()
	deps.channelStore.On("Check", ctx, userID, sms, models.CodePurposeLogin, "123456").Return(nil).Once()
	deps.policies.On("RecordSuccess", ctx, userID, mock.AnythingOfType("time.Time")).Return(nil).Once()
	deps.lockoutCache.On("Clear", ctx, userID).Return(nil).Once()
	deps.methods.On("RecordUse", ctx, sms.ID, mock.AnythingOfType("time.Time"), (*int64)(nil)).Return(nil).Once()
	deps.events.On("Publish", ctx, service.EventVerificationSucceeded, userID.String(), mock.Anything).Return(nil).Once()

	result, err := engine.Verify(ctx, models.VerifyRequest{
		UserID:         userID,
		Code:           "123456",
		MethodTypeHint: models.MethodTypeSMS,
	})

	require.NoError(t, err)
	assert.Equal(t, models.MethodTypeSMS, result.MethodUsed)
	deps.encryption.AssertNotCalled(t, "Decrypt", mock.Anything, mock.Anything)
}

func TestVerificationEngine_SendChallengeCode_Success(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()
	sms := smsMethod(userID)

	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{sms}, nil).Once()
	deps.channelStore.On("Issue", ctx, userID, sms, models.CodePurposeLogin).
		Return("123456", time.Now().Add(5*time.Minute), nil).Once()
	deps.notifier.On("SendCode", ctx, models.MethodTypeSMS, sms.Destination, "123456", models.CodePurposeLogin).
		Return(nil).Once()

	sent, err := engine.SendChallengeCode(ctx, userID, "", "")

	require.NoError(t, err)
	assert.True(t, sent)
	deps.notifier.AssertExpectations(t)
}

func TestVerificationEngine_SendChallengeCode_NoChannelMethod(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{totpMethod(userID)}, nil).Once()

	sent, err := engine.SendChallengeCode(ctx, userID, "", models.CodePurposeLogin)

	assert.ErrorIs(t, err, domainErrors.ErrMethodNotFound)
	assert.False(t, sent)
}

func TestVerificationEngine_SendChallengeCode_DeliveryFailure(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()
	sms := smsMethod(userID)

	deps.methods.On("ListByUserID", ctx, userID).Return([]*models.MFAMethod{sms}, nil).Once()
	deps.channelStore.On("Issue", ctx, userID, sms, models.CodePurposeLogin).
		Return("123456", time.Now().Add(5*time.Minute), nil).Once()
	deps.notifier.On("SendCode", ctx, models.MethodTypeSMS, sms.Destination, "123456", models.CodePurposeLogin).
		Return(assert.AnError).Once()

	sent, err := engine.SendChallengeCode(ctx, userID, models.MethodTypeSMS, models.CodePurposeLogin)

	assert.ErrorIs(t, err, domainErrors.ErrDeliveryFailed)
	assert.False(t, sent)
}

func TestVerificationEngine_Disable_Success(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	deps.credentials.On("VerifyPrimaryCredential", ctx, userID, "hunter2").Return(true, nil).Once()
	deps.policies.On("FindByUserID", ctx, userID).Return(enabledPolicy(userID), nil).Once()
	deps.methods.On("DisableAllForUser", ctx, userID).Return(int64(2), nil).Once()
	deps.devices.On("RevokeAll", ctx, userID, "mfa disabled").Return(int64(1), nil).Once()
	deps.vault.On("Clear", ctx, userID).Return(nil).Once()
	deps.policies.On("SetEnabled", ctx, userID, false).Return(nil).Once()
	deps.events.On("Publish", ctx, service.EventDisabled, userID.String(), mock.Anything).Return(nil).Once()

	require.NoError(t, engine.Disable(ctx, userID, "hunter2"))
	deps.methods.AssertExpectations(t)
	deps.devices.AssertExpectations(t)
	deps.vault.AssertExpectations(t)
}

func TestVerificationEngine_Disable_CredentialMismatch(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	deps.credentials.On("VerifyPrimaryCredential", ctx, userID, "wrong").Return(false, nil).Once()

	err := engine.Disable(ctx, userID, "wrong")

	assert.ErrorIs(t, err, domainErrors.ErrCredentialMismatch)
	deps.policies.AssertNotCalled(t, "FindByUserID", mock.Anything, mock.Anything)
}

func TestVerificationEngine_Disable_EnforcedPolicyRejected(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	policy := enabledPolicy(userID)
	policy.Enforced = true
	deps.credentials.On("VerifyPrimaryCredential", ctx, userID, "hunter2").Return(true, nil).Once()
	deps.policies.On("FindByUserID", ctx, userID).Return(policy, nil).Once()

	err := engine.Disable(ctx, userID, "hunter2")

	assert.ErrorIs(t, err, domainErrors.ErrEnforcedMFACannotDisable)
	deps.methods.AssertNotCalled(t, "DisableAllForUser", mock.Anything, mock.Anything)
}

func TestVerificationEngine_Disable_NotEnabled(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	deps.credentials.On("VerifyPrimaryCredential", ctx, userID, "hunter2").Return(true, nil).Once()
	deps.policies.On("FindByUserID", ctx, userID).Return(nil, domainErrors.ErrNotFound).Once()

	err := engine.Disable(ctx, userID, "hunter2")

	assert.ErrorIs(t, err, domainErrors.ErrMFANotEnabled)
}

func TestVerificationEngine_RegenerateBackupCodes_Success(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	deps.credentials.On("VerifyPrimaryCredential", ctx, userID, "hunter2").Return(true, nil).Once()
	deps.policies.On("FindByUserID", ctx, userID).Return(enabledPolicy(userID), nil).Once()
	deps.vault.On("Generate", ctx, userID).Return([]string{"AAAA-BBBB"}, nil).Once()
	deps.events.On("Publish", ctx, service.EventBackupCodesRegenerated, userID.String(), mock.Anything).Return(nil).Once()

	codes, err := engine.RegenerateBackupCodes(ctx, userID, "hunter2")

	require.NoError(t, err)
	assert.Equal(t, []string{"AAAA-BBBB"}, codes)
}

func TestVerificationEngine_RegenerateBackupCodes_CredentialMismatch(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	deps.credentials.On("VerifyPrimaryCredential", ctx, userID, "wrong").Return(false, nil).Once()

	_, err := engine.RegenerateBackupCodes(ctx, userID, "wrong")

	assert.ErrorIs(t, err, domainErrors.ErrCredentialMismatch)
	deps.vault.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestVerificationEngine_RegenerateBackupCodes_NotEnabled(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	engine, deps := newEngineForTest()

	policy := &models.MFAPolicy{UserID: userID, Enabled: false}
	deps.credentials.On("VerifyPrimaryCredential", ctx, userID, "hunter2").Return(true, nil).Once()
	deps.policies.On("FindByUserID", ctx, userID).Return(policy, nil).Once()

	_, err := engine.RegenerateBackupCodes(ctx, userID, "hunter2")

	assert.ErrorIs(t, err, domainErrors.ErrMFANotEnabled)
}
