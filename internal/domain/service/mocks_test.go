package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/service"
)

// --- Repository mocks ---

type MockMethodRepository struct {
	mock.Mock
}

func (m *MockMethodRepository) Create(ctx context.Context, method *models.MFAMethod) error {
	args := m.Called(ctx, method)
	return args.Error(0)
}

func (m *MockMethodRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.MFAMethod, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MFAMethod), args.Error(1)
}

func (m *MockMethodRepository) FindByUserIDAndType(ctx context.Context, userID uuid.UUID, methodType models.MethodType) (*models.MFAMethod, error) {
	args := m.Called(ctx, userID, methodType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MFAMethod), args.Error(1)
}

func (m *MockMethodRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.MFAMethod, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MFAMethod), args.Error(1)
}

func (m *MockMethodRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMethodRepository) SetPrimary(ctx context.Context, userID, methodID uuid.UUID) error {
	args := m.Called(ctx, userID, methodID)
	return args.Error(0)
}

func (m *MockMethodRepository) RecordUse(ctx context.Context, id uuid.UUID, usedAt time.Time, counter *int64) error {
	args := m.Called(ctx, id, usedAt, counter)
	return args.Error(0)
}

func (m *MockMethodRepository) DeleteUnverified(ctx context.Context, userID uuid.UUID, methodType models.MethodType) (bool, error) {
	args := m.Called(ctx, userID, methodType)
	return args.Bool(0), args.Error(1)
}

func (m *MockMethodRepository) DisableAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) EnsureForUser(ctx context.Context, userID uuid.UUID, defaults models.MFAPolicy) (*models.MFAPolicy, error) {
	args := m.Called(ctx, userID, defaults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MFAPolicy), args.Error(1)
}

func (m *MockPolicyRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.MFAPolicy, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MFAPolicy), args.Error(1)
}

func (m *MockPolicyRepository) Update(ctx context.Context, policy *models.MFAPolicy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) RecordSuccess(ctx context.Context, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *MockPolicyRepository) RecordFailure(ctx context.Context, userID uuid.UUID, at time.Time, threshold int, cooldown time.Duration) (int, *time.Time, error) {
	args := m.Called(ctx, userID, at, threshold, cooldown)
	var lockedUntil *time.Time
	if args.Get(1) != nil {
		lockedUntil = args.Get(1).(*time.Time)
	}
	return args.Int(0), lockedUntil, args.Error(2)
}

func (m *MockPolicyRepository) ClearLock(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockPolicyRepository) SetEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	args := m.Called(ctx, userID, enabled)
	return args.Error(0)
}

func (m *MockPolicyRepository) SetEnforced(ctx context.Context, userID uuid.UUID, enforced bool) error {
	args := m.Called(ctx, userID, enforced)
	return args.Error(0)
}

type MockBackupCodeRepository struct {
	mock.Mock
}

func (m *MockBackupCodeRepository) ReplaceBatch(ctx context.Context, userID uuid.UUID, codes []*models.BackupCode) error {
	args := m.Called(ctx, userID, codes)
	return args.Error(0)
}

func (m *MockBackupCodeRepository) FindByUserIDAndHash(ctx context.Context, userID uuid.UUID, codeHash string) (*models.BackupCode, error) {
	args := m.Called(ctx, userID, codeHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BackupCode), args.Error(1)
}

func (m *MockBackupCodeRepository) MarkUsedIfUnused(ctx context.Context, id uuid.UUID, usedAt time.Time, fromIP string) (bool, error) {
	args := m.Called(ctx, id, usedAt, fromIP)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackupCodeRepository) CountUnusedByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockBackupCodeRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockBackupCodeRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockVerificationCodeRepository struct {
	mock.Mock
}

func (m *MockVerificationCodeRepository) Create(ctx context.Context, code *models.VerificationCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockVerificationCodeRepository) FindCurrent(ctx context.Context, userID, methodID uuid.UUID, purpose models.CodePurpose) (*models.VerificationCode, error) {
	args := m.Called(ctx, userID, methodID, purpose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerificationCode), args.Error(1)
}

func (m *MockVerificationCodeRepository) MarkUsedIfMatches(ctx context.Context, id uuid.UUID, codeHash string, usedAt time.Time, maxAttempts int) (bool, error) {
	args := m.Called(ctx, id, codeHash, usedAt, maxAttempts)
	return args.Bool(0), args.Error(1)
}

func (m *MockVerificationCodeRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, maxAttempts int) (int, bool, error) {
	args := m.Called(ctx, id, maxAttempts)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockVerificationCodeRepository) SupersedeActive(ctx context.Context, userID, methodID uuid.UUID, purpose models.CodePurpose, at time.Time) (int64, error) {
	args := m.Called(ctx, userID, methodID, purpose, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockVerificationCodeRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type MockTrustedDeviceRepository struct {
	mock.Mock
}

func (m *MockTrustedDeviceRepository) Create(ctx context.Context, device *models.TrustedDevice) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

func (m *MockTrustedDeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.TrustedDevice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrustedDevice), args.Error(1)
}

func (m *MockTrustedDeviceRepository) FindActiveByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.TrustedDevice, error) {
	args := m.Called(ctx, userID, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrustedDevice), args.Error(1)
}

func (m *MockTrustedDeviceRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.TrustedDevice, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrustedDevice), args.Error(1)
}

func (m *MockTrustedDeviceRepository) RefreshTrust(ctx context.Context, userID uuid.UUID, fingerprint string, expiresAt time.Time, friendlyName string) (*models.TrustedDevice, bool, error) {
	args := m.Called(ctx, userID, fingerprint, expiresAt, friendlyName)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.TrustedDevice), args.Bool(1), args.Error(2)
}

func (m *MockTrustedDeviceRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockTrustedDeviceRepository) Revoke(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockTrustedDeviceRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string) (int64, error) {
	args := m.Called(ctx, userID, reason)
	return args.Get(0).(int64), args.Error(1)
}

// --- Security mocks ---

type MockCodeGenerator struct {
	mock.Mock
}

func (m *MockCodeGenerator) NumericCode(length int) (string, error) {
	args := m.Called(length)
	return args.String(0), args.Error(1)
}

func (m *MockCodeGenerator) BackupCode() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockCodeGenerator) BackupCodes(n int) ([]string, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockTOTPProvider struct {
	mock.Mock
}

func (m *MockTOTPProvider) GenerateSecret(accountName string) (string, string, error) {
	args := m.Called(accountName)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockTOTPProvider) ValidateAt(secretBase32, code string, at time.Time) (bool, int64, error) {
	args := m.Called(secretBase32, code, at)
	return args.Bool(0), args.Get(1).(int64), args.Error(2)
}

func (m *MockTOTPProvider) GenerateAt(secretBase32 string, at time.Time) (string, error) {
	args := m.Called(secretBase32, at)
	return args.String(0), args.Error(1)
}

type MockEncryptionService struct {
	mock.Mock
}

func (m *MockEncryptionService) Encrypt(plainText, keyHex string) (string, error) {
	args := m.Called(plainText, keyHex)
	return args.String(0), args.Error(1)
}

func (m *MockEncryptionService) Decrypt(cipherTextBase64, keyHex string) (string, error) {
	args := m.Called(cipherTextBase64, keyHex)
	return args.String(0), args.Error(1)
}

type MockChallengeTokenService struct {
	mock.Mock
}

func (m *MockChallengeTokenService) Issue(userID uuid.UUID, methods []string) (string, error) {
	args := m.Called(userID, methods)
	return args.String(0), args.Error(1)
}

func (m *MockChallengeTokenService) Parse(token string) (uuid.UUID, []string, error) {
	args := m.Called(token)
	var methods []string
	if args.Get(1) != nil {
		methods = args.Get(1).([]string)
	}
	return args.Get(0).(uuid.UUID), methods, args.Error(2)
}

// --- Dependency mocks ---

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendCode(ctx context.Context, methodType models.MethodType, destination, code string, purpose models.CodePurpose) error {
	args := m.Called(ctx, methodType, destination, code, purpose)
	return args.Error(0)
}

type MockCredentialVerifier struct {
	mock.Mock
}

func (m *MockCredentialVerifier) VerifyPrimaryCredential(ctx context.Context, userID uuid.UUID, credential string) (bool, error) {
	args := m.Called(ctx, userID, credential)
	return args.Bool(0), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, eventType string, subject string, payload interface{}) error {
	args := m.Called(ctx, eventType, subject, payload)
	return args.Error(0)
}

type MockLockoutCache struct {
	mock.Mock
}

func (m *MockLockoutCache) IsLocked(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLockoutCache) SetLocked(ctx context.Context, userID uuid.UUID, untilSeconds int64) error {
	args := m.Called(ctx, userID, untilSeconds)
	return args.Error(0)
}

func (m *MockLockoutCache) Clear(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Service mocks, for tests that cross service boundaries ---

type MockBackupCodeVault struct {
	mock.Mock
}

func (m *MockBackupCodeVault) Generate(ctx context.Context, userID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBackupCodeVault) Consume(ctx context.Context, userID uuid.UUID, submitted, fromIP string) (int, error) {
	args := m.Called(ctx, userID, submitted, fromIP)
	return args.Int(0), args.Error(1)
}

func (m *MockBackupCodeVault) Remaining(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockBackupCodeVault) HasBatch(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackupCodeVault) Clear(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockChannelCodeStore struct {
	mock.Mock
}

func (m *MockChannelCodeStore) Issue(ctx context.Context, userID uuid.UUID, method *models.MFAMethod, purpose models.CodePurpose) (string, time.Time, error) {
	args := m.Called(ctx, userID, method, purpose)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockChannelCodeStore) Check(ctx context.Context, userID uuid.UUID, method *models.MFAMethod, purpose models.CodePurpose, submitted string) error {
	args := m.Called(ctx, userID, method, purpose, submitted)
	return args.Error(0)
}

type MockTrustedDeviceManager struct {
	mock.Mock
}

func (m *MockTrustedDeviceManager) Evaluate(ctx context.Context, userID uuid.UUID, fingerprint string) (bool, *models.TrustedDevice, error) {
	args := m.Called(ctx, userID, fingerprint)
	if args.Get(1) == nil {
		return args.Bool(0), nil, args.Error(2)
	}
	return args.Bool(0), args.Get(1).(*models.TrustedDevice), args.Error(2)
}

func (m *MockTrustedDeviceManager) Mint(ctx context.Context, userID uuid.UUID, fingerprint, friendlyName string, durationDays int) (*models.TrustedDevice, error) {
	args := m.Called(ctx, userID, fingerprint, friendlyName, durationDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrustedDevice), args.Error(1)
}

func (m *MockTrustedDeviceManager) Revoke(ctx context.Context, userID, deviceID uuid.UUID, reason string) error {
	args := m.Called(ctx, userID, deviceID, reason)
	return args.Error(0)
}

func (m *MockTrustedDeviceManager) RevokeAll(ctx context.Context, userID uuid.UUID, reason string) (int64, error) {
	args := m.Called(ctx, userID, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTrustedDeviceManager) List(ctx context.Context, userID uuid.UUID) ([]*models.TrustedDevice, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrustedDevice), args.Error(1)
}

// Interface conformance for the mocks that stand in for real services.
var (
	_ service.BackupCodeVault      = (*MockBackupCodeVault)(nil)
	_ service.ChannelCodeStore     = (*MockChannelCodeStore)(nil)
	_ service.TrustedDeviceManager = (*MockTrustedDeviceManager)(nil)
	_ service.Notifier             = (*MockNotifier)(nil)
	_ service.CredentialVerifier   = (*MockCredentialVerifier)(nil)
	_ service.EventPublisher       = (*MockEventPublisher)(nil)
	_ service.LockoutCache         = (*MockLockoutCache)(nil)
)
