package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/config"
	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/repository"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/security"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/utils/metrics"
)

// VerificationEngine orchestrates a verification attempt: it selects the
// store to check, applies the lockout policy and records the outcome. The
// engine holds no entity state itself.
type VerificationEngine interface {
	// Verify validates a submitted code against the user's enrolled
	// methods or backup codes.
	Verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResult, error)
	// SendChallengeCode issues and dispatches a channel code for the
	// login-time challenge. Returns whether dispatch succeeded.
	SendChallengeCode(ctx context.Context, userID uuid.UUID, methodType models.MethodType, purpose models.CodePurpose) (bool, error)
	// Disable turns MFA off after primary-credential re-validation,
	// disabling every method and revoking every trusted device. Enforced
	// policies reject.
	Disable(ctx context.Context, userID uuid.UUID, primaryCredential string) error
	// RegenerateBackupCodes replaces the batch after primary-credential
	// re-validation.
	RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, primaryCredential string) ([]string, error)
}

type verificationEngine struct {
	mfaCfg       *config.MFAConfig
	lockoutCfg   *config.LockoutConfig
	policies     repository.PolicyRepository
	methods      repository.MethodRepository
	vault        BackupCodeVault
	channelStore ChannelCodeStore
	devices      TrustedDeviceManager
	totp         security.TOTPProvider
	encryption   security.EncryptionService
	credentials  CredentialVerifier
	notifier     Notifier
	events       EventPublisher
	lockoutCache LockoutCache
	logger       *zap.Logger
}

// NewVerificationEngine creates a VerificationEngine.
func NewVerificationEngine(
	mfaCfg *config.MFAConfig,
	lockoutCfg *config.LockoutConfig,
	policies repository.PolicyRepository,
	methods repository.MethodRepository,
	vault BackupCodeVault,
	channelStore ChannelCodeStore,
	devices TrustedDeviceManager,
	totp security.TOTPProvider,
	encryption security.EncryptionService,
	credentials CredentialVerifier,
	notifier Notifier,
	events EventPublisher,
	lockoutCache LockoutCache,
	logger *zap.Logger,
) VerificationEngine {
	return &verificationEngine{
		mfaCfg:       mfaCfg,
		lockoutCfg:   lockoutCfg,
		policies:     policies,
		methods:      methods,
		vault:        vault,
		channelStore: channelStore,
		devices:      devices,
		totp:         totp,
		encryption:   encryption,
		credentials:  credentials,
		notifier:     notifier,
		events:       events,
		lockoutCache: lockoutCache,
		logger:       logger,
	}
}

func (e *verificationEngine) Verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResult, error) {
	policy, err := e.policies.EnsureForUser(ctx, req.UserID, DefaultPolicy(req.UserID, e.mfaCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to load MFA policy: %w", err)
	}

	now := time.Now().UTC()
	if e.isLocked(ctx, policy, now) {
		return nil, domainErrors.ErrRateLimited
	}

	purpose := req.Purpose
	if purpose == "" {
		purpose = models.CodePurposeLogin
	}

	if security.IsBackupCodeFormat(req.Code) {
		return e.verifyBackupCode(ctx, req, policy, now)
	}

	candidates, err := e.candidateMethods(ctx, req.UserID, req.MethodTypeHint)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		e.recordFailure(ctx, req.UserID, now)
		return nil, domainErrors.ErrMethodNotFound
	}

	var lastErr error = domainErrors.ErrInvalidCode
	for _, method := range candidates {
		var checkErr error
		var counter *int64

		switch {
		case method.Type == models.MethodTypeTOTP:
			counter, checkErr = e.checkTOTP(method, req.Code, now)
		case method.Type.IsChannel():
			checkErr = e.channelStore.Check(ctx, req.UserID, method, purpose, req.Code)
		default:
			checkErr = fmt.Errorf("%w: unknown method type %q", domainErrors.ErrInvalidInput, method.Type)
		}

		if checkErr == nil {
			return e.finishSuccess(ctx, req, policy, method, counter, now)
		}
		lastErr = checkErr
	}

	e.recordFailure(ctx, req.UserID, now)
	e.publish(ctx, EventVerificationFailed, req.UserID, map[string]interface{}{
		"reason": lastErr.Error(),
	})
	return nil, lastErr
}

// checkTOTP validates a time-based code with ±1 step tolerance and rejects
// replay of an already consumed counter.
func (e *verificationEngine) checkTOTP(method *models.MFAMethod, code string, now time.Time) (*int64, error) {
	secret, err := e.encryption.Decrypt(method.SecretEncrypted, e.mfaCfg.TOTPSecretEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}
	valid, counter, err := e.totp.ValidateAt(secret, code, now)
	if err != nil {
		return nil, fmt.Errorf("failed to validate TOTP code: %w", err)
	}
	if !valid {
		return nil, domainErrors.ErrInvalidCode
	}
	if method.LastUsedCounter != nil && counter <= *method.LastUsedCounter {
		return nil, domainErrors.ErrAlreadyUsedCode
	}
	return &counter, nil
}

func (e *verificationEngine) verifyBackupCode(ctx context.Context, req models.VerifyRequest, policy *models.MFAPolicy, now time.Time) (*models.VerifyResult, error) {
	remaining, err := e.vault.Consume(ctx, req.UserID, req.Code, req.ClientIP)
	if err != nil {
		if errors.Is(err, domainErrors.ErrBackupCodeConsumed) {
			e.recordFailure(ctx, req.UserID, now)
			e.publish(ctx, EventVerificationFailed, req.UserID, map[string]interface{}{
				"reason": "backup code invalid or consumed",
			})
			return nil, err
		}
		return nil, err
	}

	if err := e.recordSuccess(ctx, req.UserID, now); err != nil {
		return nil, err
	}
	result := &models.VerifyResult{
		UsedBackup:           true,
		BackupCodesRemaining: &remaining,
	}
	if policy.DeviceTrustEnabled {
		e.maybeMintDevice(ctx, req, result)
	}
	e.publish(ctx, EventVerificationSucceeded, req.UserID, map[string]interface{}{
		"method":           "backup",
		"backup_remaining": remaining,
	})
	return result, nil
}

func (e *verificationEngine) finishSuccess(ctx context.Context, req models.VerifyRequest, policy *models.MFAPolicy, method *models.MFAMethod, counter *int64, now time.Time) (*models.VerifyResult, error) {
	if err := e.recordSuccess(ctx, req.UserID, now); err != nil {
		return nil, err
	}
	if err := e.methods.RecordUse(ctx, method.ID, now, counter); err != nil {
		return nil, fmt.Errorf("failed to record method use: %w", err)
	}

	result := &models.VerifyResult{MethodUsed: method.Type}
	if policy.DeviceTrustEnabled {
		e.maybeMintDevice(ctx, req, result)
	}
	e.publish(ctx, EventVerificationSucceeded, req.UserID, map[string]interface{}{
		"method": string(method.Type),
	})
	return result, nil
}

func (e *verificationEngine) maybeMintDevice(ctx context.Context, req models.VerifyRequest, result *models.VerifyResult) {
	if !req.RememberDevice || req.Fingerprint == "" {
		return
	}
	days := e.mfaCfg.DeviceTrustDurationDays
	if policy, err := e.policies.FindByUserID(ctx, req.UserID); err == nil && policy.DeviceTrustDurationDays > 0 {
		days = policy.DeviceTrustDurationDays
	}
	device, err := e.devices.Mint(ctx, req.UserID, req.Fingerprint, req.FriendlyName, days)
	if err != nil {
		// Trust is a convenience; the verification already succeeded.
		e.logger.Warn("failed to mint trusted device",
			zap.String("user_id", req.UserID.String()), zap.Error(err))
		return
	}
	result.Device = device
}

func (e *verificationEngine) SendChallengeCode(ctx context.Context, userID uuid.UUID, methodType models.MethodType, purpose models.CodePurpose) (bool, error) {
	if purpose == "" {
		purpose = models.CodePurposeLogin
	}
	candidates, err := e.candidateMethods(ctx, userID, methodType)
	if err != nil {
		return false, err
	}

	var target *models.MFAMethod
	for _, method := range candidates {
		if method.Type.IsChannel() {
			target = method
			break
		}
	}
	if target == nil {
		return false, domainErrors.ErrMethodNotFound
	}

	plain, _, err := e.channelStore.Issue(ctx, userID, target, purpose)
	if err != nil {
		return false, err
	}
	if err := e.notifier.SendCode(ctx, target.Type, target.Destination, plain, purpose); err != nil {
		e.logger.Warn("challenge code delivery failed",
			zap.String("user_id", userID.String()),
			zap.String("type", string(target.Type)),
			zap.Error(err))
		return false, domainErrors.ErrDeliveryFailed
	}
	return true, nil
}

func (e *verificationEngine) Disable(ctx context.Context, userID uuid.UUID, primaryCredential string) error {
	ok, err := e.credentials.VerifyPrimaryCredential(ctx, userID, primaryCredential)
	if err != nil {
		return fmt.Errorf("failed to verify primary credential: %w", err)
	}
	if !ok {
		return domainErrors.ErrCredentialMismatch
	}

	policy, err := e.policies.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return domainErrors.ErrMFANotEnabled
		}
		return fmt.Errorf("failed to load MFA policy: %w", err)
	}
	if policy.Enforced {
		return domainErrors.ErrEnforcedMFACannotDisable
	}
	if !policy.Enabled {
		return domainErrors.ErrMFANotEnabled
	}

	if _, err := e.methods.DisableAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to disable methods: %w", err)
	}
	if _, err := e.devices.RevokeAll(ctx, userID, "mfa disabled"); err != nil {
		return fmt.Errorf("failed to revoke trusted devices: %w", err)
	}
	if err := e.vault.Clear(ctx, userID); err != nil {
		return err
	}
	if err := e.policies.SetEnabled(ctx, userID, false); err != nil {
		return fmt.Errorf("failed to disable MFA policy: %w", err)
	}

	e.publish(ctx, EventDisabled, userID, nil)
	return nil
}

func (e *verificationEngine) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, primaryCredential string) ([]string, error) {
	ok, err := e.credentials.VerifyPrimaryCredential(ctx, userID, primaryCredential)
	if err != nil {
		return nil, fmt.Errorf("failed to verify primary credential: %w", err)
	}
	if !ok {
		return nil, domainErrors.ErrCredentialMismatch
	}

	policy, err := e.policies.FindByUserID(ctx, userID)
	if err != nil || !policy.Enabled {
		return nil, domainErrors.ErrMFANotEnabled
	}

	codes, err := e.vault.Generate(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, EventBackupCodesRegenerated, userID, map[string]interface{}{
		"count": len(codes),
	})
	return codes, nil
}

// candidateMethods returns the usable methods for the attempt: the hinted
// type when given, otherwise every usable method with the primary first.
func (e *verificationEngine) candidateMethods(ctx context.Context, userID uuid.UUID, hint models.MethodType) ([]*models.MFAMethod, error) {
	all, err := e.methods.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list methods: %w", err)
	}
	candidates := make([]*models.MFAMethod, 0, len(all))
	for _, method := range all {
		if !method.Usable() {
			continue
		}
		if hint != "" && method.Type != hint {
			continue
		}
		candidates = append(candidates, method)
	}
	return candidates, nil
}

func (e *verificationEngine) isLocked(ctx context.Context, policy *models.MFAPolicy, now time.Time) bool {
	if e.lockoutCache != nil {
		if locked, err := e.lockoutCache.IsLocked(ctx, policy.UserID); err == nil && locked {
			return true
		}
	}
	return policy.Locked(now)
}

func (e *verificationEngine) recordSuccess(ctx context.Context, userID uuid.UUID, now time.Time) error {
	if err := e.policies.RecordSuccess(ctx, userID, now); err != nil {
		return fmt.Errorf("failed to record verification success: %w", err)
	}
	if e.lockoutCache != nil {
		if err := e.lockoutCache.Clear(ctx, userID); err != nil {
			e.logger.Warn("failed to clear lockout cache", zap.Error(err))
		}
	}
	return nil
}

// recordFailure bumps the consecutive-failure counter atomically; the
// threshold transition happens inside the same update so racing attempts
// cannot bypass it.
func (e *verificationEngine) recordFailure(ctx context.Context, userID uuid.UUID, now time.Time) {
	failures, lockedUntil, err := e.policies.RecordFailure(ctx, userID, now, e.lockoutCfg.MaxConsecutiveFailures, e.lockoutCfg.Cooldown)
	if err != nil {
		e.logger.Error("failed to record verification failure",
			zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	if lockedUntil == nil {
		return
	}
	metrics.LockoutsTotal.Inc()
	if e.lockoutCache != nil {
		if err := e.lockoutCache.SetLocked(ctx, userID, int64(time.Until(*lockedUntil).Seconds())); err != nil {
			e.logger.Warn("failed to mirror lockout in cache", zap.Error(err))
		}
	}
	e.logger.Warn("user locked out of MFA verification",
		zap.String("user_id", userID.String()),
		zap.Int("consecutive_failures", failures),
		zap.Time("locked_until", *lockedUntil))
	e.publish(ctx, EventUserLocked, userID, map[string]interface{}{
		"consecutive_failures": failures,
		"locked_until":         lockedUntil,
	})
}

func (e *verificationEngine) publish(ctx context.Context, eventType string, userID uuid.UUID, payload interface{}) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, eventType, userID.String(), payload); err != nil {
		e.logger.Warn("failed to publish verification event", zap.String("type", eventType), zap.Error(err))
	}
}

var _ VerificationEngine = (*verificationEngine)(nil)
