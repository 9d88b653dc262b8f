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
)

// MethodRegistry manages the per-user collection of enrolled verification
// methods. Enrollment is two-phase: a method exists after phase one but
// cannot satisfy a real challenge until the enrollment challenge succeeds.
type MethodRegistry interface {
	// EnrollTOTP starts time-based enrollment and returns the secret and
	// provisioning URL, exposed exactly once.
	EnrollTOTP(ctx context.Context, userID uuid.UUID, accountName string) (*models.TOTPEnrollment, error)
	// EnrollChannel starts channel enrollment and dispatches a setup code
	// to the destination.
	EnrollChannel(ctx context.Context, userID uuid.UUID, methodType models.MethodType, destination string) (*models.ChannelEnrollment, error)
	// CompleteEnrollment verifies the pending method with the submitted
	// code and, for a user with no backup codes on record, generates the
	// one-time batch.
	CompleteEnrollment(ctx context.Context, userID, methodID uuid.UUID, submittedCode string) (*models.EnrollmentResult, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.MFAMethod, error)
	SetPrimary(ctx context.Context, userID, methodID uuid.UUID) error
	DisableAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

type methodRegistry struct {
	cfg          *config.MFAConfig
	methods      repository.MethodRepository
	policies     repository.PolicyRepository
	vault        BackupCodeVault
	channelStore ChannelCodeStore
	totp         security.TOTPProvider
	encryption   security.EncryptionService
	notifier     Notifier
	events       EventPublisher
	logger       *zap.Logger
}

// NewMethodRegistry creates a MethodRegistry.
func NewMethodRegistry(
	cfg *config.MFAConfig,
	methods repository.MethodRepository,
	policies repository.PolicyRepository,
	vault BackupCodeVault,
	channelStore ChannelCodeStore,
	totp security.TOTPProvider,
	encryption security.EncryptionService,
	notifier Notifier,
	events EventPublisher,
	logger *zap.Logger,
) MethodRegistry {
	return &methodRegistry{
		cfg:          cfg,
		methods:      methods,
		policies:     policies,
		vault:        vault,
		channelStore: channelStore,
		totp:         totp,
		encryption:   encryption,
		notifier:     notifier,
		events:       events,
		logger:       logger,
	}
}

func (r *methodRegistry) EnrollTOTP(ctx context.Context, userID uuid.UUID, accountName string) (*models.TOTPEnrollment, error) {
	if err := r.clearPendingOrReject(ctx, userID, models.MethodTypeTOTP); err != nil {
		return nil, err
	}

	secretBase32, otpAuthURL, err := r.totp.GenerateSecret(accountName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	encrypted, err := r.encryption.Encrypt(secretBase32, r.cfg.TOTPSecretEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
	}

	method := r.newPendingMethod(userID, models.MethodTypeTOTP)
	method.SecretEncrypted = encrypted
	if err := r.methods.Create(ctx, method); err != nil {
		return nil, fmt.Errorf("failed to store pending TOTP method: %w", err)
	}

	r.publish(ctx, EventMethodEnrolled, userID, map[string]interface{}{
		"method_id": method.ID.String(),
		"type":      string(method.Type),
	})
	return &models.TOTPEnrollment{
		MethodID:     method.ID,
		SecretBase32: secretBase32,
		OTPAuthURL:   otpAuthURL,
	}, nil
}

func (r *methodRegistry) EnrollChannel(ctx context.Context, userID uuid.UUID, methodType models.MethodType, destination string) (*models.ChannelEnrollment, error) {
	if !methodType.IsChannel() {
		return nil, fmt.Errorf("%w: %q is not a channel method type", domainErrors.ErrInvalidInput, methodType)
	}
	if destination == "" {
		return nil, fmt.Errorf("%w: destination is required", domainErrors.ErrInvalidInput)
	}
	if err := r.clearPendingOrReject(ctx, userID, methodType); err != nil {
		return nil, err
	}

	method := r.newPendingMethod(userID, methodType)
	method.Destination = destination
	if err := r.methods.Create(ctx, method); err != nil {
		return nil, fmt.Errorf("failed to store pending channel method: %w", err)
	}

	plain, expiresAt, err := r.channelStore.Issue(ctx, userID, method, models.CodePurposeSetup)
	if err != nil {
		return nil, fmt.Errorf("failed to issue setup code: %w", err)
	}
	if err := r.notifier.SendCode(ctx, methodType, destination, plain, models.CodePurposeSetup); err != nil {
		r.logger.Warn("setup code delivery failed",
			zap.String("user_id", userID.String()),
			zap.String("type", string(methodType)),
			zap.Error(err))
		return nil, domainErrors.ErrDeliveryFailed
	}

	r.publish(ctx, EventMethodEnrolled, userID, map[string]interface{}{
		"method_id": method.ID.String(),
		"type":      string(methodType),
	})
	return &models.ChannelEnrollment{MethodID: method.ID, ExpiresAt: expiresAt}, nil
}

func (r *methodRegistry) CompleteEnrollment(ctx context.Context, userID, methodID uuid.UUID, submittedCode string) (*models.EnrollmentResult, error) {
	method, err := r.methods.FindByID(ctx, methodID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, domainErrors.ErrMethodNotFound
		}
		return nil, fmt.Errorf("failed to load pending method: %w", err)
	}
	if method.UserID != userID {
		return nil, domainErrors.ErrForbidden
	}
	if method.IsVerified {
		return nil, domainErrors.ErrAlreadyExists
	}

	switch {
	case method.Type == models.MethodTypeTOTP:
		secret, err := r.encryption.Decrypt(method.SecretEncrypted, r.cfg.TOTPSecretEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
		}
		now := time.Now().UTC()
		valid, counter, err := r.totp.ValidateAt(secret, submittedCode, now)
		if err != nil {
			return nil, fmt.Errorf("failed to validate TOTP code: %w", err)
		}
		if !valid {
			return nil, domainErrors.ErrInvalidCode
		}
		if err := r.methods.RecordUse(ctx, method.ID, now, &counter); err != nil {
			return nil, fmt.Errorf("failed to record method use: %w", err)
		}
	case method.Type.IsChannel():
		if err := r.channelStore.Check(ctx, userID, method, models.CodePurposeSetup, submittedCode); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown method type %q", domainErrors.ErrInvalidInput, method.Type)
	}

	if err := r.methods.MarkVerified(ctx, method.ID); err != nil {
		return nil, fmt.Errorf("failed to mark method verified: %w", err)
	}
	method.IsVerified = true

	if err := r.policies.SetEnabled(ctx, userID, true); err != nil {
		return nil, fmt.Errorf("failed to enable MFA policy: %w", err)
	}

	// The first verified method becomes primary.
	if !r.hasOtherVerified(ctx, userID, method.ID) {
		if err := r.methods.SetPrimary(ctx, userID, method.ID); err != nil {
			return nil, fmt.Errorf("failed to set primary method: %w", err)
		}
		method.IsPrimary = true
	}

	result := &models.EnrollmentResult{Method: method}
	hasBatch, err := r.vault.HasBatch(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check backup code batch: %w", err)
	}
	if !hasBatch {
		codes, err := r.vault.Generate(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("method verified, but backup code generation failed: %w", err)
		}
		result.BackupCodes = codes
	}

	r.publish(ctx, EventMethodVerified, userID, map[string]interface{}{
		"method_id": method.ID.String(),
		"type":      string(method.Type),
	})
	return result, nil
}

func (r *methodRegistry) List(ctx context.Context, userID uuid.UUID) ([]*models.MFAMethod, error) {
	return r.methods.ListByUserID(ctx, userID)
}

func (r *methodRegistry) SetPrimary(ctx context.Context, userID, methodID uuid.UUID) error {
	method, err := r.methods.FindByID(ctx, methodID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return domainErrors.ErrMethodNotFound
		}
		return fmt.Errorf("failed to load method: %w", err)
	}
	if method.UserID != userID {
		return domainErrors.ErrForbidden
	}
	if !method.IsVerified {
		return domainErrors.ErrMethodNotVerified
	}
	return r.methods.SetPrimary(ctx, userID, methodID)
}

func (r *methodRegistry) DisableAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.methods.DisableAllForUser(ctx, userID)
}

// clearPendingOrReject rejects enrollment when a verified method of the type
// already exists, and clears a stale pending one so setup can restart.
func (r *methodRegistry) clearPendingOrReject(ctx context.Context, userID uuid.UUID, methodType models.MethodType) error {
	existing, err := r.methods.FindByUserIDAndType(ctx, userID, methodType)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check existing method: %w", err)
	}
	if existing.IsVerified {
		return domainErrors.ErrMethodAlreadyExists
	}
	if _, err := r.methods.DeleteUnverified(ctx, userID, methodType); err != nil {
		return fmt.Errorf("failed to clear pending method: %w", err)
	}
	return nil
}

func (r *methodRegistry) hasOtherVerified(ctx context.Context, userID, exceptID uuid.UUID) bool {
	methods, err := r.methods.ListByUserID(ctx, userID)
	if err != nil {
		r.logger.Warn("failed to list methods for primary check", zap.Error(err))
		return true
	}
	for _, m := range methods {
		if m.ID != exceptID && m.IsVerified {
			return true
		}
	}
	return false
}

func (r *methodRegistry) newPendingMethod(userID uuid.UUID, methodType models.MethodType) *models.MFAMethod {
	now := time.Now().UTC()
	return &models.MFAMethod{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      methodType,
		IsEnabled: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *methodRegistry) publish(ctx context.Context, eventType string, userID uuid.UUID, payload interface{}) {
	if r.events == nil {
		return
	}
	if err := r.events.Publish(ctx, eventType, userID.String(), payload); err != nil {
		r.logger.Warn("failed to publish method event", zap.String("type", eventType), zap.Error(err))
	}
}

var _ MethodRegistry = (*methodRegistry)(nil)
