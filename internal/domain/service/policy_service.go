package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/config"
	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/repository"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/security"
)

// DefaultPolicy builds the lazily-created policy row for a user's first MFA
// interaction.
func DefaultPolicy(userID uuid.UUID, cfg *config.MFAConfig) models.MFAPolicy {
	return models.MFAPolicy{
		UserID:                  userID,
		DeviceTrustEnabled:      true,
		DeviceTrustDurationDays: cfg.DeviceTrustDurationDays,
	}
}

// PolicyService exposes the per-user MFA settings and the login-time
// challenge decision.
type PolicyService interface {
	// GetStatus assembles the read-only MFA status aggregate.
	GetStatus(ctx context.Context, userID uuid.UUID) (*models.MFAStatus, error)
	// Challenge decides whether the login flow must demand a second factor
	// for this user and device, and issues a challenge token when it must.
	Challenge(ctx context.Context, userID uuid.UUID, fingerprint string) (required bool, token string, methods []models.MethodType, err error)
	// UpdateSettings applies user-editable policy settings.
	UpdateSettings(ctx context.Context, userID uuid.UUID, req models.UpdateMFAPolicyRequest) (*models.MFAPolicy, error)
	// AdminUnlock clears a lockout (administrative reset).
	AdminUnlock(ctx context.Context, userID uuid.UUID) error
	// AdminSetEnforced pins or lifts enforcement. Only administrators may
	// lift it.
	AdminSetEnforced(ctx context.Context, userID uuid.UUID, enforced bool) error
}

type policyService struct {
	cfg          *config.MFAConfig
	policies     repository.PolicyRepository
	methods      repository.MethodRepository
	vault        BackupCodeVault
	devices      TrustedDeviceManager
	challenges   security.ChallengeTokenService
	lockoutCache LockoutCache
	logger       *zap.Logger
}

// NewPolicyService creates a PolicyService.
func NewPolicyService(
	cfg *config.MFAConfig,
	policies repository.PolicyRepository,
	methods repository.MethodRepository,
	vault BackupCodeVault,
	devices TrustedDeviceManager,
	challenges security.ChallengeTokenService,
	lockoutCache LockoutCache,
	logger *zap.Logger,
) PolicyService {
	return &policyService{
		cfg:          cfg,
		policies:     policies,
		methods:      methods,
		vault:        vault,
		devices:      devices,
		challenges:   challenges,
		lockoutCache: lockoutCache,
		logger:       logger,
	}
}

func (s *policyService) GetStatus(ctx context.Context, userID uuid.UUID) (*models.MFAStatus, error) {
	policy, err := s.policies.EnsureForUser(ctx, userID, DefaultPolicy(userID, s.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to load MFA policy: %w", err)
	}

	allMethods, err := s.methods.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list methods: %w", err)
	}
	methodStatuses := make([]models.MethodStatus, 0, len(allMethods))
	for _, m := range allMethods {
		methodStatuses = append(methodStatuses, models.MethodStatus{
			ID:          m.ID,
			Type:        m.Type,
			IsPrimary:   m.IsPrimary,
			IsEnabled:   m.IsEnabled,
			IsVerified:  m.IsVerified,
			Destination: m.Destination,
			LastUsedAt:  m.LastUsedAt,
		})
	}

	remaining, err := s.vault.Remaining(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count backup codes: %w", err)
	}
	devices, err := s.devices.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted devices: %w", err)
	}

	return &models.MFAStatus{
		Enabled:              policy.Enabled,
		Enforced:             policy.Enforced,
		Methods:              methodStatuses,
		BackupCodesRemaining: remaining,
		TrustedDevices:       devices,
	}, nil
}

func (s *policyService) Challenge(ctx context.Context, userID uuid.UUID, fingerprint string) (bool, string, []models.MethodType, error) {
	policy, err := s.policies.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return false, "", nil, nil
		}
		return false, "", nil, fmt.Errorf("failed to load MFA policy: %w", err)
	}
	if !policy.Enabled && !policy.Enforced {
		return false, "", nil, nil
	}

	allMethods, err := s.methods.ListByUserID(ctx, userID)
	if err != nil {
		return false, "", nil, fmt.Errorf("failed to list methods: %w", err)
	}
	var usable []models.MethodType
	for _, m := range allMethods {
		if m.Usable() {
			usable = append(usable, m.Type)
		}
	}
	if len(usable) == 0 {
		return false, "", nil, nil
	}

	if policy.DeviceTrustEnabled && fingerprint != "" {
		trusted, _, err := s.devices.Evaluate(ctx, userID, fingerprint)
		if err != nil {
			return false, "", nil, err
		}
		if trusted {
			return false, "", nil, nil
		}
	}

	methodNames := make([]string, len(usable))
	for i, t := range usable {
		methodNames[i] = string(t)
	}
	token, err := s.challenges.Issue(userID, methodNames)
	if err != nil {
		return false, "", nil, fmt.Errorf("failed to issue challenge token: %w", err)
	}
	return true, token, usable, nil
}

func (s *policyService) UpdateSettings(ctx context.Context, userID uuid.UUID, req models.UpdateMFAPolicyRequest) (*models.MFAPolicy, error) {
	policy, err := s.policies.EnsureForUser(ctx, userID, DefaultPolicy(userID, s.cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to load MFA policy: %w", err)
	}

	if req.RequireForSensitiveActions != nil {
		policy.RequireForSensitiveActions = *req.RequireForSensitiveActions
	}
	if req.DeviceTrustEnabled != nil {
		policy.DeviceTrustEnabled = *req.DeviceTrustEnabled
	}
	if req.DeviceTrustDurationDays != nil {
		if *req.DeviceTrustDurationDays <= 0 {
			return nil, fmt.Errorf("%w: device trust duration must be positive", domainErrors.ErrInvalidInput)
		}
		policy.DeviceTrustDurationDays = *req.DeviceTrustDurationDays
	}

	if err := s.policies.Update(ctx, policy); err != nil {
		return nil, fmt.Errorf("failed to update MFA policy: %w", err)
	}
	return policy, nil
}

func (s *policyService) AdminUnlock(ctx context.Context, userID uuid.UUID) error {
	if err := s.policies.ClearLock(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear lockout: %w", err)
	}
	if s.lockoutCache != nil {
		if err := s.lockoutCache.Clear(ctx, userID); err != nil {
			s.logger.Warn("failed to clear lockout cache", zap.Error(err))
		}
	}
	s.logger.Info("lockout cleared by administrator", zap.String("user_id", userID.String()))
	return nil
}

func (s *policyService) AdminSetEnforced(ctx context.Context, userID uuid.UUID, enforced bool) error {
	if _, err := s.policies.EnsureForUser(ctx, userID, DefaultPolicy(userID, s.cfg)); err != nil {
		return fmt.Errorf("failed to load MFA policy: %w", err)
	}
	if err := s.policies.SetEnforced(ctx, userID, enforced); err != nil {
		return fmt.Errorf("failed to update enforcement: %w", err)
	}
	s.logger.Info("MFA enforcement changed by administrator",
		zap.String("user_id", userID.String()), zap.Bool("enforced", enforced))
	return nil
}

var _ PolicyService = (*policyService)(nil)
