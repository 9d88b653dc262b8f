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

// BackupCodeVault manages the single-use recovery codes of one user.
// Plaintext codes leave the vault exactly once, at generation time; only
// their hashes are stored.
type BackupCodeVault interface {
	// Generate replaces the user's batch with a fresh one and returns the
	// plaintext codes.
	Generate(ctx context.Context, userID uuid.UUID) ([]string, error)
	// Consume redeems a submitted code (first-consumer-wins) and returns
	// the number of unused codes left.
	Consume(ctx context.Context, userID uuid.UUID, submitted, fromIP string) (int, error)
	Remaining(ctx context.Context, userID uuid.UUID) (int, error)
	// HasBatch reports whether the user has ever been issued codes that are
	// still on record, used or not.
	HasBatch(ctx context.Context, userID uuid.UUID) (bool, error)
	// Clear drops every stored code, used for MFA disable.
	Clear(ctx context.Context, userID uuid.UUID) error
}

type backupCodeVault struct {
	cfg       *config.MFAConfig
	codes     repository.BackupCodeRepository
	generator security.CodeGenerator
	logger    *zap.Logger
}

// NewBackupCodeVault creates a BackupCodeVault.
func NewBackupCodeVault(
	cfg *config.MFAConfig,
	codes repository.BackupCodeRepository,
	generator security.CodeGenerator,
	logger *zap.Logger,
) BackupCodeVault {
	return &backupCodeVault{
		cfg:       cfg,
		codes:     codes,
		generator: generator,
		logger:    logger,
	}
}

func (v *backupCodeVault) Generate(ctx context.Context, userID uuid.UUID) ([]string, error) {
	count := v.cfg.BackupCodeCount
	if count <= 0 {
		count = models.BackupCodeBatchSize
	}

	plain, err := v.generator.BackupCodes(count)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup codes: %w", err)
	}

	now := time.Now().UTC()
	batch := make([]*models.BackupCode, count)
	for i, code := range plain {
		batch[i] = &models.BackupCode{
			ID:        uuid.New(),
			UserID:    userID,
			CodeHash:  security.HashCode(security.NormalizeBackupCode(code)),
			CreatedAt: now,
		}
	}

	// ReplaceBatch drops the previous batch in the same transaction, so a
	// failed insert leaves the old codes valid.
	if err := v.codes.ReplaceBatch(ctx, userID, batch); err != nil {
		return nil, fmt.Errorf("failed to store backup code batch: %w", err)
	}

	v.logger.Info("backup code batch generated",
		zap.String("user_id", userID.String()),
		zap.Int("count", count))
	return plain, nil
}

func (v *backupCodeVault) Consume(ctx context.Context, userID uuid.UUID, submitted, fromIP string) (int, error) {
	hash := security.HashCode(security.NormalizeBackupCode(submitted))

	code, err := v.codes.FindByUserIDAndHash(ctx, userID, hash)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return 0, domainErrors.ErrBackupCodeConsumed
		}
		return 0, fmt.Errorf("failed to look up backup code: %w", err)
	}
	if code.Used() {
		return 0, domainErrors.ErrBackupCodeConsumed
	}

	won, err := v.codes.MarkUsedIfUnused(ctx, code.ID, time.Now().UTC(), fromIP)
	if err != nil {
		return 0, fmt.Errorf("failed to consume backup code: %w", err)
	}
	if !won {
		// A concurrent submission consumed it between lookup and update.
		return 0, domainErrors.ErrBackupCodeConsumed
	}

	remaining, err := v.codes.CountUnusedByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count remaining backup codes: %w", err)
	}
	return remaining, nil
}

func (v *backupCodeVault) Remaining(ctx context.Context, userID uuid.UUID) (int, error) {
	return v.codes.CountUnusedByUserID(ctx, userID)
}

func (v *backupCodeVault) HasBatch(ctx context.Context, userID uuid.UUID) (bool, error) {
	total, err := v.codes.CountByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

func (v *backupCodeVault) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := v.codes.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete backup codes: %w", err)
	}
	return nil
}

var _ BackupCodeVault = (*backupCodeVault)(nil)
