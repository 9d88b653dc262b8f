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

// ChannelCodeStore issues and checks short-lived channel-delivered codes.
// The store never dispatches anything itself; the plaintext code is handed
// back for the notifier to deliver.
type ChannelCodeStore interface {
	// Issue supersedes any live code for (user, method, purpose), creates a
	// fresh one and returns its plaintext and expiry.
	Issue(ctx context.Context, userID uuid.UUID, method *models.MFAMethod, purpose models.CodePurpose) (string, time.Time, error)
	// Check validates a submission against the current code. A nil return
	// means the code was consumed; failures carry a typed sentinel error.
	Check(ctx context.Context, userID uuid.UUID, method *models.MFAMethod, purpose models.CodePurpose, submitted string) error
}

type channelCodeStore struct {
	cfg       *config.MFAConfig
	codes     repository.VerificationCodeRepository
	generator security.CodeGenerator
	logger    *zap.Logger
}

// NewChannelCodeStore creates a ChannelCodeStore.
func NewChannelCodeStore(
	cfg *config.MFAConfig,
	codes repository.VerificationCodeRepository,
	generator security.CodeGenerator,
	logger *zap.Logger,
) ChannelCodeStore {
	return &channelCodeStore{
		cfg:       cfg,
		codes:     codes,
		generator: generator,
		logger:    logger,
	}
}

func (s *channelCodeStore) Issue(ctx context.Context, userID uuid.UUID, method *models.MFAMethod, purpose models.CodePurpose) (string, time.Time, error) {
	if !purpose.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: unknown code purpose %q", domainErrors.ErrInvalidInput, purpose)
	}

	now := time.Now().UTC()
	superseded, err := s.codes.SupersedeActive(ctx, userID, method.ID, purpose, now)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to supersede previous verification codes: %w", err)
	}
	if superseded > 0 {
		s.logger.Debug("superseded live verification codes",
			zap.String("user_id", userID.String()),
			zap.String("purpose", string(purpose)),
			zap.Int64("count", superseded))
	}

	plain, err := s.generator.NumericCode(s.cfg.ChannelCodeLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate channel code: %w", err)
	}

	expiresAt := now.Add(s.cfg.ChannelCodeTTL)
	code := &models.VerificationCode{
		ID:          uuid.New(),
		UserID:      userID,
		MethodID:    method.ID,
		Purpose:     purpose,
		CodeHash:    security.HashCode(plain),
		Destination: method.Destination,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}
	if err := s.codes.Create(ctx, code); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store verification code: %w", err)
	}
	return plain, expiresAt, nil
}

func (s *channelCodeStore) Check(ctx context.Context, userID uuid.UUID, method *models.MFAMethod, purpose models.CodePurpose, submitted string) error {
	current, err := s.codes.FindCurrent(ctx, userID, method.ID, purpose)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return domainErrors.ErrInvalidCode
		}
		return fmt.Errorf("failed to load verification code: %w", err)
	}

	now := time.Now().UTC()
	switch {
	case current.Used():
		return domainErrors.ErrAlreadyUsedCode
	case current.Expired(now):
		return domainErrors.ErrExpiredCode
	case current.Attempts >= s.cfg.ChannelCodeMaxAttempts:
		return domainErrors.ErrAttemptsExhausted
	}

	// The consume itself is a single conditional update, so two concurrent
	// submissions of the same code cannot both win.
	consumed, err := s.codes.MarkUsedIfMatches(ctx, current.ID, security.HashCode(submitted), now, s.cfg.ChannelCodeMaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to consume verification code: %w", err)
	}
	if consumed {
		return nil
	}

	// Either the code mismatched or a concurrent submission beat us to it.
	// Count the attempt conditionally; a dead row stops counting.
	attempts, live, err := s.codes.IncrementAttempts(ctx, current.ID, s.cfg.ChannelCodeMaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to record verification attempt: %w", err)
	}
	if !live {
		// The row was consumed or exhausted between our two statements.
		return domainErrors.ErrAlreadyUsedCode
	}
	if attempts >= s.cfg.ChannelCodeMaxAttempts {
		return domainErrors.ErrAttemptsExhausted
	}
	return domainErrors.ErrInvalidCode
}

var _ ChannelCodeStore = (*channelCodeStore)(nil)
