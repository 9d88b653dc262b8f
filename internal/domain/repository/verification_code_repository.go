package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
)

// VerificationCodeRepository persists ephemeral channel-delivered codes.
type VerificationCodeRepository interface {
	Create(ctx context.Context, code *models.VerificationCode) error
	// FindCurrent returns the newest code for (user, method, purpose),
	// consumed or not, so the caller can classify the failure precisely.
	FindCurrent(ctx context.Context, userID, methodID uuid.UUID, purpose models.CodePurpose) (*models.VerificationCode, error)
	// MarkUsedIfMatches consumes the code with a single conditional update:
	// the row must carry the given hash, be unused, unexpired and under the
	// attempt cap. Returns false when any condition fails.
	MarkUsedIfMatches(ctx context.Context, id uuid.UUID, codeHash string, usedAt time.Time, maxAttempts int) (bool, error)
	// IncrementAttempts bumps the counter conditionally (unused, unexpired,
	// under cap) and returns the new value, or false when the row is no
	// longer live.
	IncrementAttempts(ctx context.Context, id uuid.UUID, maxAttempts int) (int, bool, error)
	// SupersedeActive marks every live code for (user, method, purpose) used
	// so a freshly issued code is the only valid one. Returns the number
	// superseded.
	SupersedeActive(ctx context.Context, userID, methodID uuid.UUID, purpose models.CodePurpose, at time.Time) (int64, error)
	// DeleteExpired reaps rows past their expiry; storage hygiene only.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
