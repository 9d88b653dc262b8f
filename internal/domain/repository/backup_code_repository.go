package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
)

// BackupCodeRepository persists hashed single-use recovery codes.
type BackupCodeRepository interface {
	// ReplaceBatch deletes the user's previous batch and inserts the new one
	// in a single transaction, so regeneration is all-or-nothing.
	ReplaceBatch(ctx context.Context, userID uuid.UUID, codes []*models.BackupCode) error
	FindByUserIDAndHash(ctx context.Context, userID uuid.UUID, codeHash string) (*models.BackupCode, error)
	// MarkUsedIfUnused sets used_at and used_from_ip with a conditional
	// update on used_at IS NULL. Returns false when another submission
	// consumed the code first.
	MarkUsedIfUnused(ctx context.Context, id uuid.UUID, usedAt time.Time, fromIP string) (bool, error)
	CountUnusedByUserID(ctx context.Context, userID uuid.UUID) (int, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}
