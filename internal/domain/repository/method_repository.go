package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
)

// MethodRepository persists enrolled verification methods.
type MethodRepository interface {
	Create(ctx context.Context, method *models.MFAMethod) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MFAMethod, error)
	FindByUserIDAndType(ctx context.Context, userID uuid.UUID, methodType models.MethodType) (*models.MFAMethod, error)
	// ListByUserID returns the user's methods with the primary method first.
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.MFAMethod, error)
	// MarkVerified flips is_verified on a pending method.
	MarkVerified(ctx context.Context, id uuid.UUID) error
	// SetPrimary marks the given method primary and clears the flag on every
	// other method of the same user in one transaction.
	SetPrimary(ctx context.Context, userID, methodID uuid.UUID) error
	// RecordUse bumps use_count, sets last_used_at and, for TOTP, the last
	// accepted time counter used for replay rejection.
	RecordUse(ctx context.Context, id uuid.UUID, usedAt time.Time, counter *int64) error
	// DeleteUnverified removes a pending method of the given type so
	// enrollment can restart cleanly. Returns whether a row was deleted.
	DeleteUnverified(ctx context.Context, userID uuid.UUID, methodType models.MethodType) (bool, error)
	// DisableAllForUser disables every method. Returns the number disabled.
	DisableAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
