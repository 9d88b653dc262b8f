package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
)

// PolicyRepository persists per-user MFA policy rows.
type PolicyRepository interface {
	// EnsureForUser creates the policy row with defaults if it does not
	// exist yet and returns the current row.
	EnsureForUser(ctx context.Context, userID uuid.UUID, defaults models.MFAPolicy) (*models.MFAPolicy, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.MFAPolicy, error)
	Update(ctx context.Context, policy *models.MFAPolicy) error
	// RecordSuccess resets consecutive_failures, clears the lock and stamps
	// last_verified_at in a single update.
	RecordSuccess(ctx context.Context, userID uuid.UUID, at time.Time) error
	// RecordFailure increments consecutive_failures atomically and, when the
	// new count reaches threshold, sets locked_until = at + cooldown in the
	// same statement. Returns the new count and the lock deadline, if any.
	RecordFailure(ctx context.Context, userID uuid.UUID, at time.Time, threshold int, cooldown time.Duration) (int, *time.Time, error)
	// ClearLock resets the failure counter and lock (administrative reset).
	ClearLock(ctx context.Context, userID uuid.UUID) error
	SetEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error
	// SetEnforced pins or lifts enforcement; administrative action only.
	SetEnforced(ctx context.Context, userID uuid.UUID, enforced bool) error
}
