package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/repository"
)

const policyColumns = `user_id, enabled, enforced, require_for_sensitive_actions,
	device_trust_enabled, device_trust_duration_days, last_verified_at,
	consecutive_failures, locked_until, created_at, updated_at`

type pgxPolicyRepository struct {
	db *pgxpool.Pool
}

// NewPgxPolicyRepository creates a PolicyRepository backed by PostgreSQL.
func NewPgxPolicyRepository(db *pgxpool.Pool) repository.PolicyRepository {
	return &pgxPolicyRepository{db: db}
}

func (r *pgxPolicyRepository) EnsureForUser(ctx context.Context, userID uuid.UUID, defaults models.MFAPolicy) (*models.MFAPolicy, error) {
	query := `
		INSERT INTO mfa_policies (user_id, enabled, enforced, require_for_sensitive_actions,
			device_trust_enabled, device_trust_duration_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, query,
		userID, defaults.Enabled, defaults.Enforced, defaults.RequireForSensitiveActions,
		defaults.DeviceTrustEnabled, defaults.DeviceTrustDurationDays,
	); err != nil {
		return nil, fmt.Errorf("failed to ensure MFA policy: %w", err)
	}
	return r.FindByUserID(ctx, userID)
}

func (r *pgxPolicyRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.MFAPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM mfa_policies WHERE user_id = $1`
	p := &models.MFAPolicy{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Enabled, &p.Enforced, &p.RequireForSensitiveActions,
		&p.DeviceTrustEnabled, &p.DeviceTrustDurationDays, &p.LastVerifiedAt,
		&p.ConsecutiveFailures, &p.LockedUntil, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find MFA policy: %w", err)
	}
	return p, nil
}

func (r *pgxPolicyRepository) Update(ctx context.Context, p *models.MFAPolicy) error {
	query := `
		UPDATE mfa_policies
		SET enabled = $2, enforced = $3, require_for_sensitive_actions = $4,
		    device_trust_enabled = $5, device_trust_duration_days = $6,
		    updated_at = NOW()
		WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, query,
		p.UserID, p.Enabled, p.Enforced, p.RequireForSensitiveActions,
		p.DeviceTrustEnabled, p.DeviceTrustDurationDays,
	)
	if err != nil {
		return fmt.Errorf("failed to update MFA policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *pgxPolicyRepository) RecordSuccess(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE mfa_policies
		SET consecutive_failures = 0, locked_until = NULL,
		    last_verified_at = $2, updated_at = NOW()
		WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, query, userID, at)
	if err != nil {
		return fmt.Errorf("failed to record verification success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

// RecordFailure bumps the counter and flips the lock in one statement, so
// two racing failures cannot both observe a pre-threshold count and skip
// the lock.
func (r *pgxPolicyRepository) RecordFailure(ctx context.Context, userID uuid.UUID, at time.Time, threshold int, cooldown time.Duration) (int, *time.Time, error) {
	query := `
		UPDATE mfa_policies
		SET consecutive_failures = consecutive_failures + 1,
		    locked_until = CASE
		        WHEN consecutive_failures + 1 >= $2 THEN $3::timestamptz
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING consecutive_failures, locked_until`
	var failures int
	var lockedUntil *time.Time
	err := r.db.QueryRow(ctx, query, userID, threshold, at.Add(cooldown)).Scan(&failures, &lockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, domainErrors.ErrNotFound
		}
		return 0, nil, fmt.Errorf("failed to record verification failure: %w", err)
	}
	return failures, lockedUntil, nil
}

func (r *pgxPolicyRepository) ClearLock(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE mfa_policies
		SET consecutive_failures = 0, locked_until = NULL, updated_at = NOW()
		WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to clear lockout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *pgxPolicyRepository) SetEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	query := `UPDATE mfa_policies SET enabled = $2, updated_at = NOW() WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, query, userID, enabled)
	if err != nil {
		return fmt.Errorf("failed to set MFA enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *pgxPolicyRepository) SetEnforced(ctx context.Context, userID uuid.UUID, enforced bool) error {
	query := `UPDATE mfa_policies SET enforced = $2, updated_at = NOW() WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, query, userID, enforced)
	if err != nil {
		return fmt.Errorf("failed to set MFA enforcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

var _ repository.PolicyRepository = (*pgxPolicyRepository)(nil)
