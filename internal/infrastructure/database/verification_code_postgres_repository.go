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

const verificationCodeColumns = `id, user_id, method_id, purpose, code_hash, destination,
	expires_at, attempts, used_at, created_at`

type pgxVerificationCodeRepository struct {
	db *pgxpool.Pool
}

// NewPgxVerificationCodeRepository creates a VerificationCodeRepository backed by PostgreSQL.
func NewPgxVerificationCodeRepository(db *pgxpool.Pool) repository.VerificationCodeRepository {
	return &pgxVerificationCodeRepository{db: db}
}

func (r *pgxVerificationCodeRepository) Create(ctx context.Context, code *models.VerificationCode) error {
	query := `
		INSERT INTO verification_codes (id, user_id, method_id, purpose, code_hash,
			destination, expires_at, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)`
	_, err := r.db.Exec(ctx, query,
		code.ID, code.UserID, code.MethodID, code.Purpose, code.CodeHash,
		code.Destination, code.ExpiresAt, code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification code: %w", err)
	}
	return nil
}

func (r *pgxVerificationCodeRepository) FindCurrent(ctx context.Context, userID, methodID uuid.UUID, purpose models.CodePurpose) (*models.VerificationCode, error) {
	query := `
		SELECT ` + verificationCodeColumns + `
		FROM verification_codes
		WHERE user_id = $1 AND method_id = $2 AND purpose = $3
		ORDER BY created_at DESC
		LIMIT 1`
	c := &models.VerificationCode{}
	err := r.db.QueryRow(ctx, query, userID, methodID, purpose).Scan(
		&c.ID, &c.UserID, &c.MethodID, &c.Purpose, &c.CodeHash, &c.Destination,
		&c.ExpiresAt, &c.Attempts, &c.UsedAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find verification code: %w", err)
	}
	return c, nil
}

func (r *pgxVerificationCodeRepository) MarkUsedIfMatches(ctx context.Context, id uuid.UUID, codeHash string, usedAt time.Time, maxAttempts int) (bool, error) {
	query := `
		UPDATE verification_codes
		SET used_at = $3
		WHERE id = $1 AND code_hash = $2 AND used_at IS NULL
		  AND expires_at > $3 AND attempts < $4`
	tag, err := r.db.Exec(ctx, query, id, codeHash, usedAt, maxAttempts)
	if err != nil {
		return false, fmt.Errorf("failed to consume verification code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgxVerificationCodeRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, maxAttempts int) (int, bool, error) {
	query := `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE id = $1 AND used_at IS NULL AND expires_at > NOW() AND attempts < $2
		RETURNING attempts`
	var attempts int
	err := r.db.QueryRow(ctx, query, id, maxAttempts).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to increment code attempts: %w", err)
	}
	return attempts, true, nil
}

func (r *pgxVerificationCodeRepository) SupersedeActive(ctx context.Context, userID, methodID uuid.UUID, purpose models.CodePurpose, at time.Time) (int64, error) {
	query := `
		UPDATE verification_codes
		SET used_at = $4
		WHERE user_id = $1 AND method_id = $2 AND purpose = $3 AND used_at IS NULL`
	tag, err := r.db.Exec(ctx, query, userID, methodID, purpose, at)
	if err != nil {
		return 0, fmt.Errorf("failed to supersede verification codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgxVerificationCodeRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM verification_codes WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ repository.VerificationCodeRepository = (*pgxVerificationCodeRepository)(nil)
