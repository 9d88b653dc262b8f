package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/repository"
)

const methodColumns = `id, user_id, type, is_primary, is_enabled, is_verified,
	secret_encrypted, destination, last_used_at, last_used_counter, use_count,
	created_at, updated_at`

type pgxMethodRepository struct {
	db *pgxpool.Pool
}

// NewPgxMethodRepository creates a MethodRepository backed by PostgreSQL.
func NewPgxMethodRepository(db *pgxpool.Pool) repository.MethodRepository {
	return &pgxMethodRepository{db: db}
}

func (r *pgxMethodRepository) Create(ctx context.Context, m *models.MFAMethod) error {
	query := `
		INSERT INTO mfa_methods (id, user_id, type, is_primary, is_enabled, is_verified,
			secret_encrypted, destination, use_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.Exec(ctx, query,
		m.ID, m.UserID, m.Type, m.IsPrimary, m.IsEnabled, m.IsVerified,
		m.SecretEncrypted, m.Destination, m.UseCount, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// Unique constraint on (user_id, type).
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: method of this type already enrolled", domainErrors.ErrMethodAlreadyExists)
		}
		return fmt.Errorf("failed to create MFA method: %w", err)
	}
	return nil
}

func (r *pgxMethodRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.MFAMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM mfa_methods WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *pgxMethodRepository) FindByUserIDAndType(ctx context.Context, userID uuid.UUID, methodType models.MethodType) (*models.MFAMethod, error) {
	query := `SELECT ` + methodColumns + ` FROM mfa_methods WHERE user_id = $1 AND type = $2`
	return r.scanOne(r.db.QueryRow(ctx, query, userID, methodType))
}

func (r *pgxMethodRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.MFAMethod, error) {
	query := `SELECT ` + methodColumns + `
		FROM mfa_methods
		WHERE user_id = $1
		ORDER BY is_primary DESC, created_at ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list MFA methods: %w", err)
	}
	defer rows.Close()

	var methods []*models.MFAMethod
	for rows.Next() {
		m := &models.MFAMethod{}
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Type, &m.IsPrimary, &m.IsEnabled, &m.IsVerified,
			&m.SecretEncrypted, &m.Destination, &m.LastUsedAt, &m.LastUsedCounter,
			&m.UseCount, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan MFA method: %w", err)
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (r *pgxMethodRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE mfa_methods SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark MFA method verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *pgxMethodRepository) SetPrimary(ctx context.Context, userID, methodID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE mfa_methods SET is_primary = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_primary`, userID); err != nil {
		return fmt.Errorf("failed to clear primary flag: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE mfa_methods SET is_primary = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2`, methodID, userID)
	if err != nil {
		return fmt.Errorf("failed to set primary method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *pgxMethodRepository) RecordUse(ctx context.Context, id uuid.UUID, usedAt time.Time, counter *int64) error {
	query := `
		UPDATE mfa_methods
		SET last_used_at = $2,
		    last_used_counter = COALESCE($3, last_used_counter),
		    use_count = use_count + 1,
		    updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, usedAt, counter)
	if err != nil {
		return fmt.Errorf("failed to record MFA method use: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *pgxMethodRepository) DeleteUnverified(ctx context.Context, userID uuid.UUID, methodType models.MethodType) (bool, error) {
	query := `DELETE FROM mfa_methods WHERE user_id = $1 AND type = $2 AND NOT is_verified`
	tag, err := r.db.Exec(ctx, query, userID, methodType)
	if err != nil {
		return false, fmt.Errorf("failed to delete unverified MFA method: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgxMethodRepository) DisableAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `UPDATE mfa_methods SET is_enabled = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_enabled`
	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to disable MFA methods: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgxMethodRepository) scanOne(row pgx.Row) (*models.MFAMethod, error) {
	m := &models.MFAMethod{}
	err := row.Scan(
		&m.ID, &m.UserID, &m.Type, &m.IsPrimary, &m.IsEnabled, &m.IsVerified,
		&m.SecretEncrypted, &m.Destination, &m.LastUsedAt, &m.LastUsedCounter,
		&m.UseCount, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan MFA method: %w", err)
	}
	return m, nil
}

var _ repository.MethodRepository = (*pgxMethodRepository)(nil)
