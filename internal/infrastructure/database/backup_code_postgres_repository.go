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

const backupCodeColumns = `id, user_id, code_hash, used_at, used_from_ip, created_at`

type pgxBackupCodeRepository struct {
	db *pgxpool.Pool
}

// NewPgxBackupCodeRepository creates a BackupCodeRepository backed by PostgreSQL.
func NewPgxBackupCodeRepository(db *pgxpool.Pool) repository.BackupCodeRepository {
	return &pgxBackupCodeRepository{db: db}
}

func (r *pgxBackupCodeRepository) ReplaceBatch(ctx context.Context, userID uuid.UUID, codes []*models.BackupCode) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete previous backup codes: %w", err)
	}

	rows := make([][]interface{}, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, []interface{}{c.ID, c.UserID, c.CodeHash, c.CreatedAt})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"mfa_backup_codes"},
		[]string{"id", "user_id", "code_hash", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert backup codes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit backup code batch: %w", err)
	}
	return nil
}

func (r *pgxBackupCodeRepository) FindByUserIDAndHash(ctx context.Context, userID uuid.UUID, codeHash string) (*models.BackupCode, error) {
	query := `SELECT ` + backupCodeColumns + ` FROM mfa_backup_codes WHERE user_id = $1 AND code_hash = $2`
	c := &models.BackupCode{}
	err := r.db.QueryRow(ctx, query, userID, codeHash).Scan(
		&c.ID, &c.UserID, &c.CodeHash, &c.UsedAt, &c.UsedFromIP, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find backup code: %w", err)
	}
	return c, nil
}

func (r *pgxBackupCodeRepository) MarkUsedIfUnused(ctx context.Context, id uuid.UUID, usedAt time.Time, fromIP string) (bool, error) {
	query := `
		UPDATE mfa_backup_codes
		SET used_at = $2, used_from_ip = $3
		WHERE id = $1 AND used_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id, usedAt, fromIP)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgxBackupCodeRepository) CountUnusedByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM mfa_backup_codes WHERE user_id = $1 AND used_at IS NULL`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unused backup codes: %w", err)
	}
	return count, nil
}

func (r *pgxBackupCodeRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM mfa_backup_codes WHERE user_id = $1`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count backup codes: %w", err)
	}
	return count, nil
}

func (r *pgxBackupCodeRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete backup codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ repository.BackupCodeRepository = (*pgxBackupCodeRepository)(nil)
