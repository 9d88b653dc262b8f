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

const trustedDeviceColumns = `id, user_id, fingerprint, friendly_name, trust_expires_at,
	last_used_at, revoked, revoke_reason, created_at`

type pgxTrustedDeviceRepository struct {
	db *pgxpool.Pool
}

// NewPgxTrustedDeviceRepository creates a TrustedDeviceRepository backed by PostgreSQL.
func NewPgxTrustedDeviceRepository(db *pgxpool.Pool) repository.TrustedDeviceRepository {
	return &pgxTrustedDeviceRepository{db: db}
}

func (r *pgxTrustedDeviceRepository) Create(ctx context.Context, device *models.TrustedDevice) error {
	query := `
		INSERT INTO trusted_devices (id, user_id, fingerprint, friendly_name,
			trust_expires_at, last_used_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`
	_, err := r.db.Exec(ctx, query,
		device.ID, device.UserID, device.Fingerprint, device.FriendlyName,
		device.TrustExpiresAt, device.LastUsedAt, device.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trusted device: %w", err)
	}
	return nil
}

func (r *pgxTrustedDeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.TrustedDevice, error) {
	query := `SELECT ` + trustedDeviceColumns + ` FROM trusted_devices WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *pgxTrustedDeviceRepository) FindActiveByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*models.TrustedDevice, error) {
	query := `
		SELECT ` + trustedDeviceColumns + `
		FROM trusted_devices
		WHERE user_id = $1 AND fingerprint = $2 AND revoked = FALSE
		ORDER BY created_at DESC
		LIMIT 1`
	return r.scanOne(r.db.QueryRow(ctx, query, userID, fingerprint))
}

func (r *pgxTrustedDeviceRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.TrustedDevice, error) {
	query := `
		SELECT ` + trustedDeviceColumns + `
		FROM trusted_devices
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*models.TrustedDevice, 0)
	for rows.Next() {
		d := &models.TrustedDevice{}
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.Fingerprint, &d.FriendlyName, &d.TrustExpiresAt,
			&d.LastUsedAt, &d.Revoked, &d.RevokeReason, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trusted device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trusted devices: %w", err)
	}
	return devices, nil
}

func (r *pgxTrustedDeviceRepository) RefreshTrust(ctx context.Context, userID uuid.UUID, fingerprint string, expiresAt time.Time, friendlyName string) (*models.TrustedDevice, bool, error) {
	query := `
		UPDATE trusted_devices
		SET trust_expires_at = $3, friendly_name = $4, last_used_at = NOW()
		WHERE id = (
			SELECT id FROM trusted_devices
			WHERE user_id = $1 AND fingerprint = $2 AND revoked = FALSE
			ORDER BY created_at DESC
			LIMIT 1
		)
		RETURNING ` + trustedDeviceColumns
	d, err := r.scanOne(r.db.QueryRow(ctx, query, userID, fingerprint, expiresAt, friendlyName))
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return d, true, nil
}

func (r *pgxTrustedDeviceRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE trusted_devices SET last_used_at = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch trusted device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *pgxTrustedDeviceRepository) Revoke(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE trusted_devices
		SET revoked = TRUE, revoke_reason = $2
		WHERE id = $1 AND revoked = FALSE`
	if _, err := r.db.Exec(ctx, query, id, reason); err != nil {
		return fmt.Errorf("failed to revoke trusted device: %w", err)
	}
	return nil
}

func (r *pgxTrustedDeviceRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string) (int64, error) {
	query := `
		UPDATE trusted_devices
		SET revoked = TRUE, revoke_reason = $2
		WHERE user_id = $1 AND revoked = FALSE`
	tag, err := r.db.Exec(ctx, query, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke trusted devices: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgxTrustedDeviceRepository) scanOne(row pgx.Row) (*models.TrustedDevice, error) {
	d := &models.TrustedDevice{}
	err := row.Scan(
		&d.ID, &d.UserID, &d.Fingerprint, &d.FriendlyName, &d.TrustExpiresAt,
		&d.LastUsedAt, &d.Revoked, &d.RevokeReason, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan trusted device: %w", err)
	}
	return d, nil
}

var _ repository.TrustedDeviceRepository = (*pgxTrustedDeviceRepository)(nil)
