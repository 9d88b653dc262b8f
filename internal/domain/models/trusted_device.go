package models

import (
	"time"

	"github.com/google/uuid"
)

// TrustedDevice is a time-bounded device-trust record, mapping to the
// "trusted_devices" table. A revoked record never becomes trusted again;
// re-establishing trust creates a new record.
type TrustedDevice struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	UserID         uuid.UUID  `json:"user_id" db:"user_id"`
	Fingerprint    string     `json:"-" db:"fingerprint"`
	FriendlyName   string     `json:"friendly_name" db:"friendly_name"`
	TrustExpiresAt time.Time  `json:"trust_expires_at" db:"trust_expires_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	Revoked        bool       `json:"revoked" db:"revoked"`
	RevokeReason   string     `json:"revoke_reason,omitempty" db:"revoke_reason"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Trusted reports whether the device may skip an MFA challenge at now.
func (d *TrustedDevice) Trusted(now time.Time) bool {
	return !d.Revoked && d.TrustExpiresAt.After(now)
}
