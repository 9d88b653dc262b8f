package models

import (
	"time"

	"github.com/google/uuid"
)

// MFAPolicy holds the per-user MFA settings consulted by the verification
// engine and by the login flow, mapping to the "mfa_policies" table. A policy
// row is created lazily on first MFA interaction and never deleted, only
// reset.
type MFAPolicy struct {
	UserID                     uuid.UUID  `json:"user_id" db:"user_id"`
	Enabled                    bool       `json:"enabled" db:"enabled"`
	Enforced                   bool       `json:"enforced" db:"enforced"`
	RequireForSensitiveActions bool       `json:"require_for_sensitive_actions" db:"require_for_sensitive_actions"`
	DeviceTrustEnabled         bool       `json:"device_trust_enabled" db:"device_trust_enabled"`
	DeviceTrustDurationDays    int        `json:"device_trust_duration_days" db:"device_trust_duration_days"`
	LastVerifiedAt             *time.Time `json:"last_verified_at,omitempty" db:"last_verified_at"`
	ConsecutiveFailures        int        `json:"consecutive_failures" db:"consecutive_failures"`
	// LockedUntil is set when ConsecutiveFailures crosses the configured
	// threshold; further attempts short-circuit until it passes or an
	// administrator clears it.
	LockedUntil *time.Time `json:"locked_until,omitempty" db:"locked_until"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Locked reports whether verification attempts are currently short-circuited.
func (p *MFAPolicy) Locked(now time.Time) bool {
	return p.LockedUntil != nil && p.LockedUntil.After(now)
}

// UpdateMFAPolicyRequest carries user-editable policy settings. Pointers
// distinguish "not provided" from zero values.
type UpdateMFAPolicyRequest struct {
	RequireForSensitiveActions *bool
	DeviceTrustEnabled         *bool
	DeviceTrustDurationDays    *int
}
