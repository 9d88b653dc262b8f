package models

import (
	"time"

	"github.com/google/uuid"
)

// MethodType represents the kind of second factor a user has enrolled.
type MethodType string

const (
	// MethodTypeTOTP is a time-based one-time password generated by an
	// authenticator app from a shared seed.
	MethodTypeTOTP MethodType = "totp"
	// MethodTypeSMS is a short-lived code delivered to a phone number.
	MethodTypeSMS MethodType = "sms"
	// MethodTypeEmail is a short-lived code delivered to an email address.
	MethodTypeEmail MethodType = "email"
)

// IsChannel reports whether the method delivers codes out-of-band rather than
// computing them locally.
func (t MethodType) IsChannel() bool {
	return t == MethodTypeSMS || t == MethodTypeEmail
}

// Valid reports whether t is a known method type.
func (t MethodType) Valid() bool {
	return t == MethodTypeTOTP || t == MethodTypeSMS || t == MethodTypeEmail
}

// MFAMethod is a single enrolled verification method, mapping to the
// "mfa_methods" table. At most one method per (user, type); an unverified
// method cannot satisfy a login challenge.
type MFAMethod struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Type       MethodType `json:"type" db:"type"`
	IsPrimary  bool       `json:"is_primary" db:"is_primary"`
	IsEnabled  bool       `json:"is_enabled" db:"is_enabled"`
	IsVerified bool       `json:"is_verified" db:"is_verified"`
	// SecretEncrypted holds the AES-GCM encrypted TOTP seed; empty for
	// channel methods. Never serialized.
	SecretEncrypted string     `json:"-" db:"secret_encrypted"`
	Destination     string     `json:"destination,omitempty" db:"destination"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	// LastUsedCounter is the TOTP time counter of the last accepted code,
	// kept to reject immediate replay inside the skew window.
	LastUsedCounter *int64    `json:"-" db:"last_used_counter"`
	UseCount        int64     `json:"use_count" db:"use_count"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Usable reports whether the method may satisfy a real challenge.
func (m *MFAMethod) Usable() bool {
	return m.IsEnabled && m.IsVerified
}
