package models

import (
	"time"

	"github.com/google/uuid"
)

// VerifyRequest is the engine input for a single verification attempt.
type VerifyRequest struct {
	UserID         uuid.UUID
	Code           string
	MethodTypeHint MethodType // optional; empty means try every usable method
	Purpose        CodePurpose
	RememberDevice bool
	Fingerprint    string // required when RememberDevice is set
	FriendlyName   string
	ClientIP       string
}

// VerifyResult is the engine output for a successful verification.
type VerifyResult struct {
	MethodUsed MethodType     `json:"method_used"`
	UsedBackup bool           `json:"used_backup"`
	// BackupCodesRemaining is set only when a backup code was consumed.
	BackupCodesRemaining *int           `json:"backup_codes_remaining,omitempty"`
	Device               *TrustedDevice `json:"device,omitempty"`
}

// MethodStatus is the read-only rendering of an enrolled method.
type MethodStatus struct {
	ID          uuid.UUID  `json:"id"`
	Type        MethodType `json:"type"`
	IsPrimary   bool       `json:"is_primary"`
	IsEnabled   bool       `json:"is_enabled"`
	IsVerified  bool       `json:"is_verified"`
	Destination string     `json:"destination,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// MFAStatus is the aggregate returned by GetStatus.
type MFAStatus struct {
	Enabled              bool             `json:"enabled"`
	Enforced             bool             `json:"enforced"`
	Methods              []MethodStatus   `json:"methods"`
	BackupCodesRemaining int              `json:"backup_codes_remaining"`
	TrustedDevices       []*TrustedDevice `json:"trusted_devices"`
}

// TOTPEnrollment is the phase-one result of enrolling a time-based method.
// SecretBase32 and OTPAuthURL are exposed exactly once, at provisioning time.
type TOTPEnrollment struct {
	MethodID     uuid.UUID `json:"pending_method_id"`
	SecretBase32 string    `json:"secret"`
	OTPAuthURL   string    `json:"otpauth_url"`
}

// ChannelEnrollment is the phase-one result of enrolling a channel method.
type ChannelEnrollment struct {
	MethodID  uuid.UUID `json:"pending_method_id"`
	ExpiresAt time.Time `json:"code_expires_at"`
}

// EnrollmentResult is the phase-two result: the verified method plus the
// backup-code batch generated for a user who had none.
type EnrollmentResult struct {
	Method      *MFAMethod `json:"method"`
	BackupCodes []string   `json:"backup_codes,omitempty"`
}
