package models

import (
	"time"

	"github.com/google/uuid"
)

// CodePurpose defines what a channel-delivered verification code authorizes.
type CodePurpose string

const (
	CodePurposeLogin    CodePurpose = "login"
	CodePurposeSetup    CodePurpose = "setup"
	CodePurposeDisable  CodePurpose = "disable"
	CodePurposeRecovery CodePurpose = "recovery"
)

// Valid reports whether p is a known purpose.
func (p CodePurpose) Valid() bool {
	switch p {
	case CodePurposeLogin, CodePurposeSetup, CodePurposeDisable, CodePurposeRecovery:
		return true
	}
	return false
}

// VerificationCode is an ephemeral channel-delivered code, mapping to the
// "verification_codes" table. One active row per (user, method, purpose);
// issuing a new code supersedes the previous one.
type VerificationCode struct {
	ID          uuid.UUID   `db:"id"`
	UserID      uuid.UUID   `db:"user_id"`
	MethodID    uuid.UUID   `db:"method_id"`
	Purpose     CodePurpose `db:"purpose"`
	CodeHash    string      `db:"code_hash"`
	Destination string      `db:"destination"`
	ExpiresAt   time.Time   `db:"expires_at"`
	Attempts    int         `db:"attempts"`
	UsedAt      *time.Time  `db:"used_at"`
	CreatedAt   time.Time   `db:"created_at"`
}

// Expired reports whether the code is authoritative-expired.
func (v *VerificationCode) Expired(now time.Time) bool {
	return !v.ExpiresAt.After(now)
}

// Used reports whether the code has been consumed.
func (v *VerificationCode) Used() bool {
	return v.UsedAt != nil
}
