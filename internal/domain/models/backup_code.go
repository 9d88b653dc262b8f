package models

import (
	"time"

	"github.com/google/uuid"
)

// BackupCode is a single-use recovery code, mapping to the
// "mfa_backup_codes" table. Only the SHA-256 hash of the normalized code is
// stored; the plaintext is returned to the caller exactly once, at
// generation time.
type BackupCode struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	CodeHash   string     `json:"-" db:"code_hash"`
	UsedAt     *time.Time `json:"used_at,omitempty" db:"used_at"`
	UsedFromIP string     `json:"used_from_ip,omitempty" db:"used_from_ip"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Used reports whether the code has been consumed.
func (c *BackupCode) Used() bool {
	return c.UsedAt != nil
}

// BackupCodeBatchSize is the fixed size of a generated batch. Regeneration
// replaces the entire prior batch atomically.
const BackupCodeBatchSize = 10
