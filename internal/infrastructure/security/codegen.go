package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// backupCodeAlphabet is the character set for backup codes. Exactly 32
// characters, so reducing a random byte modulo its length is unbiased;
// ambiguous glyphs (0/O, 1/I) are excluded.
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeGenerator produces cryptographically random verification codes.
type CodeGenerator interface {
	// NumericCode returns a zero-padded code uniform over [0, 10^length).
	NumericCode(length int) (string, error)
	// BackupCode returns one code rendered XXXX-XXXX.
	BackupCode() (string, error)
	// BackupCodes returns a batch of n distinct codes.
	BackupCodes(n int) ([]string, error)
}

type codeGenerator struct{}

// NewCodeGenerator creates a CodeGenerator backed by crypto/rand.
func NewCodeGenerator() CodeGenerator {
	return &codeGenerator{}
}

func (g *codeGenerator) NumericCode(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("invalid numeric code length %d", length)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to read random bytes for code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

func (g *codeGenerator) BackupCode() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes for backup code: %w", err)
	}
	var b strings.Builder
	for i, r := range raw {
		if i == 4 {
			b.WriteByte('-')
		}
		b.WriteByte(backupCodeAlphabet[int(r)%len(backupCodeAlphabet)])
	}
	return b.String(), nil
}

func (g *codeGenerator) BackupCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(codes) < n {
		code, err := g.BackupCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

var _ CodeGenerator = (*codeGenerator)(nil)

// NormalizeBackupCode strips whitespace and hyphens and upper-cases the
// submission so formatting differences never reject a valid code.
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// IsBackupCodeFormat reports whether the submission looks like a backup code
// (8 alphanumeric characters, optionally hyphen-separated at position 4).
func IsBackupCodeFormat(code string) bool {
	normalized := NormalizeBackupCode(code)
	if len(normalized) != 8 {
		return false
	}
	for _, r := range normalized {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// HashCode hashes a plain code with SHA-256 and returns the hex digest.
// Verification codes are high-entropy and short-lived, so an unsalted digest
// with constant-time comparison is sufficient.
func HashCode(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEquals compares two strings without leaking the match prefix.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
