package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 20 // 160 bits, the RFC 4226 recommendation for SHA1
)

// TOTPProvider generates and validates time-based one-time passwords.
type TOTPProvider interface {
	// GenerateSecret creates a new seed for the account and returns the
	// base32 secret plus the otpauth:// provisioning URL.
	GenerateSecret(accountName string) (secretBase32 string, otpAuthURL string, err error)
	// ValidateAt checks the code against the seed at the given time with a
	// ±1 step tolerance and returns the time counter the code matched, so
	// callers can reject replay of the same counter.
	ValidateAt(secretBase32, code string, at time.Time) (valid bool, counter int64, err error)
	// GenerateAt computes the code for the given time. Used by enrollment
	// tests and the channel-free verification path.
	GenerateAt(secretBase32 string, at time.Time) (string, error)
}

type pquernaTOTPProvider struct {
	issuer string
}

// NewTOTPProvider creates a TOTPProvider using the pquerna/otp library.
func NewTOTPProvider(issuer string) TOTPProvider {
	if strings.TrimSpace(issuer) == "" {
		issuer = "FarmPlatform"
	}
	return &pquernaTOTPProvider{issuer: issuer}
}

func (p *pquernaTOTPProvider) GenerateSecret(accountName string) (string, string, error) {
	if strings.TrimSpace(accountName) == "" {
		return "", "", fmt.Errorf("account name cannot be empty for TOTP secret generation")
	}
	if strings.Contains(accountName, ":") || strings.Contains(p.issuer, ":") {
		return "", "", fmt.Errorf("account name and issuer cannot contain a colon character")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		SecretSize:  totpSecretSize,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// ValidateAt walks the skew window one counter at a time instead of calling
// totp.ValidateCustom so the matching counter is known to the caller.
func (p *pquernaTOTPProvider) ValidateAt(secretBase32, code string, at time.Time) (bool, int64, error) {
	if strings.TrimSpace(secretBase32) == "" {
		return false, 0, fmt.Errorf("secret cannot be empty")
	}
	if strings.TrimSpace(code) == "" {
		return false, 0, fmt.Errorf("code cannot be empty")
	}

	base := at.Unix() / totpPeriod
	for offset := int64(-totpSkew); offset <= totpSkew; offset++ {
		counter := base + offset
		expected, err := totp.GenerateCodeCustom(secretBase32, time.Unix(counter*totpPeriod, 0).UTC(), totp.ValidateOpts{
			Period:    totpPeriod,
			Skew:      0,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return false, 0, fmt.Errorf("failed to compute TOTP code: %w", err)
		}
		if ConstantTimeEquals(expected, code) {
			return true, counter, nil
		}
	}
	return false, 0, nil
}

func (p *pquernaTOTPProvider) GenerateAt(secretBase32 string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secretBase32, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to compute TOTP code: %w", err)
	}
	return code, nil
}

var _ TOTPProvider = (*pquernaTOTPProvider)(nil)
