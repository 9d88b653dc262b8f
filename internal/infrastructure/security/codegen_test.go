package security_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/security"
)

func TestNumericCode_LengthAndRange(t *testing.T) {
	generator := security.NewCodeGenerator()

	for _, length := range []int{4, 6, 8} {
		code, err := generator.NumericCode(length)
		require.NoError(t, err)
		assert.Len(t, code, length, "code should be zero-padded to the requested length")

		n, err := strconv.Atoi(code)
		require.NoError(t, err, "code should be all digits")
		assert.GreaterOrEqual(t, n, 0)
	}
}

func TestNumericCode_InvalidLength(t *testing.T) {
	generator := security.NewCodeGenerator()

	_, err := generator.NumericCode(0)
	assert.Error(t, err)

	_, err = generator.NumericCode(-3)
	assert.Error(t, err)

	_, err = generator.NumericCode(19)
	assert.Error(t, err)
}

func TestBackupCode_Format(t *testing.T) {
	generator := security.NewCodeGenerator()

	code, err := generator.BackupCode()
	require.NoError(t, err)
	require.Len(t, code, 9)
	assert.Equal(t, byte('-'), code[4])

	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	for i, r := range code {
		if i == 4 {
			continue
		}
		assert.Contains(t, alphabet, string(r), "backup code characters come from the unambiguous alphabet")
	}
}

func TestBackupCodes_DistinctBatch(t *testing.T) {
	generator := security.NewCodeGenerator()

	codes, err := generator.BackupCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		_, dup := seen[code]
		assert.False(t, dup, "batch must not contain duplicates")
		seen[code] = struct{}{}
	}
}

func TestNormalizeBackupCode(t *testing.T) {
	assert.Equal(t, "ABCDEF23", security.NormalizeBackupCode("abcd-ef23"))
	assert.Equal(t, "ABCDEF23", security.NormalizeBackupCode(" ABCD EF23 "))
	assert.Equal(t, "ABCDEF23", security.NormalizeBackupCode("a b c d-e f 2 3"))
}

func TestIsBackupCodeFormat(t *testing.T) {
	assert.True(t, security.IsBackupCodeFormat("ABCD-EF23"))
	assert.True(t, security.IsBackupCodeFormat("abcdef23"))
	assert.True(t, security.IsBackupCodeFormat(" abcd ef23 "))

	assert.False(t, security.IsBackupCodeFormat("123456"), "a six-digit channel code is not a backup code")
	assert.False(t, security.IsBackupCodeFormat("ABCD-EF2"), "too short")
	assert.False(t, security.IsBackupCodeFormat("ABCD-EF234"), "too long")
	assert.False(t, security.IsBackupCodeFormat("ABCD-EF2!"), "punctuation is rejected")
	assert.False(t, security.IsBackupCodeFormat(""))
}

func TestHashCode_DeterministicHexDigest(t *testing.T) {
	first := security.HashCode("123456")
	second := security.HashCode("123456")
	other := security.HashCode("123457")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 64)
	assert.Equal(t, strings.ToLower(first), first, "digest is lowercase hex")
}

func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, security.ConstantTimeEquals("123456", "123456"))
	assert.False(t, security.ConstantTimeEquals("123456", "654321"))
	assert.False(t, security.ConstantTimeEquals("123456", "12345"))
}
