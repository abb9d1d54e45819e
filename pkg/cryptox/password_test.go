package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cryptox-test")
	if err != nil {
		panic(err)
	}
	SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"policy compliant", "Abc123!"},
		{"max length", "Abcdef123456-!"},
		{"empty password", ""},
		{"unicode password", "contraseña-Ñ1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=19456,t=2,p=1", parts[3])

			require.NoError(t, VerifyPassword(tt.password, hash))
		})
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	hash1, err := HashPassword("Abc123!")
	require.NoError(t, err)
	hash2, err := HashPassword("Abc123!")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
	require.NoError(t, VerifyPassword("Abc123!", hash1))
	require.NoError(t, VerifyPassword("Abc123!", hash2))
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	hash, err := HashPassword("Correct-Pass1")
	require.NoError(t, err)

	for _, wrong := range []string{"Wrong-Pass1", "correct-pass1", "Correct-Pass1 ", "", strings.Repeat("x", 10000)} {
		err := VerifyPassword(wrong, hash)
		require.ErrorIs(t, err, ErrPasswordMismatch)
	}
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	tests := []struct {
		name        string
		invalidHash string
	}{
		{"empty hash", ""},
		{"bcrypt hash", "$2b$10$abcdefghijklmnopqrstuvABCDEFGHIJKLMNOPQRSTUVWXYZ01234"},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPassword("Abc123!", tt.invalidHash)
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrPasswordMismatch)
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]struct{})

	for range 50 {
		pw, err := GeneratePassword(12)
		require.NoError(t, err)
		require.Len(t, pw, 12)

		require.True(t, strings.ContainsAny(pw, upperChars), "missing upper: %s", pw)
		require.True(t, strings.ContainsAny(pw, lowerChars), "missing lower: %s", pw)
		require.True(t, strings.ContainsAny(pw, digitChars), "missing digit: %s", pw)
		require.True(t, strings.ContainsAny(pw, specialChars), "missing special: %s", pw)

		_, dup := seen[pw]
		require.False(t, dup, "duplicate password generated")
		seen[pw] = struct{}{}
	}

	_, err := GeneratePassword(3)
	require.Error(t, err)
}
