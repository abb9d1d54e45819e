package service

import (
	"errors"
	"strings"
)

var (
	// ErrConfig is returned by constructors when a codec or secret is
	// missing. It is fatal at startup, never returned per request.
	ErrConfig = errors.New("config_error")

	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")

	// ErrInvalidToken covers bad signatures, wrong algorithms, expiry,
	// decryption failures and ledger misses alike. Callers cannot tell
	// which one it was.
	ErrInvalidToken = errors.New("invalid_token")

	ErrPasswordPolicy = errors.New("password_policy")
	ErrPasswordReused = errors.New("password_reused")
)

// PasswordPolicyError lists every complexity rule a password broke. It
// matches ErrPasswordPolicy with errors.Is.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return ErrPasswordPolicy.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *PasswordPolicyError) Is(target error) bool {
	return target == ErrPasswordPolicy
}
