package jwtx

import (
	"errors"
	"fmt"
)

// Kind names a token format. The values double as the URL segment of
// the protected demo endpoints (jwt-protected, jws-protected, ...).
type Kind string

const (
	KindSymmetric  Kind = "jwt" // HS256 signed
	KindAsymmetric Kind = "jws" // RS256 signed
	KindEncrypted  Kind = "jwe" // dir + A256GCM encrypted
)

// ParseKind maps the user facing name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSymmetric, KindAsymmetric, KindEncrypted:
		return k, nil
	}
	return "", fmt.Errorf("jwtx: unknown token kind %q", s)
}

// Codec issues and verifies one token format. Implementations are
// immutable after construction and safe for concurrent use.
type Codec interface {
	Kind() Kind
	Alg() string
	Issue(Claims) (string, error)
	Verify(token string) (*Claims, error)
}

var (
	// ErrConfig is returned by constructors when a secret or key is
	// missing or unusable. Callers treat it as fatal at startup.
	ErrConfig = errors.New("jwtx: invalid codec configuration")

	// ErrInvalidToken matches every verification failure below, so callers
	// that do not care about the cause can test for one error.
	ErrInvalidToken = errors.New("jwtx: invalid token")

	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrDecrypt     = errors.New("jwtx: decryption failed")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")

	ErrNoKey = errors.New("jwtx: key not found")
)

// invalid tags a verification failure so it also matches ErrInvalidToken.
func invalid(cause error) error {
	return fmt.Errorf("%w: %w", ErrInvalidToken, cause)
}

// validate runs the claim checks every codec shares.
func validate(c *Claims, issuer string) error {
	if err := c.ValidateIssuer(issuer); err != nil {
		return invalid(err)
	}
	if err := c.ValidateExpiry(); err != nil {
		return invalid(err)
	}
	if err := c.ValidateSubject(); err != nil {
		return invalid(err)
	}
	return nil
}
