package jwtx

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default lifetimes. Services normally override these from config.
const (
	// DefaultAccessTokenTTL is the access-token lifetime for non-manager staff.
	DefaultAccessTokenTTL = 2 * time.Minute

	// DefaultManagerAccessTokenTTL is the access-token lifetime for managers.
	DefaultManagerAccessTokenTTL = 5 * time.Minute

	// DefaultRefreshTokenTTL is the lifetime of a refresh token and its
	// ledger entry.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Identity is the employee payload carried by access tokens. The JSON
// names are consumed by the CRM frontend as-is, do not rename them.
type Identity struct {
	UserID    int64  `json:"userId"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`

	// IsManager is decided once at issuance and never re-derived while
	// verifying. Always emitted, staff tokens carry false.
	IsManager bool `json:"isManager"`
}

// TokenUse separates access tokens from refresh tokens that happen to be
// verifiable with the same key.
type TokenUse string

const (
	UseAccess  TokenUse = "access"
	UseRefresh TokenUse = "refresh"
)

// Claims are the claims shared by every token kind. Refresh tokens only
// populate Identity.UserID.
type Claims struct {
	jwt.RegisteredClaims
	Identity

	Use TokenUse `json:"token_use"`
}

// NewAccessClaims builds access-token claims for an authenticated employee.
func NewAccessClaims(id Identity, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(id.UserID, ttl, issuer, now),
		Identity:         id,
		Use:              UseAccess,
	}
}

// NewRefreshClaims builds refresh-token claims. Every refresh token gets a
// fresh jti so two tokens minted within the same second still differ.
func NewRefreshClaims(userID int64, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(userID, ttl, issuer, now),
		Identity:         Identity{UserID: userID},
		Use:              UseRefresh,
	}
}

func registered(userID int64, ttl time.Duration, issuer string, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a unique identifier for the "jti" claim. UUIDv7 keeps
// them roughly time ordered, which is handy when reading the ledger.
func NewJTI() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryAt(time.Now().UTC())
}

// ValidateExpiryAt is ValidateExpiry against an explicit clock.
func (c *Claims) ValidateExpiryAt(now time.Time) error {
	// Check expired (exp)
	if c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}

	// Check if a valid token isn't used before it is valid (nbf)
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}

// ValidateUse rejects a token minted for another purpose. Tokens without
// the claim are rejected too.
func (c *Claims) ValidateUse(want TokenUse) error {
	if c.Use != want {
		return ErrInvalidClaim
	}
	return nil
}

// ValidateSubject makes sure sub and userId agree. The encrypted path has
// no library doing this for us.
func (c *Claims) ValidateSubject() error {
	if c.UserID <= 0 || c.Subject != strconv.FormatInt(c.UserID, 10) {
		return ErrInvalidClaim
	}
	return nil
}
