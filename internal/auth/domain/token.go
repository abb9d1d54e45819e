package domain

import (
	"time"

	"github.com/aussiebroadwan/crm/pkg/idx"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
)

// RefreshToken is a session ledger entry. Only the fingerprint of the
// token is stored.
type RefreshToken struct {
	ID         idx.ID
	EmployeeID int64
	TokenHash  string // deterministic fingerprint (base64url SHA-256)
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Active reports whether the entry can still be exchanged at now.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Tokens is the set of tokens handed out at login. SignedToken and
// EncryptedToken are empty when those formats are not configured.
type Tokens struct {
	AccessToken    string
	SignedToken    string
	EncryptedToken string
	RefreshToken   string
}

// TokenInfo tells the client how long its tokens live.
type TokenInfo struct {
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
}

// LoginResult is what a successful login produces.
type LoginResult struct {
	Employee  Employee
	Identity  jwtx.Identity
	Tokens    Tokens
	TokenInfo TokenInfo
}

// RefreshResult is what a successful refresh produces. RefreshToken is
// only set when refresh tokens are rotated.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
