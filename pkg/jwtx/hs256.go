package jwtx

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret we accept.
const MinSecretLength = 16

// HS256Codec signs and verifies tokens with a shared HMAC secret.
type HS256Codec struct {
	secret []byte
	issuer string
}

var _ Codec = (*HS256Codec)(nil)

// NewHS256Codec creates a symmetric codec. An empty or short secret is a
// configuration error.
func NewHS256Codec(secret []byte, issuer string) (*HS256Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: HS256 secret must be at least %d bytes", ErrConfig, MinSecretLength)
	}
	return &HS256Codec{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
	}, nil
}

func (c *HS256Codec) Kind() Kind     { return KindSymmetric }
func (c *HS256Codec) Alg() string    { return jwt.SigningMethodHS256.Alg() }
func (c *HS256Codec) Issuer() string { return c.issuer }

// Issue signs the claims.
func (c *HS256Codec) Issue(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks the signature and the temporal claims.
func (c *HS256Codec) Verify(token string) (*Claims, error) {
	return parseSigned(token, jwt.SigningMethodHS256, c.issuer, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
}
