package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Codec signs with an RSA private key and verifies against a KeySet
// of public keys. A verify-only codec has no private key.
type RS256Codec struct {
	kid    string
	key    *rsa.PrivateKey
	keys   *KeySet
	issuer string
}

var _ Codec = (*RS256Codec)(nil)

// NewRS256Codec loads an RSA private key from PEM bytes. Handles both
// PKCS1 and PKCS8 because otherwise we will be chasing a bug for longer
// that we would be willing to admit.
func NewRS256Codec(kid string, pemKey []byte, issuer string) (*RS256Codec, error) {
	if kid == "" {
		return nil, fmt.Errorf("%w: RS256 key id is empty", ErrConfig)
	}

	key, err := ParseRSAPrivateKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	keys := NewKeySet()
	if err := keys.AddJWK(NewRSAJWK(kid, "sig", jwt.SigningMethodRS256.Alg(), &key.PublicKey)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return &RS256Codec{kid: kid, key: key, keys: keys, issuer: issuer}, nil
}

// NewRS256Verifier returns a codec that can only verify, using whatever
// public keys are in keys. This is what a resource service holds after
// fetching our JWKS.
func NewRS256Verifier(keys *KeySet, issuer string) (*RS256Codec, error) {
	if keys == nil || !keys.IsReady() {
		return nil, fmt.Errorf("%w: no RS256 public keys", ErrConfig)
	}
	return &RS256Codec{keys: keys, issuer: issuer}, nil
}

// ParseRSAPrivateKey decodes a PKCS1 or PKCS8 PEM encoded RSA key.
func ParseRSAPrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse RSA key: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		rk, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: not RSA private key")
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}
}

func (c *RS256Codec) Kind() Kind  { return KindAsymmetric }
func (c *RS256Codec) Alg() string { return jwt.SigningMethodRS256.Alg() }
func (c *RS256Codec) KID() string { return c.kid }

// Keys exposes the public verification keys, for JWKS publishing.
func (c *RS256Codec) Keys() *KeySet { return c.keys }

// Issue signs the claims and stamps the kid header.
func (c *RS256Codec) Issue(claims Claims) (string, error) {
	if c.key == nil {
		return "", ErrNoKey
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = c.kid
	return t.SignedString(c.key)
}

// Verify only ever touches public keys.
func (c *RS256Codec) Verify(tokenStr string) (*Claims, error) {
	return parseSigned(tokenStr, jwt.SigningMethodRS256, c.issuer, func(t *jwt.Token) (any, error) {
		// Need the kid to know which key to use
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrUnknownKID
		}

		pub, err := c.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
}

// PublicJWK describes the signing key. Empty on a verify-only codec.
func (c *RS256Codec) PublicJWK() JWK {
	if c.key == nil {
		return JWK{}
	}
	return NewRSAJWK(c.kid, "sig", c.Alg(), &c.key.PublicKey)
}
