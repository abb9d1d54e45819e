package jwtx

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"
)

// JWECodec encrypts claims with a shared key using direct key agreement
// and AES-256-GCM. The resulting compact token has five segments and
// nothing in it is readable without the key.
type JWECodec struct {
	key    []byte
	issuer string
}

var _ Codec = (*JWECodec)(nil)

// NewJWECodec derives the 256-bit content key from secret with SHA-256,
// so operators can configure a passphrase of any length.
func NewJWECodec(secret []byte, issuer string) (*JWECodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: JWE secret must be at least %d bytes", ErrConfig, MinSecretLength)
	}
	sum := sha256.Sum256(secret)

	c := &JWECodec{key: sum[:], issuer: issuer}
	if _, err := c.encrypter(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return c, nil
}

func (c *JWECodec) Kind() Kind  { return KindEncrypted }
func (c *JWECodec) Alg() string { return string(jose.A256GCM) }

func (c *JWECodec) encrypter() (jose.Encrypter, error) {
	return jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: c.key},
		(&jose.EncrypterOptions{}).WithType("JWT"),
	)
}

// Issue serialises the claims and encrypts them.
func (c *JWECodec) Issue(claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jwtx: marshal claims: %w", err)
	}

	enc, err := c.encrypter()
	if err != nil {
		return "", fmt.Errorf("jwtx: encrypter: %w", err)
	}

	obj, err := enc.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("jwtx: encrypt: %w", err)
	}
	return obj.CompactSerialize()
}

// Verify decrypts the token and checks the temporal claims. Only
// dir + A256GCM is accepted.
func (c *JWECodec) Verify(token string) (*Claims, error) {
	if strings.Count(token, ".") != 4 {
		return nil, invalid(ErrMalformed)
	}

	obj, err := jose.ParseEncryptedCompact(
		token,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return nil, invalid(ErrMalformed)
	}

	payload, err := obj.Decrypt(c.key)
	if err != nil {
		return nil, invalid(ErrDecrypt)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, invalid(ErrMalformed)
	}

	if err := validate(&claims, c.issuer); err != nil {
		return nil, err
	}
	return &claims, nil
}
