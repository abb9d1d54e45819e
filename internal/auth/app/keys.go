package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/crm/internal/auth/service"
	"github.com/aussiebroadwan/crm/pkg/cryptox"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
)

// RSAKeyBits is the size of keys generated by keygen and in dev mode.
const RSAKeyBits = 2048

// BuildCodecs creates every token codec from config. The HS256 secrets are
// required and must differ. The JWE secret is optional and so is the RSA key, except
// outside dev where a configured key file must exist.
//
// In dev a missing key file gets an in-memory key instead. Signed tokens
// then stop verifying after every restart.
func BuildCodecs(cfg Config, logger *slog.Logger) (service.Codecs, *jwtx.RS256Codec, error) {
	var codecs service.Codecs

	if cfg.JWTSecret == "" {
		return codecs, nil, fmt.Errorf("%w: JWT_SECRET is required", service.ErrConfig)
	}
	if cfg.JWTRefreshSecret == "" {
		return codecs, nil, fmt.Errorf("%w: JWT_REFRESH_SECRET is required", service.ErrConfig)
	}
	if cfg.JWTRefreshSecret == cfg.JWTSecret {
		return codecs, nil, fmt.Errorf("%w: JWT_REFRESH_SECRET must differ from JWT_SECRET", service.ErrConfig)
	}

	var err error
	if codecs.Access, err = jwtx.NewHS256Codec([]byte(cfg.JWTSecret), cfg.Issuer); err != nil {
		return codecs, nil, fmt.Errorf("JWT_SECRET: %w", err)
	}
	if codecs.Refresh, err = jwtx.NewHS256Codec([]byte(cfg.JWTRefreshSecret), cfg.Issuer); err != nil {
		return codecs, nil, fmt.Errorf("JWT_REFRESH_SECRET: %w", err)
	}

	if cfg.JWESecret != "" {
		if codecs.Encrypted, err = jwtx.NewJWECodec([]byte(cfg.JWESecret), cfg.Issuer); err != nil {
			return codecs, nil, fmt.Errorf("JWE_SECRET: %w", err)
		}
	} else {
		logger.Warn("JWE_SECRET not set, encrypted tokens disabled")
	}

	signer, err := loadSigner(cfg, logger)
	if err != nil {
		return codecs, nil, err
	}
	if signer != nil {
		codecs.Signed = signer
	}

	return codecs, signer, nil
}

func loadSigner(cfg Config, logger *slog.Logger) (*jwtx.RS256Codec, error) {
	if cfg.JWSKeyFile == "" {
		logger.Warn("JWS_PRIVATE_KEY_FILE not set, signed tokens disabled")
		return nil, nil
	}

	pemKey, err := os.ReadFile(cfg.JWSKeyFile)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && cfg.IsDev():
		logger.Warn("RSA key file missing, generating an ephemeral key",
			slog.String("path", cfg.JWSKeyFile),
		)
		if pemKey, _, err = cryptox.GenerateRSAKeyPKCS8(RSAKeyBits); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: read %s: %w", service.ErrConfig, cfg.JWSKeyFile, err)
	}

	signer, err := jwtx.NewRS256Codec(cfg.JWSKeyID, pemKey, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("JWS_PRIVATE_KEY_FILE: %w", err)
	}
	logger.Info("RS256 signing key loaded", slog.String("kid", signer.KID()))
	return signer, nil
}

// WriteRSAKey generates a key pair and writes private.pem and public.pem
// into dir. Existing files are never overwritten.
func WriteRSAKey(dir string, bits int) (privPath, pubPath string, err error) {
	privPEM, pubPEM, err := cryptox.GenerateRSAKeyPKCS8(bits)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", err
	}

	privPath = filepath.Join(dir, "private.pem")
	pubPath = filepath.Join(dir, "public.pem")
	if err := writeNew(privPath, privPEM, 0o600); err != nil {
		return "", "", err
	}
	if err := writeNew(pubPath, pubPEM, 0o644); err != nil {
		return "", "", err
	}
	return privPath, pubPath, nil
}

func writeNew(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
