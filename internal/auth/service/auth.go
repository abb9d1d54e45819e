package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/cryptox"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
	"github.com/aussiebroadwan/crm/pkg/slogx"
)

// Authenticator is what the HTTP layer needs from the auth service.
type Authenticator interface {
	Login(ctx context.Context, email, password string, client domain.ClientInfo) (*domain.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string, client domain.ClientInfo) (*domain.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string, client domain.ClientInfo) error
	ChangePassword(ctx context.Context, employeeID int64, current, next string, client domain.ClientInfo) error
	VerifyBearer(ctx context.Context, token string, kind jwtx.Kind) (*jwtx.Claims, error)
	AuditTrail(ctx context.Context, employeeID int64, limit int) ([]domain.AuditEntry, error)
}

// Codecs are the token formats the service works with. Access and Refresh
// are required and must use different secrets. Signed and Encrypted are
// optional extra encodings of the access token. The token_use claim keeps
// the two apart even if a deployment gets the secrets wrong.
type Codecs struct {
	Access    jwtx.Codec
	Signed    jwtx.Codec
	Encrypted jwtx.Codec
	Refresh   jwtx.Codec
}

type AuthOptions struct {
	Issuer    string
	Lifetimes LifetimePolicy

	// RotateRefreshTokens makes Refresh revoke the presented refresh token
	// and hand out a new one. Off by default: the same refresh token keeps
	// working until it expires or is revoked.
	RotateRefreshTokens bool
}

type AuthService struct {
	Store  store.Store
	Codecs Codecs
	Ledger *SessionLedger
	Guard  *LoginGuard
	Audit  *Auditor

	Issuer              string
	Lifetimes           LifetimePolicy
	RotateRefreshTokens bool
}

var _ Authenticator = (*AuthService)(nil)

// NewAuthService wires the orchestrator. A missing access or refresh codec
// is a configuration error.
func NewAuthService(s store.Store, codecs Codecs, ledger *SessionLedger, guard *LoginGuard, audit *Auditor, opts AuthOptions) (*AuthService, error) {
	if codecs.Access == nil {
		return nil, fmt.Errorf("%w: access token codec is required", ErrConfig)
	}
	if codecs.Refresh == nil {
		return nil, fmt.Errorf("%w: refresh token codec is required", ErrConfig)
	}
	if opts.Issuer == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrConfig)
	}
	if ledger == nil {
		ledger = NewSessionLedger(s)
	}
	if guard == nil {
		guard = NewLoginGuard(s, DefaultLockoutThreshold)
	}

	return &AuthService{
		Store:               s,
		Codecs:              codecs,
		Ledger:              ledger,
		Guard:               guard,
		Audit:               audit,
		Issuer:              opts.Issuer,
		Lifetimes:           opts.Lifetimes.withDefaults(),
		RotateRefreshTokens: opts.RotateRefreshTokens,
	}, nil
}

// LifetimeFor returns the access-token lifetime for the role.
func (s *AuthService) LifetimeFor(isManager bool) time.Duration {
	return s.Lifetimes.LifetimeFor(isManager)
}

// Login authenticates an employee and issues a new session.
//
// Unknown emails and wrong passwords both give ErrInvalidCredentials. A
// locked account gives ErrAccountLocked even when the password is right.
func (s *AuthService) Login(ctx context.Context, email, password string, client domain.ClientInfo) (*domain.LoginResult, error) {
	l := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)

	e, err := s.Store.Employees().GetEmployeeByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("login for unknown email")
			s.Audit.Record(ctx, nil, domain.AuditLoginFailed, "unknown email", client)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if s.Guard.IsLocked(e) {
		l.Info("login for locked account", slog.Int64("employee_id", e.ID))
		s.Audit.Record(ctx, &e.ID, domain.AuditLoginFailed, "account locked", client)
		return nil, ErrAccountLocked
	}

	if err := cryptox.VerifyPassword(password, e.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return nil, err
		}

		locked, gerr := s.Guard.RecordFailure(ctx, e.Email)
		if gerr != nil {
			l.Error("failed to record login failure", slog.Int64("employee_id", e.ID), slog.Any("error", gerr))
		}
		s.Audit.Record(ctx, &e.ID, domain.AuditLoginFailed, "invalid password", client)
		if locked {
			l.Warn("account locked after repeated failures", slog.Int64("employee_id", e.ID))
			s.Audit.Record(ctx, &e.ID, domain.AuditAccountLocked, fmt.Sprintf("locked after %d failed attempts", s.Guard.Threshold), client)
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.Guard.RecordSuccess(ctx, e.ID); err != nil {
		return nil, err
	}

	identity := s.identity(ctx, e)
	now := time.Now()
	ttl := s.LifetimeFor(identity.IsManager)

	tokens, err := s.issueAccess(identity, ttl, now)
	if err != nil {
		return nil, err
	}

	refresh, err := s.Codecs.Refresh.Issue(jwtx.NewRefreshClaims(e.ID, s.Lifetimes.Refresh, s.Issuer, now))
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.Ledger.Create(ctx, e.ID, refresh, s.Lifetimes.Refresh); err != nil {
		return nil, err
	}
	tokens.RefreshToken = refresh

	if err := s.Store.Employees().TouchLastActivity(ctx, e.ID, now); err != nil {
		l.Warn("failed to touch last activity", slog.Int64("employee_id", e.ID), slog.Any("error", err))
	}
	s.Audit.Record(ctx, &e.ID, domain.AuditLogin, "", client)
	l.Info("login succeeded", slog.Int64("employee_id", e.ID), slog.Bool("manager", identity.IsManager))

	return &domain.LoginResult{
		Employee: e,
		Identity: identity,
		Tokens:   tokens,
		TokenInfo: domain.TokenInfo{
			ExpiresIn:        ttl,
			RefreshExpiresIn: s.Lifetimes.Refresh,
		},
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The token must
// verify and still be active in the ledger.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client domain.ClientInfo) (*domain.RefreshResult, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.Codecs.Refresh.Verify(refreshToken)
	if err != nil {
		l.Debug("refresh token rejected", slog.Any("cause", err))
		return nil, ErrInvalidToken
	}
	if claims.ValidateUse(jwtx.UseRefresh) != nil || claims.ValidateSubject() != nil {
		return nil, ErrInvalidToken
	}
	employeeID := claims.UserID

	active, err := s.Ledger.IsActive(ctx, employeeID, refreshToken)
	if err != nil {
		return nil, err
	}
	if !active {
		s.Audit.Record(ctx, &employeeID, domain.AuditSessionTimeout, "refresh token revoked or expired", client)
		return nil, ErrInvalidToken
	}

	e, err := s.Store.Employees().GetEmployeeByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	identity := s.identity(ctx, e)
	now := time.Now()
	ttl := s.LifetimeFor(identity.IsManager)

	access, err := s.Codecs.Access.Issue(jwtx.NewAccessClaims(identity, ttl, s.Issuer, now))
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	result := &domain.RefreshResult{AccessToken: access, ExpiresIn: ttl}

	if s.RotateRefreshTokens {
		next, err := s.Codecs.Refresh.Issue(jwtx.NewRefreshClaims(e.ID, s.Lifetimes.Refresh, s.Issuer, now))
		if err != nil {
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}

		// Consume is a conditional update: of two concurrent refreshes of
		// one token only the first changes a row, the other gets
		// ErrInvalidToken.
		err = s.Store.WithTx(ctx, func(tx store.Tx) error {
			ledger := s.Ledger.in(tx)
			consumed, err := ledger.Consume(ctx, e.ID, refreshToken)
			if err != nil {
				return err
			}
			if !consumed {
				return ErrInvalidToken
			}
			return ledger.Create(ctx, e.ID, next, s.Lifetimes.Refresh)
		})
		if err != nil {
			return nil, err
		}
		result.RefreshToken = next
	}

	if err := s.Store.Employees().TouchLastActivity(ctx, e.ID, now); err != nil {
		l.Warn("failed to touch last activity", slog.Int64("employee_id", e.ID), slog.Any("error", err))
	}
	s.Audit.Record(ctx, &e.ID, domain.AuditTokenRefresh, "", client)

	return result, nil
}

// Logout revokes the refresh token. It never fails: an unknown, expired
// or already revoked token means the caller is logged out already.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, client domain.ClientInfo) error {
	l := slogx.FromContext(ctx)
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	if err := s.Ledger.Revoke(ctx, refreshToken); err != nil {
		l.Error("failed to revoke refresh token", slogx.Fingerprint("token", refreshToken), slog.Any("error", err))
		return nil
	}

	// Only used to attribute the audit entry.
	var employeeID *int64
	if claims, err := s.Codecs.Refresh.Verify(refreshToken); err == nil && claims.Use == jwtx.UseRefresh && claims.UserID > 0 {
		employeeID = ptr(claims.UserID)
	}
	s.Audit.Record(ctx, employeeID, domain.AuditLogout, "", client)
	return nil
}

// ChangePassword replaces the employee's password and revokes every
// session they have. Checks run in order: complexity, current password,
// reuse of the current password, reuse of the previous password.
func (s *AuthService) ChangePassword(ctx context.Context, employeeID int64, current, next string, client domain.ClientInfo) error {
	l := slogx.FromContext(ctx)

	if err := checkPassword(next); err != nil {
		return err
	}

	e, err := s.Store.Employees().GetEmployeeByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if err := cryptox.VerifyPassword(current, e.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return err
		}
		s.Audit.Record(ctx, &e.ID, domain.AuditPasswordChangeFailed, "invalid current password", client)
		return ErrInvalidCredentials
	}

	if current == next || cryptox.VerifyPassword(next, e.PasswordHash) == nil {
		return ErrPasswordReused
	}

	previous, err := s.Store.PasswordHistory().LatestPasswordHash(ctx, e.ID)
	switch {
	case err == nil:
		if cryptox.VerifyPassword(next, previous) == nil {
			return ErrPasswordReused
		}
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	var revoked int64
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.PasswordHistory().AddPasswordHistory(ctx, domain.PasswordHistoryEntry{
			EmployeeID:   e.ID,
			PasswordHash: e.PasswordHash,
			ChangedAt:    now,
		}); err != nil {
			return err
		}
		if err := tx.Employees().UpdatePassword(ctx, e.ID, hash, now); err != nil {
			return err
		}
		var err error
		revoked, err = s.Ledger.in(tx).RevokeAll(ctx, e.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.Audit.Record(ctx, &e.ID, domain.AuditPasswordChange, fmt.Sprintf("%d sessions revoked", revoked), client)
	l.Info("password changed", slog.Int64("employee_id", e.ID), slog.Int64("sessions_revoked", revoked))
	return nil
}

// VerifyBearer checks an access token with the codec for kind. Every
// failure, including an unconfigured kind, is ErrInvalidToken.
func (s *AuthService) VerifyBearer(ctx context.Context, token string, kind jwtx.Kind) (*jwtx.Claims, error) {
	codec := s.codec(kind)
	if codec == nil {
		return nil, ErrInvalidToken
	}
	claims, err := codec.Verify(token)
	if err != nil {
		slogx.FromContext(ctx).Debug("bearer token rejected",
			slog.String("kind", string(kind)),
			slog.Any("cause", err),
		)
		return nil, ErrInvalidToken
	}
	if claims.ValidateUse(jwtx.UseAccess) != nil || claims.ValidateSubject() != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuditTrail lists the employee's recent security events.
func (s *AuthService) AuditTrail(ctx context.Context, employeeID int64, limit int) ([]domain.AuditEntry, error) {
	if s.Audit == nil {
		return nil, nil
	}
	return s.Audit.List(ctx, employeeID, limit)
}

// Supports reports whether tokens of kind can be verified.
func (s *AuthService) Supports(kind jwtx.Kind) bool {
	return s.codec(kind) != nil
}

func (s *AuthService) codec(kind jwtx.Kind) jwtx.Codec {
	switch kind {
	case jwtx.KindSymmetric:
		return s.Codecs.Access
	case jwtx.KindAsymmetric:
		return s.Codecs.Signed
	case jwtx.KindEncrypted:
		return s.Codecs.Encrypted
	}
	return nil
}

func (s *AuthService) issueAccess(id jwtx.Identity, ttl time.Duration, now time.Time) (domain.Tokens, error) {
	var (
		tokens domain.Tokens
		err    error
	)
	claims := jwtx.NewAccessClaims(id, ttl, s.Issuer, now)

	if tokens.AccessToken, err = s.Codecs.Access.Issue(claims); err != nil {
		return tokens, fmt.Errorf("issue access token: %w", err)
	}
	if s.Codecs.Signed != nil {
		if tokens.SignedToken, err = s.Codecs.Signed.Issue(claims); err != nil {
			return tokens, fmt.Errorf("issue signed token: %w", err)
		}
	}
	if s.Codecs.Encrypted != nil {
		if tokens.EncryptedToken, err = s.Codecs.Encrypted.Issue(claims); err != nil {
			return tokens, fmt.Errorf("issue encrypted token: %w", err)
		}
	}
	return tokens, nil
}

// identity builds the token payload. Manager status is decided here, once
// per issuance.
func (s *AuthService) identity(ctx context.Context, e domain.Employee) jwtx.Identity {
	manager, fromTitle := e.ManagerStatus()
	if fromTitle {
		// Compatibility path for rows created before the role column.
		slogx.FromContext(ctx).Warn("employee has no role, derived manager status from title",
			slog.Int64("employee_id", e.ID),
			slog.Bool("manager", manager),
		)
	}
	return jwtx.Identity{
		UserID:    e.ID,
		Email:     e.Email,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		IsManager: manager,
	}
}
