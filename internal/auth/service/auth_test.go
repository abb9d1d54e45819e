package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	staff := env.seed(t, "sam@example.com", "Sales Associate", domain.RoleStaff)
	manager := env.seed(t, "morgan@example.com", "Regional Lead", domain.RoleManager)

	t.Run("staff", func(t *testing.T) {
		res, err := env.auth.Login(ctx, "  SAM@example.com ", testPassword, testClient)
		require.NoError(t, err)
		require.Equal(t, staff.ID, res.Employee.ID)
		require.False(t, res.Identity.IsManager)
		require.Equal(t, 2*time.Minute, res.TokenInfo.ExpiresIn)
		require.Equal(t, jwtx.DefaultRefreshTokenTTL, res.TokenInfo.RefreshExpiresIn)

		require.NotEmpty(t, res.Tokens.AccessToken)
		require.NotEmpty(t, res.Tokens.SignedToken)
		require.NotEmpty(t, res.Tokens.EncryptedToken)
		require.NotEmpty(t, res.Tokens.RefreshToken)

		for kind, token := range map[jwtx.Kind]string{
			jwtx.KindSymmetric:  res.Tokens.AccessToken,
			jwtx.KindAsymmetric: res.Tokens.SignedToken,
			jwtx.KindEncrypted:  res.Tokens.EncryptedToken,
		} {
			claims, err := env.auth.VerifyBearer(ctx, token, kind)
			require.NoError(t, err, kind)
			require.Equal(t, staff.ID, claims.UserID)
			require.Equal(t, staff.Email, claims.Email)
		}

		active, err := env.ledger.IsActive(ctx, staff.ID, res.Tokens.RefreshToken)
		require.NoError(t, err)
		require.True(t, active)
	})

	t.Run("manager", func(t *testing.T) {
		res, err := env.auth.Login(ctx, manager.Email, testPassword, testClient)
		require.NoError(t, err)
		require.True(t, res.Identity.IsManager)
		require.Equal(t, 5*time.Minute, res.TokenInfo.ExpiresIn)

		claims, err := env.auth.VerifyBearer(ctx, res.Tokens.AccessToken, jwtx.KindSymmetric)
		require.NoError(t, err)
		require.True(t, claims.IsManager)
	})

	t.Run("two logins are two sessions", func(t *testing.T) {
		a, err := env.auth.Login(ctx, staff.Email, testPassword, testClient)
		require.NoError(t, err)
		b, err := env.auth.Login(ctx, staff.Email, testPassword, testClient)
		require.NoError(t, err)
		require.NotEqual(t, a.Tokens.RefreshToken, b.Tokens.RefreshToken)

		require.NoError(t, env.auth.Logout(ctx, a.Tokens.RefreshToken, testClient))
		_, err = env.auth.Refresh(ctx, b.Tokens.RefreshToken, testClient)
		require.NoError(t, err)
	})
}

func TestLoginInvalidCredentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	emp := env.seed(t, "casey@example.com", "Clerk", domain.RoleStaff)

	_, err := env.auth.Login(ctx, "nobody@example.com", testPassword, testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Login(ctx, emp.Email, "Wrong2024!", testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	entries, err := env.auth.AuditTrail(ctx, emp.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.AuditLoginFailed, entries[0].Action)
	require.Equal(t, testClient.IPAddress, entries[0].IPAddress)
}

func TestLoginLocksAfterFiveFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	emp := env.seed(t, "jordan@example.com", "Clerk", domain.RoleStaff)

	for range DefaultLockoutThreshold {
		_, err := env.auth.Login(ctx, emp.Email, "Wrong2024!", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.ErrorIs(t, err, ErrAccountLocked)

	entries, err := env.auth.AuditTrail(ctx, emp.ID, 0)
	require.NoError(t, err)
	var sawLock bool
	for _, e := range entries {
		if e.Action == domain.AuditAccountLocked {
			sawLock = true
		}
	}
	require.True(t, sawLock)
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	emp := env.seed(t, "riley@example.com", "Clerk", domain.RoleStaff)

	for range DefaultLockoutThreshold - 1 {
		_, err := env.auth.Login(ctx, emp.Email, "Wrong2024!", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)

	// The counter restarted, so one more failure does not lock.
	_, err = env.auth.Login(ctx, emp.Email, "Wrong2024!", testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)
}

func TestLoginTitleFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	env.seed(t, "legacy-manager@example.com", "Store Manager", domain.RoleUnset)
	env.seed(t, "legacy-staff@example.com", "Sales Associate", domain.RoleUnset)

	res, err := env.auth.Login(ctx, "legacy-manager@example.com", testPassword, testClient)
	require.NoError(t, err)
	require.True(t, res.Identity.IsManager)
	require.Equal(t, 5*time.Minute, res.TokenInfo.ExpiresIn)

	res, err = env.auth.Login(ctx, "legacy-staff@example.com", testPassword, testClient)
	require.NoError(t, err)
	require.False(t, res.Identity.IsManager)
	require.Equal(t, 2*time.Minute, res.TokenInfo.ExpiresIn)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	emp := env.seed(t, "drew@example.com", "Sales Manager", domain.RoleManager)

	login, err := env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)

	res, err := env.auth.Refresh(ctx, login.Tokens.RefreshToken, testClient)
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.Empty(t, res.RefreshToken, "rotation is off by default")
	require.Equal(t, 5*time.Minute, res.ExpiresIn)

	claims, err := env.auth.VerifyBearer(ctx, res.AccessToken, jwtx.KindSymmetric)
	require.NoError(t, err)
	require.Equal(t, emp.ID, claims.UserID)

	// Without rotation the same token keeps working.
	_, err = env.auth.Refresh(ctx, login.Tokens.RefreshToken, testClient)
	require.NoError(t, err)

	t.Run("after logout", func(t *testing.T) {
		require.NoError(t, env.auth.Logout(ctx, login.Tokens.RefreshToken, testClient))
		_, err := env.auth.Refresh(ctx, login.Tokens.RefreshToken, testClient)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := env.auth.Refresh(ctx, "not-a-token", testClient)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := env.auth.Refresh(ctx, login.Tokens.AccessToken, testClient)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("signed but never recorded", func(t *testing.T) {
		forged, err := env.auth.Codecs.Refresh.Issue(jwtx.NewRefreshClaims(emp.ID, time.Hour, testIssuer, time.Now()))
		require.NoError(t, err)
		_, err = env.auth.Refresh(ctx, forged, testClient)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRefreshRotation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{RotateRefreshTokens: true})
	emp := env.seed(t, "quinn@example.com", "Clerk", domain.RoleStaff)

	login, err := env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)

	res, err := env.auth.Refresh(ctx, login.Tokens.RefreshToken, testClient)
	require.NoError(t, err)
	require.NotEmpty(t, res.RefreshToken)
	require.NotEqual(t, login.Tokens.RefreshToken, res.RefreshToken)

	_, err = env.auth.Refresh(ctx, login.Tokens.RefreshToken, testClient)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.auth.Refresh(ctx, res.RefreshToken, testClient)
	require.NoError(t, err)
}

func TestRefreshRotationConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{RotateRefreshTokens: true})
	emp := env.seed(t, "race@example.com", "Clerk", domain.RoleStaff)

	login, err := env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.auth.Refresh(ctx, login.Tokens.RefreshToken, testClient)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var rotated, rejected int
	for err := range errs {
		switch {
		case err == nil:
			rotated++
		case errors.Is(err, ErrInvalidToken):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, rotated)
	require.Equal(t, callers-1, rejected)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	emp := env.seed(t, "avery@example.com", "Clerk", domain.RoleStaff)

	login, err := env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, login.Tokens.RefreshToken, testClient))
	require.NoError(t, env.auth.Logout(ctx, login.Tokens.RefreshToken, testClient))
	require.NoError(t, env.auth.Logout(ctx, "", testClient))
	require.NoError(t, env.auth.Logout(ctx, "garbage", testClient))

	entries, err := env.auth.AuditTrail(ctx, emp.ID, 0)
	require.NoError(t, err)
	require.Equal(t, domain.AuditLogout, entries[0].Action)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	emp := env.seed(t, "blake@example.com", "Clerk", domain.RoleStaff)
	const next = "Winter2025$"

	a, err := env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)
	b, err := env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)

	require.NoError(t, env.auth.ChangePassword(ctx, emp.ID, testPassword, next, testClient))

	for _, token := range []string{a.Tokens.RefreshToken, b.Tokens.RefreshToken} {
		_, err := env.auth.Refresh(ctx, token, testClient)
		require.ErrorIs(t, err, ErrInvalidToken)
	}

	_, err = env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, emp.Email, next, testClient)
	require.NoError(t, err)

	t.Run("previous password is rejected", func(t *testing.T) {
		err := env.auth.ChangePassword(ctx, emp.ID, next, testPassword, testClient)
		require.ErrorIs(t, err, ErrPasswordReused)
	})

	t.Run("current password is rejected", func(t *testing.T) {
		err := env.auth.ChangePassword(ctx, emp.ID, next, next, testClient)
		require.ErrorIs(t, err, ErrPasswordReused)
	})

	t.Run("wrong current password", func(t *testing.T) {
		err := env.auth.ChangePassword(ctx, emp.ID, "Wrong2024!", "Spring2026#", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestChangePasswordPolicyRunsFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	emp := env.seed(t, "emerson@example.com", "Clerk", domain.RoleStaff)

	// Complexity wins even over a wrong current password.
	err := env.auth.ChangePassword(ctx, emp.ID, "Wrong2024!", "short", testClient)
	require.ErrorIs(t, err, ErrPasswordPolicy)

	var policy *PasswordPolicyError
	require.True(t, errors.As(err, &policy))
	require.Contains(t, policy.Violations, violationTooShort)
	require.Contains(t, policy.Violations, violationCategories)

	err = env.auth.ChangePassword(ctx, emp.ID+100, testPassword, "Spring2026#", testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyBearerRejectsWrongKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, AuthOptions{})
	emp := env.seed(t, "harper@example.com", "Clerk", domain.RoleStaff)

	login, err := env.auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)

	_, err = env.auth.VerifyBearer(ctx, login.Tokens.AccessToken, jwtx.KindAsymmetric)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = env.auth.VerifyBearer(ctx, login.Tokens.SignedToken, jwtx.KindEncrypted)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = env.auth.VerifyBearer(ctx, login.Tokens.EncryptedToken, jwtx.KindSymmetric)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = env.auth.VerifyBearer(ctx, login.Tokens.RefreshToken, jwtx.KindSymmetric)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = env.auth.VerifyBearer(ctx, login.Tokens.AccessToken, jwtx.Kind("paseto"))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenUseSeparatesSharedSecret(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t)
	shared, err := jwtx.NewHS256Codec([]byte(testAccessSecret), testIssuer)
	require.NoError(t, err)
	auth, err := NewAuthService(s, Codecs{Access: shared, Refresh: shared}, nil, nil, nil, AuthOptions{Issuer: testIssuer})
	require.NoError(t, err)

	employees := &EmployeeService{Store: s}
	emp, err := employees.Create(ctx, NewEmployee{
		Email: "shared@example.com", FirstName: "Sam", LastName: "Lee", Title: "Clerk",
		Role: domain.RoleStaff, Password: testPassword,
	})
	require.NoError(t, err)

	login, err := auth.Login(ctx, emp.Email, testPassword, testClient)
	require.NoError(t, err)

	_, err = auth.VerifyBearer(ctx, login.Tokens.RefreshToken, jwtx.KindSymmetric)
	require.ErrorIs(t, err, ErrInvalidToken, "refresh token used as bearer")

	_, err = auth.Refresh(ctx, login.Tokens.AccessToken, testClient)
	require.ErrorIs(t, err, ErrInvalidToken, "access token used as refresh token")

	_, err = auth.VerifyBearer(ctx, login.Tokens.AccessToken, jwtx.KindSymmetric)
	require.NoError(t, err)
	_, err = auth.Refresh(ctx, login.Tokens.RefreshToken, testClient)
	require.NoError(t, err)
}

func TestVerifyBearerUnconfiguredKind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	codecs := testCodecs(t)
	codecs.Signed = nil
	codecs.Encrypted = nil

	auth, err := NewAuthService(s, codecs, nil, nil, nil, AuthOptions{Issuer: testIssuer})
	require.NoError(t, err)
	require.True(t, auth.Supports(jwtx.KindSymmetric))
	require.False(t, auth.Supports(jwtx.KindAsymmetric))

	_, err = auth.VerifyBearer(context.Background(), "x.y.z", jwtx.KindEncrypted)
	require.ErrorIs(t, err, ErrInvalidToken)

	entries, err := auth.AuditTrail(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestNewAuthServiceConfig(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	codecs := testCodecs(t)

	tests := []struct {
		name   string
		mutate func(*Codecs, *AuthOptions)
	}{
		{"no access codec", func(c *Codecs, _ *AuthOptions) { c.Access = nil }},
		{"no refresh codec", func(c *Codecs, _ *AuthOptions) { c.Refresh = nil }},
		{"no issuer", func(_ *Codecs, o *AuthOptions) { o.Issuer = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := codecs
			opts := AuthOptions{Issuer: testIssuer}
			tt.mutate(&c, &opts)
			_, err := NewAuthService(s, c, nil, nil, nil, opts)
			require.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestLifetimeOverrides(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, AuthOptions{Lifetimes: LifetimePolicy{Staff: time.Minute}})
	require.Equal(t, time.Minute, env.auth.LifetimeFor(false))
	require.Equal(t, 5*time.Minute, env.auth.LifetimeFor(true))
}
