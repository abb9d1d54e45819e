package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedEmployee(t *testing.T, s *Store, email string) domain.Employee {
	t.Helper()

	now := time.Now().UTC()
	e := domain.Employee{
		Email:        email,
		FirstName:    "Jamie",
		LastName:     "Nguyen",
		Title:        "Sales Associate",
		Role:         domain.RoleStaff,
		PasswordHash: "argon2:dummy",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.Employees().CreateEmployee(context.Background(), e)
	require.NoError(t, err)
	e.ID = id
	return e
}

func TestEmployees(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	seeded := seedEmployee(t, s, "Jamie@Example.com ")

	t.Run("email is stored normalised", func(t *testing.T) {
		got, err := s.Employees().GetEmployeeByEmail(ctx, "jamie@example.com")
		require.NoError(t, err)
		require.Equal(t, seeded.ID, got.ID)
		require.Equal(t, domain.RoleStaff, got.Role)
		require.Nil(t, got.LastActivity)
		require.WithinDuration(t, seeded.CreatedAt, got.CreatedAt, time.Microsecond)
	})

	t.Run("duplicate email", func(t *testing.T) {
		now := time.Now()
		_, err := s.Employees().CreateEmployee(ctx, domain.Employee{
			Email: "jamie@example.com", FirstName: "J", LastName: "N",
			PasswordHash: "x", CreatedAt: now, UpdatedAt: now,
		})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("unknown employee", func(t *testing.T) {
		_, err := s.Employees().GetEmployeeByID(ctx, 9999)
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Employees().GetEmployeeByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, _, err = s.Employees().IncrementFailedAttempts(ctx, "nobody@example.com", 5, time.Now())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("touch and role", func(t *testing.T) {
		at := time.Now().UTC()
		require.NoError(t, s.Employees().TouchLastActivity(ctx, seeded.ID, at))
		require.NoError(t, s.Employees().SetRole(ctx, seeded.ID, domain.RoleManager, at))

		got, err := s.Employees().GetEmployeeByID(ctx, seeded.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastActivity)
		require.WithinDuration(t, at, *got.LastActivity, time.Microsecond)
		require.True(t, got.IsManager())

		require.ErrorIs(t, s.Employees().SetRole(ctx, 9999, domain.RoleManager, at), store.ErrNotFound)
	})
}

func TestIncrementFailedAttemptsLocksOnFifth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	e := seedEmployee(t, s, "lock@example.com")

	for i := 1; i <= 4; i++ {
		attempts, locked, err := s.Employees().IncrementFailedAttempts(ctx, e.Email, 5, time.Now())
		require.NoError(t, err)
		require.Equal(t, i, attempts)
		require.False(t, locked, "attempt %d should not lock", i)
	}

	attempts, locked, err := s.Employees().IncrementFailedAttempts(ctx, e.Email, 5, time.Now())
	require.NoError(t, err)
	require.Equal(t, 5, attempts)
	require.True(t, locked)

	require.NoError(t, s.Employees().ResetFailedAttempts(ctx, e.ID, time.Now()))
	got, err := s.Employees().GetEmployeeByID(ctx, e.ID)
	require.NoError(t, err)
	require.Zero(t, got.FailedLoginAttempts)
	require.False(t, got.AccountLocked)
}

func TestUpdatePasswordClearsLockout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	e := seedEmployee(t, s, "pw@example.com")

	for range 5 {
		_, _, err := s.Employees().IncrementFailedAttempts(ctx, e.Email, 5, time.Now())
		require.NoError(t, err)
	}

	at := time.Now().UTC()
	require.NoError(t, s.Employees().UpdatePassword(ctx, e.ID, "argon2:new", at))

	got, err := s.Employees().GetEmployeeByID(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "argon2:new", got.PasswordHash)
	require.False(t, got.AccountLocked)
	require.Zero(t, got.FailedLoginAttempts)
	require.NotNil(t, got.LastPasswordChange)
}

func TestPasswordHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	e := seedEmployee(t, s, "history@example.com")

	_, err := s.PasswordHistory().LatestPasswordHash(ctx, e.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	base := time.Now().UTC()
	require.NoError(t, s.PasswordHistory().AddPasswordHistory(ctx, domain.PasswordHistoryEntry{
		EmployeeID: e.ID, PasswordHash: "first", ChangedAt: base,
	}))
	require.NoError(t, s.PasswordHistory().AddPasswordHistory(ctx, domain.PasswordHistoryEntry{
		EmployeeID: e.ID, PasswordHash: "second", ChangedAt: base.Add(time.Second),
	}))

	hash, err := s.PasswordHistory().LatestPasswordHash(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "second", hash)
}

func TestRefreshTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	e := seedEmployee(t, s, "tokens@example.com")
	now := time.Now().UTC()

	create := func(hash string, expires time.Time) {
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID: idx.New(), EmployeeID: e.ID, TokenHash: hash, ExpiresAt: expires, CreatedAt: now,
		}))
	}
	create("live", now.Add(time.Hour))
	create("other", now.Add(time.Hour))
	create("stale", now.Add(-time.Minute))

	t.Run("lookup requires matching employee", func(t *testing.T) {
		got, err := s.RefreshTokens().GetRefreshToken(ctx, e.ID, "live")
		require.NoError(t, err)
		require.True(t, got.Active(now))

		_, err = s.RefreshTokens().GetRefreshToken(ctx, e.ID+1, "live")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("revoke keeps first revocation time", func(t *testing.T) {
		first := now.Add(time.Second)
		n, err := s.RefreshTokens().RevokeRefreshToken(ctx, "live", first)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		n, err = s.RefreshTokens().RevokeRefreshToken(ctx, "live", first.Add(time.Minute))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		got, err := s.RefreshTokens().GetRefreshToken(ctx, e.ID, "live")
		require.NoError(t, err)
		require.True(t, got.Revoked)
		require.NotNil(t, got.RevokedAt)
		require.WithinDuration(t, first, *got.RevokedAt, time.Microsecond)

		n, err = s.RefreshTokens().RevokeRefreshToken(ctx, "missing", now)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("revoke all skips already revoked", func(t *testing.T) {
		n, err := s.RefreshTokens().RevokeAllEmployeeRefreshTokens(ctx, e.ID, now)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)
	})

	t.Run("sweep removes expired and revoked", func(t *testing.T) {
		create("fresh", now.Add(time.Hour))

		n, err := s.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
		require.NoError(t, err)
		require.EqualValues(t, 3, n)

		_, err = s.RefreshTokens().GetRefreshToken(ctx, e.ID, "fresh")
		require.NoError(t, err)
	})
}

func TestConsumeRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	e := seedEmployee(t, s, "consume@example.com")
	now := time.Now().UTC()

	for hash, expires := range map[string]time.Time{
		"live":  now.Add(time.Hour),
		"stale": now.Add(-time.Minute),
	} {
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID: idx.New(), EmployeeID: e.ID, TokenHash: hash, ExpiresAt: expires, CreatedAt: now,
		}))
	}

	n, err := s.RefreshTokens().ConsumeRefreshToken(ctx, e.ID+1, "live", now)
	require.NoError(t, err)
	require.Zero(t, n, "other employee")

	n, err = s.RefreshTokens().ConsumeRefreshToken(ctx, e.ID, "stale", now)
	require.NoError(t, err)
	require.Zero(t, n, "expired")

	n, err = s.RefreshTokens().ConsumeRefreshToken(ctx, e.ID, "live", now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = s.RefreshTokens().ConsumeRefreshToken(ctx, e.ID, "live", now)
	require.NoError(t, err)
	require.Zero(t, n, "already consumed")

	got, err := s.RefreshTokens().GetRefreshToken(ctx, e.ID, "live")
	require.NoError(t, err)
	require.True(t, got.Revoked)
}

func TestAuditLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	e := seedEmployee(t, s, "audit@example.com")
	now := time.Now().UTC()

	old := now.Add(-100 * 24 * time.Hour)
	entries := []domain.AuditEntry{
		{ID: idx.NewAt(old), EmployeeID: &e.ID, Action: domain.AuditLogin, CreatedAt: old},
		{ID: idx.NewAt(now), EmployeeID: &e.ID, Action: domain.AuditLogout, IPAddress: "10.0.0.1", CreatedAt: now},
		{ID: idx.NewAt(now), Action: domain.AuditLoginFailed, Details: "unknown email", CreatedAt: now},
	}
	for _, entry := range entries {
		require.NoError(t, s.AuditLog().RecordAudit(ctx, entry))
	}

	list, err := s.AuditLog().ListAuditByEmployee(ctx, e.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, domain.AuditLogout, list[0].Action)
	require.Equal(t, "10.0.0.1", list[0].IPAddress)

	n, err := s.AuditLog().DeleteAuditBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestAuditSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	e := seedEmployee(t, s, "search@example.com")
	now := time.Now().UTC()

	at := func(d time.Duration) time.Time { return now.Add(d) }
	entries := []domain.AuditEntry{
		{ID: idx.NewAt(at(-48 * time.Hour)), EmployeeID: &e.ID, Action: domain.AuditLogin, CreatedAt: at(-48 * time.Hour)},
		{ID: idx.NewAt(at(-2 * time.Hour)), EmployeeID: &e.ID, Action: domain.AuditLoginFailed, Details: "invalid password", CreatedAt: at(-2 * time.Hour)},
		{ID: idx.NewAt(at(-time.Hour)), EmployeeID: &e.ID, Action: domain.AuditLogin, IPAddress: "10.0.0.7", CreatedAt: at(-time.Hour)},
		{ID: idx.NewAt(now), Action: domain.AuditLoginFailed, Details: "unknown email 50%_off", CreatedAt: now},
	}
	for _, entry := range entries {
		require.NoError(t, s.AuditLog().RecordAudit(ctx, entry))
	}

	t.Run("joins employee newest first", func(t *testing.T) {
		list, err := s.AuditLog().ListAudit(ctx, domain.AuditFilter{})
		require.NoError(t, err)
		require.Len(t, list, 4)
		require.Nil(t, list[0].EmployeeID)
		require.Empty(t, list[0].EmployeeName)
		require.Equal(t, "Jamie Nguyen", list[1].EmployeeName)
		require.Equal(t, e.Email, list[1].EmployeeEmail)
		require.Equal(t, "10.0.0.7", list[1].IPAddress)
	})

	t.Run("filters", func(t *testing.T) {
		f := domain.AuditFilter{EmployeeID: &e.ID, Actions: []domain.AuditAction{domain.AuditLogin}}
		n, err := s.AuditLog().CountAudit(ctx, f)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		f = domain.AuditFilter{Since: at(-3 * time.Hour), Until: at(-30 * time.Minute)}
		list, err := s.AuditLog().ListAudit(ctx, f)
		require.NoError(t, err)
		require.Len(t, list, 2)

		f = domain.AuditFilter{Actions: domain.SecurityActions}
		n, err = s.AuditLog().CountAudit(ctx, f)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		n, err := s.AuditLog().CountAudit(ctx, domain.AuditFilter{Search: "50%_off"})
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		n, err = s.AuditLog().CountAudit(ctx, domain.AuditFilter{Search: "%"})
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		n, err = s.AuditLog().CountAudit(ctx, domain.AuditFilter{Search: "nguyen"})
		require.NoError(t, err)
		require.EqualValues(t, 3, n)
	})

	t.Run("paging", func(t *testing.T) {
		page, err := s.AuditLog().ListAudit(ctx, domain.AuditFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.Equal(t, entries[2].ID, page[0].ID)
		require.Equal(t, entries[1].ID, page[1].ID)
	})

	t.Run("actions", func(t *testing.T) {
		actions, err := s.AuditLog().ListAuditActions(ctx)
		require.NoError(t, err)
		require.Equal(t, []domain.AuditAction{domain.AuditLogin, domain.AuditLoginFailed}, actions)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := s.AuditLog().AuditStatsSince(ctx, e.ID, at(-24*time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, 2, stats.TotalActions)
		require.EqualValues(t, 1, stats.Logins)
		require.EqualValues(t, 1, stats.FailedLogins)
		require.NotNil(t, stats.LastActivity)
		require.WithinDuration(t, at(-time.Hour), *stats.LastActivity, time.Millisecond)

		stats, err = s.AuditLog().AuditStatsSince(ctx, e.ID+100, at(-24*time.Hour))
		require.NoError(t, err)
		require.Zero(t, stats.TotalActions)
		require.Nil(t, stats.LastActivity)
	})
}

func TestWithTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	e := seedEmployee(t, s, "tx@example.com")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Employees().UpdatePassword(ctx, e.ID, "argon2:rolled-back", time.Now()))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Employees().GetEmployeeByID(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "argon2:dummy", got.PasswordHash)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Employees().UpdatePassword(ctx, e.ID, "argon2:committed", time.Now()); err != nil {
			return err
		}
		return tx.PasswordHistory().AddPasswordHistory(ctx, domain.PasswordHistoryEntry{
			EmployeeID: e.ID, PasswordHash: "argon2:dummy", ChangedAt: time.Now(),
		})
	})
	require.NoError(t, err)

	got, err = s.Employees().GetEmployeeByID(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, "argon2:committed", got.PasswordHash)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
