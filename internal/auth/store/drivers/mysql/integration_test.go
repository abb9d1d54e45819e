package mysql

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/idx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startMySQL runs a throwaway MySQL server and returns a migrated Store.
// Skipped under -short and when no container runtime is reachable.
func startMySQL(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mysql container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.4",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root",
			"MYSQL_DATABASE":      "crm",
			"MYSQL_USER":          "crm",
			"MYSQL_PASSWORD":      "crm",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
			WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	s, err := NewStore(Config{
		DSN:                fmt.Sprintf("crm:crm@tcp(%s:%s)/crm", host, port.Port()),
		MaxOpenConnections: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.Eventually(t, func() bool { return s.Ping(ctx) == nil }, 30*time.Second, 500*time.Millisecond)
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestMySQLStore(t *testing.T) {
	s := startMySQL(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	id, err := s.Employees().CreateEmployee(ctx, domain.Employee{
		Email: "Casey@Example.com", FirstName: "Casey", LastName: "Ng", Title: "Regional Manager",
		Role: domain.RoleManager, PasswordHash: "argon2:x", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	_, err = s.Employees().CreateEmployee(ctx, domain.Employee{
		Email: "casey@example.com", FirstName: "C", LastName: "N", PasswordHash: "y", CreatedAt: now, UpdatedAt: now,
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	t.Run("fifth failure locks", func(t *testing.T) {
		for i := 1; i <= 5; i++ {
			attempts, locked, err := s.Employees().IncrementFailedAttempts(ctx, "casey@example.com", 5, now)
			require.NoError(t, err)
			require.Equal(t, i, attempts)
			require.Equal(t, i == 5, locked)
		}
		require.NoError(t, s.Employees().ResetFailedAttempts(ctx, id, now))
	})

	t.Run("touch is idempotent", func(t *testing.T) {
		require.NoError(t, s.Employees().TouchLastActivity(ctx, id, now))
		require.NoError(t, s.Employees().TouchLastActivity(ctx, id, now))
	})

	t.Run("ledger", func(t *testing.T) {
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID: idx.New(), EmployeeID: id, TokenHash: "fp", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		}))

		n, err := s.RefreshTokens().RevokeRefreshToken(ctx, "fp", now)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		got, err := s.RefreshTokens().GetRefreshToken(ctx, id, "fp")
		require.NoError(t, err)
		require.True(t, got.Revoked)
		require.NotNil(t, got.RevokedAt)
		require.True(t, now.Equal(*got.RevokedAt))

		n, err = s.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})

	t.Run("concurrent consume wins once", func(t *testing.T) {
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID: idx.New(), EmployeeID: id, TokenHash: "race", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		}))

		const callers = 8
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.WithTx(ctx, func(tx store.Tx) error {
					if _, err := tx.RefreshTokens().GetRefreshToken(ctx, id, "race"); err != nil {
						return err
					}
					n, err := tx.RefreshTokens().ConsumeRefreshToken(ctx, id, "race", time.Now().UTC())
					if err != nil {
						return err
					}
					if n == 1 {
						wins.Add(1)
					}
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, wins.Load())
	})

	t.Run("concurrent failures lock once", func(t *testing.T) {
		_, err := s.Employees().CreateEmployee(ctx, domain.Employee{
			Email: "burst@example.com", FirstName: "B", LastName: "U", PasswordHash: "argon2:x",
			CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)

		const failures = 10
		var (
			wg      sync.WaitGroup
			lockers atomic.Int32
		)
		for range failures {
			wg.Add(1)
			go func() {
				defer wg.Done()
				attempts, locked, err := s.Employees().IncrementFailedAttempts(ctx, "burst@example.com", 5, now)
				assert.NoError(t, err)
				if locked && attempts == 5 {
					lockers.Add(1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, lockers.Load())
	})

	t.Run("password history", func(t *testing.T) {
		require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Employees().UpdatePassword(ctx, id, "argon2:z", now); err != nil {
				return err
			}
			return tx.PasswordHistory().AddPasswordHistory(ctx, domain.PasswordHistoryEntry{
				EmployeeID: id, PasswordHash: "argon2:x", ChangedAt: now,
			})
		}))

		hash, err := s.PasswordHistory().LatestPasswordHash(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "argon2:x", hash)
	})
}
