package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/slogx"
)

// DefaultLockoutThreshold: the fifth consecutive failure locks.
const DefaultLockoutThreshold = 5

// LoginGuard counts failed logins per employee and locks the account once
// Threshold is reached. The count lives in the employees table so every
// instance of the service sees the same state.
type LoginGuard struct {
	Store     store.Store
	Threshold int
}

func NewLoginGuard(s store.Store, threshold int) *LoginGuard {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	return &LoginGuard{Store: s, Threshold: threshold}
}

// RecordFailure bumps the counter for email and reports whether this
// failure is the one that locked the account. Failures racing past the
// threshold all find the account locked, but only the increment that
// reached it reports true.
func (g *LoginGuard) RecordFailure(ctx context.Context, email string) (bool, error) {
	attempts, locked, err := g.Store.Employees().IncrementFailedAttempts(ctx, email, g.Threshold, time.Now())
	if err != nil {
		return false, err
	}
	slogx.FromContext(ctx).Info("login failure recorded",
		slog.Int("attempts", attempts),
		slog.Bool("locked", locked),
	)
	return locked && attempts == g.Threshold, nil
}

// RecordSuccess clears the counter and any lock.
func (g *LoginGuard) RecordSuccess(ctx context.Context, employeeID int64) error {
	return g.Store.Employees().ResetFailedAttempts(ctx, employeeID, time.Now())
}

func (g *LoginGuard) IsLocked(e domain.Employee) bool {
	return e.AccountLocked
}
