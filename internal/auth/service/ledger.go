package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/cryptox"
	"github.com/aussiebroadwan/crm/pkg/idx"
	"github.com/aussiebroadwan/crm/pkg/slogx"
)

// LedgerState explains why a refresh token is or is not usable.
type LedgerState string

const (
	LedgerActive   LedgerState = "active"
	LedgerNotFound LedgerState = "not_found"
	LedgerRevoked  LedgerState = "revoked"
	LedgerExpired  LedgerState = "expired"
)

// SessionLedger records issued refresh tokens. A refresh token is only
// honoured while its entry exists, is unrevoked and unexpired, whatever
// its signature says. Entries are keyed by the token fingerprint; the
// raw token never reaches the store or the logs.
type SessionLedger struct {
	Store store.Store

	// Now defaults to time.Now.
	Now func() time.Time
}

func NewSessionLedger(s store.Store) *SessionLedger {
	return &SessionLedger{Store: s, Now: time.Now}
}

func (l *SessionLedger) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

// in returns a ledger working inside tx.
func (l *SessionLedger) in(tx store.Store) *SessionLedger {
	c := *l
	c.Store = tx
	return &c
}

// Create stores an active entry expiring lifetime from now.
func (l *SessionLedger) Create(ctx context.Context, employeeID int64, token string, lifetime time.Duration) error {
	if lifetime <= 0 {
		return fmt.Errorf("ledger: lifetime must be positive, got %s", lifetime)
	}
	now := l.now()
	entry := domain.RefreshToken{
		ID:         idx.NewAt(now),
		EmployeeID: employeeID,
		TokenHash:  cryptox.FingerprintToken(token),
		ExpiresAt:  now.Add(lifetime),
		CreatedAt:  now,
	}
	if err := l.Store.RefreshTokens().CreateRefreshToken(ctx, entry); err != nil {
		return fmt.Errorf("ledger: create: %w", err)
	}
	return nil
}

// Inspect reports the state of the entry for token. It is meant for
// diagnostics; request paths use IsActive.
func (l *SessionLedger) Inspect(ctx context.Context, employeeID int64, token string) (LedgerState, error) {
	entry, err := l.Store.RefreshTokens().GetRefreshToken(ctx, employeeID, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LedgerNotFound, nil
		}
		return "", fmt.Errorf("ledger: lookup: %w", err)
	}

	switch {
	case entry.Revoked:
		return LedgerRevoked, nil
	case !entry.Active(l.now()):
		return LedgerExpired, nil
	}
	return LedgerActive, nil
}

// IsActive reports whether token may still be exchanged. The cause of a
// false answer is only logged.
func (l *SessionLedger) IsActive(ctx context.Context, employeeID int64, token string) (bool, error) {
	state, err := l.Inspect(ctx, employeeID, token)
	if err != nil {
		return false, err
	}
	if state != LedgerActive {
		slogx.FromContext(ctx).Debug("refresh token not active",
			slog.Int64("employee_id", employeeID),
			slog.String("cause", string(state)),
			slogx.Fingerprint("token", token),
		)
		return false, nil
	}
	return true, nil
}

// Revoke marks the entry for token revoked. Unknown or already revoked
// tokens are not an error.
func (l *SessionLedger) Revoke(ctx context.Context, token string) error {
	if _, err := l.Store.RefreshTokens().RevokeRefreshToken(ctx, cryptox.FingerprintToken(token), l.now()); err != nil {
		return fmt.Errorf("ledger: revoke: %w", err)
	}
	return nil
}

// Consume revokes the entry for token if it is still active and reports
// whether it did. Exactly one of several concurrent callers wins.
func (l *SessionLedger) Consume(ctx context.Context, employeeID int64, token string) (bool, error) {
	n, err := l.Store.RefreshTokens().ConsumeRefreshToken(ctx, employeeID, cryptox.FingerprintToken(token), l.now())
	if err != nil {
		return false, fmt.Errorf("ledger: consume: %w", err)
	}
	return n == 1, nil
}

// RevokeAll revokes every live entry of the employee.
func (l *SessionLedger) RevokeAll(ctx context.Context, employeeID int64) (int64, error) {
	n, err := l.Store.RefreshTokens().RevokeAllEmployeeRefreshTokens(ctx, employeeID, l.now())
	if err != nil {
		return 0, fmt.Errorf("ledger: revoke all: %w", err)
	}
	return n, nil
}

// SweepExpired deletes expired and revoked entries.
func (l *SessionLedger) SweepExpired(ctx context.Context) (int64, error) {
	n, err := l.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("ledger: sweep: %w", err)
	}
	return n, nil
}
