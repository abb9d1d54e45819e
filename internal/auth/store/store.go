package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, mysql)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so a Tx can hand out the same repositories bound to the
// transaction.
type Store interface {
	Employees() Employees
	PasswordHistory() PasswordHistory
	RefreshTokens() RefreshTokens
	AuditLog() AuditLog

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Employees interface {
	// CreateEmployee inserts a new employee and returns its id.
	// Returns ErrAlreadyExists when the email is taken.
	CreateEmployee(ctx context.Context, e domain.Employee) (int64, error)

	GetEmployeeByID(ctx context.Context, id int64) (domain.Employee, error)

	// GetEmployeeByEmail expects an already normalised email.
	GetEmployeeByEmail(ctx context.Context, email string) (domain.Employee, error)

	// IncrementFailedAttempts bumps the failure counter in a single
	// statement. The account is locked when the counter was already at
	// lockAfter-1 or more before this failure. Returns the new state.
	IncrementFailedAttempts(ctx context.Context, email string, lockAfter int, at time.Time) (attempts int, locked bool, err error)

	// ResetFailedAttempts clears the counter and unlocks the account.
	ResetFailedAttempts(ctx context.Context, id int64, at time.Time) error

	// TouchLastActivity records the last time the employee used a token.
	TouchLastActivity(ctx context.Context, id int64, at time.Time) error

	// UpdatePassword swaps the hash, stamps last_password_change and
	// clears the lockout.
	UpdatePassword(ctx context.Context, id int64, hash string, at time.Time) error

	// SetRole writes the explicit role, used to backfill legacy rows.
	SetRole(ctx context.Context, id int64, role domain.Role, at time.Time) error
}

type PasswordHistory interface {
	AddPasswordHistory(ctx context.Context, h domain.PasswordHistoryEntry) error

	// LatestPasswordHash returns the most recent history entry for the
	// employee, or ErrNotFound.
	LatestPasswordHash(ctx context.Context, employeeID int64) (string, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new ledger entry.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshToken returns the entry matching both the employee and the
	// token fingerprint regardless of its state.
	GetRefreshToken(ctx context.Context, employeeID int64, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken marks matching entries revoked. revoked_at keeps
	// the first revocation time. Returns rows touched.
	RevokeRefreshToken(ctx context.Context, hash string, at time.Time) (int64, error)

	// ConsumeRefreshToken revokes the entry only while it is unrevoked and
	// unexpired at now. Returns rows touched: 0 means the entry is unknown,
	// dead or was consumed concurrently.
	ConsumeRefreshToken(ctx context.Context, employeeID int64, hash string, now time.Time) (int64, error)

	// RevokeAllEmployeeRefreshTokens revokes every live entry of an employee.
	RevokeAllEmployeeRefreshTokens(ctx context.Context, employeeID int64, at time.Time) (int64, error)

	// DeleteExpiredRefreshTokens removes entries that are expired at now or
	// revoked, returning how many went.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type AuditLog interface {
	RecordAudit(ctx context.Context, e domain.AuditEntry) error

	// ListAuditByEmployee returns the newest entries first.
	ListAuditByEmployee(ctx context.Context, employeeID int64, limit int) ([]domain.AuditEntry, error)

	// ListAudit returns entries matching f, newest first.
	ListAudit(ctx context.Context, f domain.AuditFilter) ([]domain.AuditRecord, error)

	// CountAudit counts entries matching f, ignoring Limit and Offset.
	CountAudit(ctx context.Context, f domain.AuditFilter) (int64, error)

	// ListAuditActions returns the distinct actions on record, sorted.
	ListAuditActions(ctx context.Context) ([]domain.AuditAction, error)

	// AuditStatsSince summarises the employee's entries created at or
	// after since.
	AuditStatsSince(ctx context.Context, employeeID int64, since time.Time) (domain.AuditStats, error)

	// DeleteAuditBefore prunes entries older than before.
	DeleteAuditBefore(ctx context.Context, before time.Time) (int64, error)
}
