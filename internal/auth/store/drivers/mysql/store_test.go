package mysql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/idx"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewStoreFromDB(db), mock
}

var employeeRowColumns = []string{
	"id", "email", "first_name", "last_name", "title", "role", "password_hash",
	"failed_login_attempts", "account_locked", "last_activity", "last_password_change",
	"created_at", "updated_at",
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := NormalizeDSN("crm:secret@tcp(db:3306)/crm")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.True(t, cfg.ParseTime)
	require.True(t, cfg.MultiStatements)
	require.True(t, cfg.ClientFoundRows)
	require.Equal(t, time.UTC, cfg.Loc)
	require.Equal(t, "crm", cfg.DBName)

	_, err = NormalizeDSN("not a dsn")
	require.Error(t, err)
}

func TestCreateEmployeeDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO employees").
		WillReturnError(&mysql.MySQLError{Number: errDuplicateEntry, Message: "Duplicate entry"})

	now := time.Now()
	_, err := s.Employees().CreateEmployee(context.Background(), domain.Employee{
		Email: "dup@example.com", FirstName: "D", LastName: "U", PasswordHash: "x",
		CreatedAt: now, UpdatedAt: now,
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestGetEmployeeByEmail(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM employees WHERE email = \\?").
		WithArgs("sam@example.com").
		WillReturnRows(sqlmock.NewRows(employeeRowColumns).AddRow(
			int64(7), "sam@example.com", "Sam", "Lee", "Store Manager", "", "argon2:x",
			2, false, nil, nil, created, created,
		))

	e, err := s.Employees().GetEmployeeByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	require.EqualValues(t, 7, e.ID)
	require.Equal(t, 2, e.FailedLoginAttempts)
	require.Nil(t, e.LastActivity)

	manager, fromTitle := e.ManagerStatus()
	require.True(t, manager)
	require.True(t, fromTitle)

	mock.ExpectQuery("SELECT (.+) FROM employees WHERE email = \\?").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err = s.Employees().GetEmployeeByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncrementFailedAttempts(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE employees\\s+SET account_locked = CASE WHEN failed_login_attempts >= \\?").
		WithArgs(4, sqlmock.AnyArg(), "lock@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT failed_login_attempts, account_locked FROM employees").
		WithArgs("lock@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "account_locked"}).AddRow(5, true))
	mock.ExpectCommit()

	attempts, locked, err := s.Employees().IncrementFailedAttempts(context.Background(), "lock@example.com", 5, at)
	require.NoError(t, err)
	require.Equal(t, 5, attempts)
	require.True(t, locked)
}

func TestIncrementFailedAttemptsUnknownEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE employees").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := s.Employees().IncrementFailedAttempts(context.Background(), "nobody@example.com", 5, time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshTokenQueries(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	id := idx.New()

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(id, int64(3), "fp", sqlmock.AnyArg(), false, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID: id, EmployeeID: 3, TokenHash: "fp", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))

	mock.ExpectQuery("SELECT (.+) FROM refresh_tokens").
		WithArgs(int64(3), "fp").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "employee_id", "token_hash", "expires_at", "revoked", "revoked_at", "created_at",
		}).AddRow([]byte(id), int64(3), "fp", now.Add(time.Hour), false, nil, now))
	got, err := s.RefreshTokens().GetRefreshToken(ctx, 3, "fp")
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.True(t, got.Active(now))

	mock.ExpectExec("UPDATE refresh_tokens\\s+SET revoked = TRUE, revoked_at = COALESCE\\(revoked_at, \\?\\)\\s+WHERE token_hash = \\?").
		WithArgs(sqlmock.AnyArg(), "fp").
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := s.RefreshTokens().RevokeRefreshToken(ctx, "fp", now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	mock.ExpectExec("UPDATE refresh_tokens\\s+SET revoked = TRUE, revoked_at = \\?\\s+WHERE employee_id = \\? AND token_hash = \\? AND revoked = FALSE AND expires_at > \\?").
		WithArgs(sqlmock.AnyArg(), int64(3), "fp", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	n, err = s.RefreshTokens().ConsumeRefreshToken(ctx, 3, "fp", now)
	require.NoError(t, err)
	require.Zero(t, n)

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE expires_at <= \\? OR revoked = TRUE").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))
	n, err = s.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
}

func TestAuditSearchQueries(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	id := idx.New()
	employee := int64(3)

	f := domain.AuditFilter{
		EmployeeID: &employee,
		Actions:    []domain.AuditAction{domain.AuditLoginFailed},
		Limit:      20,
		Offset:     40,
	}
	mock.ExpectQuery("SELECT (.+) FROM audit_log a LEFT JOIN employees e ON e.id = a.employee_id WHERE a.employee_id = \\? AND a.action IN \\(\\?\\) ORDER BY a.id DESC LIMIT \\? OFFSET \\?").
		WithArgs(employee, "LOGIN_FAILED", int64(20), int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "employee_id", "action", "details", "ip_address", "user_agent", "created_at",
			"first_name", "last_name", "email",
		}).AddRow([]byte(id), employee, "LOGIN_FAILED", "invalid password", "10.0.0.1", "", now, "Jamie", "Lee", "jamie@example.com"))
	list, err := s.AuditLog().ListAudit(ctx, f)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, id, list[0].ID)
	require.Equal(t, "Jamie Lee", list[0].EmployeeName)
	require.Equal(t, "jamie@example.com", list[0].EmployeeEmail)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_log a LEFT JOIN employees e ON e.id = a.employee_id WHERE a.employee_id = \\?").
		WithArgs(employee, "LOGIN_FAILED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(41)))
	n, err := s.AuditLog().CountAudit(ctx, f)
	require.NoError(t, err)
	require.EqualValues(t, 41, n)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\)(.+)FROM audit_log\\s+WHERE employee_id = \\? AND created_at >= \\?").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), employee, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total", "logins", "failed", "last"}).AddRow(int64(5), int64(3), int64(2), now))
	stats, err := s.AuditLog().AuditStatsSince(ctx, employee, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.EqualValues(t, 5, stats.TotalActions)
	require.EqualValues(t, 2, stats.FailedLogins)
	require.NotNil(t, stats.LastActivity)
}

func TestIncrementFailedAttemptsJoinsTx(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE employees").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT failed_login_attempts, account_locked FROM employees").
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "account_locked"}).AddRow(1, false))
	mock.ExpectCommit()

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		attempts, locked, err := tx.Employees().IncrementFailedAttempts(ctx, "nested@example.com", 5, time.Now())
		require.Equal(t, 1, attempts)
		require.False(t, locked)
		return err
	}))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE employees").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.Employees().UpdatePassword(context.Background(), 1, "argon2:x", time.Now())
	})
	require.ErrorIs(t, err, sql.ErrConnDone)
}
