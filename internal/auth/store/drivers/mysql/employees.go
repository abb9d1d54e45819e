package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
)

type employeesRepo struct {
	q dbtx
}

const employeeColumns = `id, email, first_name, last_name, title, role, password_hash,
	failed_login_attempts, account_locked, last_activity, last_password_change,
	created_at, updated_at`

func scanEmployee(row interface{ Scan(dest ...any) error }) (domain.Employee, error) {
	var (
		e                  domain.Employee
		role               string
		lastActivity       sql.NullTime
		lastPasswordChange sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.Email, &e.FirstName, &e.LastName, &e.Title, &role, &e.PasswordHash,
		&e.FailedLoginAttempts, &e.AccountLocked, &lastActivity, &lastPasswordChange,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.Employee{}, mapNotFound(err)
	}
	e.Role = domain.Role(role)
	e.LastActivity = timePtr(lastActivity)
	e.LastPasswordChange = timePtr(lastPasswordChange)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}

func (r *employeesRepo) CreateEmployee(ctx context.Context, e domain.Employee) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO employees (email, first_name, last_name, title, role, password_hash,
			failed_login_attempts, account_locked, last_activity, last_password_change,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		domain.NormalizeEmail(e.Email), e.FirstName, e.LastName, e.Title, string(e.Role), e.PasswordHash,
		e.FailedLoginAttempts, e.AccountLocked, nullTime(e.LastActivity), nullTime(e.LastPasswordChange),
		e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrAlreadyExists
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r *employeesRepo) GetEmployeeByID(ctx context.Context, id int64) (domain.Employee, error) {
	return scanEmployee(r.q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id))
}

func (r *employeesRepo) GetEmployeeByEmail(ctx context.Context, email string) (domain.Employee, error) {
	return scanEmployee(r.q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE email = ?`, email))
}

// IncrementFailedAttempts runs the update and the read back in one
// transaction so the row lock taken by the update covers the read, and each
// caller sees its own increment. Inside an existing Tx it joins that.
func (r *employeesRepo) IncrementFailedAttempts(ctx context.Context, email string, lockAfter int, at time.Time) (int, bool, error) {
	db, ok := r.q.(*sql.DB)
	if !ok {
		return incrementFailedAttempts(ctx, r.q, email, lockAfter, at)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	attempts, locked, err := incrementFailedAttempts(ctx, tx, email, lockAfter, at)
	if err != nil {
		return 0, false, err
	}
	return attempts, locked, tx.Commit()
}

// incrementFailedAttempts depends on MySQL applying single-table SET
// assignments left to right: account_locked is decided from the counter
// before it is bumped.
func incrementFailedAttempts(ctx context.Context, q dbtx, email string, lockAfter int, at time.Time) (int, bool, error) {
	if err := execOne(ctx, q, `
		UPDATE employees
		SET account_locked = CASE WHEN failed_login_attempts >= ? THEN TRUE ELSE account_locked END,
		    failed_login_attempts = failed_login_attempts + 1,
		    updated_at = ?
		WHERE email = ?`,
		lockAfter-1, at.UTC(), email,
	); err != nil {
		return 0, false, err
	}

	var (
		attempts int
		locked   bool
	)
	err := q.QueryRowContext(ctx,
		`SELECT failed_login_attempts, account_locked FROM employees WHERE email = ?`, email,
	).Scan(&attempts, &locked)
	if err != nil {
		return 0, false, mapNotFound(err)
	}
	return attempts, locked, nil
}

func (r *employeesRepo) ResetFailedAttempts(ctx context.Context, id int64, at time.Time) error {
	return execOne(ctx, r.q, `
		UPDATE employees
		SET failed_login_attempts = 0, account_locked = FALSE, updated_at = ?
		WHERE id = ?`, at.UTC(), id)
}

func (r *employeesRepo) TouchLastActivity(ctx context.Context, id int64, at time.Time) error {
	return execOne(ctx, r.q, `UPDATE employees SET last_activity = ? WHERE id = ?`, at.UTC(), id)
}

func (r *employeesRepo) UpdatePassword(ctx context.Context, id int64, hash string, at time.Time) error {
	return execOne(ctx, r.q, `
		UPDATE employees
		SET password_hash = ?, last_password_change = ?, failed_login_attempts = 0,
		    account_locked = FALSE, updated_at = ?
		WHERE id = ?`, hash, at.UTC(), at.UTC(), id)
}

func (r *employeesRepo) SetRole(ctx context.Context, id int64, role domain.Role, at time.Time) error {
	return execOne(ctx, r.q, `UPDATE employees SET role = ?, updated_at = ? WHERE id = ?`, string(role), at.UTC(), id)
}
