package sqlite

import (
	"context"
	"database/sql"
	"fmt"
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

func scanEmployee(row scanner) (domain.Employee, error) {
	var (
		e                  domain.Employee
		role               string
		locked             int
		lastActivity       sql.NullString
		lastPasswordChange sql.NullString
		createdAt          string
		updatedAt          string
	)
	err := row.Scan(
		&e.ID, &e.Email, &e.FirstName, &e.LastName, &e.Title, &role, &e.PasswordHash,
		&e.FailedLoginAttempts, &locked, &lastActivity, &lastPasswordChange,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Employee{}, mapNotFound(err)
	}

	e.Role = domain.Role(role)
	e.AccountLocked = locked != 0
	if e.LastActivity, err = parseNullTS(lastActivity); err != nil {
		return domain.Employee{}, fmt.Errorf("employees: last_activity: %w", err)
	}
	if e.LastPasswordChange, err = parseNullTS(lastPasswordChange); err != nil {
		return domain.Employee{}, fmt.Errorf("employees: last_password_change: %w", err)
	}
	if e.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.Employee{}, fmt.Errorf("employees: created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return domain.Employee{}, fmt.Errorf("employees: updated_at: %w", err)
	}
	return e, nil
}

func (r *employeesRepo) CreateEmployee(ctx context.Context, e domain.Employee) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO employees (email, first_name, last_name, title, role, password_hash,
			failed_login_attempts, account_locked, last_activity, last_password_change,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		domain.NormalizeEmail(e.Email), e.FirstName, e.LastName, e.Title, string(e.Role), e.PasswordHash,
		e.FailedLoginAttempts, boolInt(e.AccountLocked), nullTS(e.LastActivity), nullTS(e.LastPasswordChange),
		ts(e.CreatedAt), ts(e.UpdatedAt),
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
	row := r.q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	return scanEmployee(row)
}

func (r *employeesRepo) GetEmployeeByEmail(ctx context.Context, email string) (domain.Employee, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE email = ?`, email)
	return scanEmployee(row)
}

// IncrementFailedAttempts relies on sqlite evaluating every SET expression
// against the pre-update row.
func (r *employeesRepo) IncrementFailedAttempts(ctx context.Context, email string, lockAfter int, at time.Time) (int, bool, error) {
	var (
		attempts int
		locked   int
	)
	err := r.q.QueryRowContext(ctx, `
		UPDATE employees
		SET failed_login_attempts = failed_login_attempts + 1,
		    account_locked = CASE WHEN failed_login_attempts >= ? THEN 1 ELSE account_locked END,
		    updated_at = ?
		WHERE email = ?
		RETURNING failed_login_attempts, account_locked`,
		lockAfter-1, ts(at), email,
	).Scan(&attempts, &locked)
	if err != nil {
		return 0, false, mapNotFound(err)
	}
	return attempts, locked != 0, nil
}

func (r *employeesRepo) ResetFailedAttempts(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `
		UPDATE employees
		SET failed_login_attempts = 0, account_locked = 0, updated_at = ?
		WHERE id = ?`, ts(at), id)
}

func (r *employeesRepo) TouchLastActivity(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE employees SET last_activity = ? WHERE id = ?`, ts(at), id)
}

func (r *employeesRepo) UpdatePassword(ctx context.Context, id int64, hash string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE employees
		SET password_hash = ?, last_password_change = ?, failed_login_attempts = 0,
		    account_locked = 0, updated_at = ?
		WHERE id = ?`, hash, ts(at), ts(at), id)
}

func (r *employeesRepo) SetRole(ctx context.Context, id int64, role domain.Role, at time.Time) error {
	return r.exec(ctx, `UPDATE employees SET role = ?, updated_at = ? WHERE id = ?`, string(role), ts(at), id)
}

// exec runs a single-row update and reports ErrNotFound when nothing matched.
func (r *employeesRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
