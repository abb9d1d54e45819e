package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
)

type auditLogRepo struct {
	q dbtx
}

func (r *auditLogRepo) RecordAudit(ctx context.Context, e domain.AuditEntry) error {
	var employeeID sql.NullInt64
	if e.EmployeeID != nil {
		employeeID = sql.NullInt64{Int64: *e.EmployeeID, Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, employee_id, action, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, employeeID, string(e.Action), e.Details, e.IPAddress, e.UserAgent, ts(e.CreatedAt),
	)
	return err
}

func (r *auditLogRepo) ListAuditByEmployee(ctx context.Context, employeeID int64, limit int) ([]domain.AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, employee_id, action, details, ip_address, user_agent, created_at
		FROM audit_log
		WHERE employee_id = ?
		ORDER BY id DESC
		LIMIT ?`, employeeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e         domain.AuditEntry
			employee  sql.NullInt64
			action    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &employee, &action, &e.Details, &e.IPAddress, &e.UserAgent, &createdAt); err != nil {
			return nil, err
		}
		if employee.Valid {
			id := employee.Int64
			e.EmployeeID = &id
		}
		e.Action = domain.AuditAction(action)
		if e.CreatedAt, err = parseTS(createdAt); err != nil {
			return nil, fmt.Errorf("audit_log: created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditLogRepo) DeleteAuditBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, ts(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *auditLogRepo) ListAudit(ctx context.Context, f domain.AuditFilter) ([]domain.AuditRecord, error) {
	where, args := store.AuditFilterSQL(f, tsArg)
	query := `SELECT ` + store.AuditSelect + ` FROM ` + store.AuditFrom + where + ` ORDER BY a.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var (
			rec                   domain.AuditRecord
			employee              sql.NullInt64
			action, createdAt     string
			first, last, empEmail sql.NullString
		)
		if err := rows.Scan(&rec.ID, &employee, &action, &rec.Details, &rec.IPAddress, &rec.UserAgent, &createdAt,
			&first, &last, &empEmail); err != nil {
			return nil, err
		}
		if employee.Valid {
			id := employee.Int64
			rec.EmployeeID = &id
		}
		rec.Action = domain.AuditAction(action)
		if rec.CreatedAt, err = parseTS(createdAt); err != nil {
			return nil, fmt.Errorf("audit_log: created_at: %w", err)
		}
		rec.EmployeeName = store.EmployeeName(first.String, last.String)
		rec.EmployeeEmail = empEmail.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *auditLogRepo) CountAudit(ctx context.Context, f domain.AuditFilter) (int64, error) {
	where, args := store.AuditFilterSQL(f, tsArg)
	var n int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+store.AuditFrom+where, args...).Scan(&n)
	return n, err
}

func (r *auditLogRepo) ListAuditActions(ctx context.Context) ([]domain.AuditAction, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT DISTINCT action FROM audit_log ORDER BY action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditAction
	for rows.Next() {
		var action string
		if err := rows.Scan(&action); err != nil {
			return nil, err
		}
		out = append(out, domain.AuditAction(action))
	}
	return out, rows.Err()
}

func (r *auditLogRepo) AuditStatsSince(ctx context.Context, employeeID int64, since time.Time) (domain.AuditStats, error) {
	var (
		stats domain.AuditStats
		last  sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN action = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN action = ? THEN 1 ELSE 0 END), 0),
		       MAX(created_at)
		FROM audit_log
		WHERE employee_id = ? AND created_at >= ?`,
		string(domain.AuditLogin), string(domain.AuditLoginFailed), employeeID, ts(since),
	).Scan(&stats.TotalActions, &stats.Logins, &stats.FailedLogins, &last)
	if err != nil {
		return domain.AuditStats{}, err
	}
	if stats.LastActivity, err = parseNullTS(last); err != nil {
		return domain.AuditStats{}, fmt.Errorf("audit_log: created_at: %w", err)
	}
	return stats, nil
}

func tsArg(t time.Time) any { return ts(t) }
