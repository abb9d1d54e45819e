package mysql

import (
	"context"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
)

type passwordHistoryRepo struct {
	q dbtx
}

func (r *passwordHistoryRepo) AddPasswordHistory(ctx context.Context, h domain.PasswordHistoryEntry) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO password_history (employee_id, password_hash, changed_at) VALUES (?, ?, ?)`,
		h.EmployeeID, h.PasswordHash, h.ChangedAt.UTC(),
	)
	return err
}

func (r *passwordHistoryRepo) LatestPasswordHash(ctx context.Context, employeeID int64) (string, error) {
	var hash string
	err := r.q.QueryRowContext(ctx, `
		SELECT password_hash FROM password_history
		WHERE employee_id = ?
		ORDER BY changed_at DESC, id DESC
		LIMIT 1`, employeeID,
	).Scan(&hash)
	if err != nil {
		return "", mapNotFound(err)
	}
	return hash, nil
}
