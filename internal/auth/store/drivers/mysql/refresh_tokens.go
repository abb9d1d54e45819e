package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
)

type refreshTokensRepo struct {
	q dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, employee_id, token_hash, expires_at, revoked, revoked_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.EmployeeID, t.TokenHash, t.ExpiresAt.UTC(), t.Revoked, nullTime(t.RevokedAt), t.CreatedAt.UTC(),
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshToken(ctx context.Context, employeeID int64, hash string) (domain.RefreshToken, error) {
	var (
		t         domain.RefreshToken
		revokedAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, employee_id, token_hash, expires_at, revoked, revoked_at, created_at
		FROM refresh_tokens
		WHERE employee_id = ? AND token_hash = ?
		ORDER BY created_at DESC
		LIMIT 1`, employeeID, hash,
	).Scan(&t.ID, &t.EmployeeID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &revokedAt, &t.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.RevokedAt = timePtr(revokedAt)
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = COALESCE(revoked_at, ?)
		WHERE token_hash = ?`, at.UTC(), hash))
}

// ConsumeRefreshToken is a locking read under InnoDB, so a second caller
// blocks on the first and then matches nothing.
func (r *refreshTokensRepo) ConsumeRefreshToken(ctx context.Context, employeeID int64, hash string, now time.Time) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = ?
		WHERE employee_id = ? AND token_hash = ? AND revoked = FALSE AND expires_at > ?`,
		now.UTC(), employeeID, hash, now.UTC()))
}

func (r *refreshTokensRepo) RevokeAllEmployeeRefreshTokens(ctx context.Context, employeeID int64, at time.Time) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = COALESCE(revoked_at, ?)
		WHERE employee_id = ? AND revoked = FALSE`, at.UTC(), employeeID))
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ? OR revoked = TRUE`, now.UTC()))
}
