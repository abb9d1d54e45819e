package sqlite

import (
	"context"
	"database/sql"
	"fmt"
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
		t.ID, t.EmployeeID, t.TokenHash, ts(t.ExpiresAt), boolInt(t.Revoked), nullTS(t.RevokedAt), ts(t.CreatedAt),
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshToken(ctx context.Context, employeeID int64, hash string) (domain.RefreshToken, error) {
	var (
		t         domain.RefreshToken
		revoked   int
		revokedAt sql.NullString
		expiresAt string
		createdAt string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, employee_id, token_hash, expires_at, revoked, revoked_at, created_at
		FROM refresh_tokens
		WHERE employee_id = ? AND token_hash = ?
		ORDER BY created_at DESC
		LIMIT 1`, employeeID, hash,
	).Scan(&t.ID, &t.EmployeeID, &t.TokenHash, &expiresAt, &revoked, &revokedAt, &createdAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}

	t.Revoked = revoked != 0
	if t.ExpiresAt, err = parseTS(expiresAt); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("refresh_tokens: expires_at: %w", err)
	}
	if t.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("refresh_tokens: created_at: %w", err)
	}
	if t.RevokedAt, err = parseNullTS(revokedAt); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("refresh_tokens: revoked_at: %w", err)
	}
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, revoked_at = COALESCE(revoked_at, ?)
		WHERE token_hash = ?`, ts(at), hash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) ConsumeRefreshToken(ctx context.Context, employeeID int64, hash string, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, revoked_at = ?
		WHERE employee_id = ? AND token_hash = ? AND revoked = 0 AND expires_at > ?`,
		ts(now), employeeID, hash, ts(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) RevokeAllEmployeeRefreshTokens(ctx context.Context, employeeID int64, at time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, revoked_at = COALESCE(revoked_at, ?)
		WHERE employee_id = ? AND revoked = 0`, ts(at), employeeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ? OR revoked = 1`, ts(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
