package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/metrics"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
)

const metricsDomain = "auth"

// authenticatorWithMetrics decorates an Authenticator with operation
// counters and latency histograms.
type authenticatorWithMetrics struct {
	next    Authenticator
	metrics metrics.BusinessMetrics
}

// NewAuthenticatorWithMetrics wraps next with metrics recording.
func NewAuthenticatorWithMetrics(next Authenticator, m metrics.BusinessMetrics) Authenticator {
	return &authenticatorWithMetrics{next: next, metrics: m}
}

func (a *authenticatorWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := statusOf(err)
	a.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	a.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (a *authenticatorWithMetrics) Login(ctx context.Context, email, password string, client domain.ClientInfo) (*domain.LoginResult, error) {
	start := time.Now()
	res, err := a.next.Login(ctx, email, password, client)
	a.record(ctx, "login", start, err)
	return res, err
}

func (a *authenticatorWithMetrics) Refresh(ctx context.Context, refreshToken string, client domain.ClientInfo) (*domain.RefreshResult, error) {
	start := time.Now()
	res, err := a.next.Refresh(ctx, refreshToken, client)
	a.record(ctx, "refresh", start, err)
	return res, err
}

func (a *authenticatorWithMetrics) Logout(ctx context.Context, refreshToken string, client domain.ClientInfo) error {
	start := time.Now()
	err := a.next.Logout(ctx, refreshToken, client)
	a.record(ctx, "logout", start, err)
	return err
}

func (a *authenticatorWithMetrics) ChangePassword(ctx context.Context, employeeID int64, current, next string, client domain.ClientInfo) error {
	start := time.Now()
	err := a.next.ChangePassword(ctx, employeeID, current, next, client)
	a.record(ctx, "change_password", start, err)
	return err
}

func (a *authenticatorWithMetrics) VerifyBearer(ctx context.Context, token string, kind jwtx.Kind) (*jwtx.Claims, error) {
	start := time.Now()
	claims, err := a.next.VerifyBearer(ctx, token, kind)
	a.record(ctx, "verify_"+string(kind), start, err)
	return claims, err
}

func (a *authenticatorWithMetrics) AuditTrail(ctx context.Context, employeeID int64, limit int) ([]domain.AuditEntry, error) {
	start := time.Now()
	entries, err := a.next.AuditTrail(ctx, employeeID, limit)
	a.record(ctx, "audit_trail", start, err)
	return entries, err
}

// statusOf keeps the label set small: the taxonomy codes plus "error" for
// anything unexpected.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials.Error()
	case errors.Is(err, ErrAccountLocked):
		return ErrAccountLocked.Error()
	case errors.Is(err, ErrInvalidToken):
		return ErrInvalidToken.Error()
	case errors.Is(err, ErrPasswordPolicy):
		return ErrPasswordPolicy.Error()
	case errors.Is(err, ErrPasswordReused):
		return ErrPasswordReused.Error()
	}
	return "error"
}
