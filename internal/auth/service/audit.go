package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/idx"
	"github.com/aussiebroadwan/crm/pkg/slogx"
)

const (
	DefaultAuditRetention = 90 * 24 * time.Hour

	// MaxAuditPage bounds the caller's own trail.
	MaxAuditPage = 100

	// DefaultAuditSearchPage and MaxAuditSearchPage bound the manager view.
	DefaultAuditSearchPage = 100
	MaxAuditSearchPage     = 500

	// DefaultSecurityWindowDays is the security view window when none is
	// given. Longer windows are capped at the retention period.
	DefaultSecurityWindowDays = 7

	// ProfileStatsDays is the window of the profile activity summary.
	ProfileStatsDays = 30
)

// Auditor writes security events. Recording is best effort: a failed
// insert is logged and never fails the operation being audited.
type Auditor struct {
	Store     store.Store
	Retention time.Duration
}

func NewAuditor(s store.Store, retention time.Duration) *Auditor {
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	return &Auditor{Store: s, Retention: retention}
}

func (a *Auditor) Record(ctx context.Context, employeeID *int64, action domain.AuditAction, details string, client domain.ClientInfo) {
	if a == nil {
		return
	}
	now := time.Now().UTC()
	entry := domain.AuditEntry{
		ID:         idx.NewAt(now),
		EmployeeID: employeeID,
		Action:     action,
		Details:    details,
		IPAddress:  client.IPAddress,
		UserAgent:  truncate(client.UserAgent, 512),
		CreatedAt:  now,
	}
	if err := a.Store.AuditLog().RecordAudit(ctx, entry); err != nil {
		slogx.FromContext(ctx).Warn("failed to record audit entry",
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
	}
}

// List returns the newest entries for the employee.
func (a *Auditor) List(ctx context.Context, employeeID int64, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > MaxAuditPage {
		limit = MaxAuditPage
	}
	return a.Store.AuditLog().ListAuditByEmployee(ctx, employeeID, limit)
}

// Search is the manager view of the log. It returns one page of matching
// entries and the total number of matches.
func (a *Auditor) Search(ctx context.Context, f domain.AuditFilter) ([]domain.AuditRecord, int64, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultAuditSearchPage
	case f.Limit > MaxAuditSearchPage:
		f.Limit = MaxAuditSearchPage
	}
	f.Offset = max(f.Offset, 0)

	records, err := a.Store.AuditLog().ListAudit(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total, err := a.Store.AuditLog().CountAudit(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Actions lists the distinct actions on record.
func (a *Auditor) Actions(ctx context.Context) ([]domain.AuditAction, error) {
	return a.Store.AuditLog().ListAuditActions(ctx)
}

// SecurityEvents returns failed logins, lockouts, rejected tokens and
// failed password changes of the last days.
func (a *Auditor) SecurityEvents(ctx context.Context, days int) ([]domain.AuditRecord, error) {
	return a.Store.AuditLog().ListAudit(ctx, domain.AuditFilter{
		Actions: domain.SecurityActions,
		Since:   time.Now().Add(-a.window(days)),
		Limit:   MaxAuditSearchPage,
	})
}

// Stats summarises the employee's activity of the last days.
func (a *Auditor) Stats(ctx context.Context, employeeID int64, days int) (domain.AuditStats, error) {
	return a.Store.AuditLog().AuditStatsSince(ctx, employeeID, time.Now().Add(-a.window(days)))
}

func (a *Auditor) window(days int) time.Duration {
	if days <= 0 {
		days = DefaultSecurityWindowDays
	}
	w := time.Duration(days) * 24 * time.Hour
	if a.Retention > 0 {
		w = min(w, a.Retention)
	}
	return w
}

// Prune deletes entries older than the retention period.
func (a *Auditor) Prune(ctx context.Context, now time.Time) (int64, error) {
	return a.Store.AuditLog().DeleteAuditBefore(ctx, now.Add(-a.Retention))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

func ptr[T any](v T) *T { return &v }
