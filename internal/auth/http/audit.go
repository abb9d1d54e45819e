package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/service"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/pkg/authsdk"
	"github.com/aussiebroadwan/crm/pkg/httpx"
)

// MaxSecurityWindowDays bounds the days parameter of the security view.
const MaxSecurityWindowDays = 365

// AuditLogHandler serves the manager views under /api/audit-logs.
type AuditLogHandler struct {
	Audit *service.Auditor
}

// List godoc
//
//	@Summary		Search the audit log
//	@Description	Managers only. Entries are newest first and joined with the employee they belong to.
//	@Description	Plain dates are UTC days and dateTo includes the whole day.
//	@Tags			Audit
//	@Security		BearerAuth
//	@Produce		json
//	@Param			employeeId	query		int		false	"Employee id"
//	@Param			action		query		string	false	"Action, e.g. LOGIN_FAILED"
//	@Param			dateFrom	query		string	false	"YYYY-MM-DD or RFC 3339"
//	@Param			dateTo		query		string	false	"YYYY-MM-DD or RFC 3339"
//	@Param			search		query		string	false	"Matches details, address and employee name"
//	@Param			limit		query		int		false	"Page size (1-500, default 100)"
//	@Param			offset		query		int		false	"Entries to skip"
//	@Success		200			{object}	authsdk.AuditLogsResponse
//	@Failure		400			{object}	authsdk.APIError	"invalid_request"
//	@Failure		401			{object}	authsdk.APIError	"invalid_token"
//	@Failure		403			{object}	authsdk.APIError	"insufficient_role"
//	@Router			/api/audit-logs [get]
func (h *AuditLogHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := authsdk.ParseAuditLogQuery(r.URL.Query())
	if err != nil {
		writeValidationError(w, err)
		return
	}

	records, total, err := h.Audit.Search(r.Context(), auditFilter(q))
	if err != nil {
		writeServiceError(w, r, "audit search", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.AuditLogsResponse{
		Logs:  auditLogEntries(records),
		Total: total,
	})
}

// Actions godoc
//
//	@Summary		Audit actions
//	@Description	Managers only. Lists the distinct actions present in the log, for filter menus.
//	@Tags			Audit
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.AuditActionsResponse
//	@Failure		401	{object}	authsdk.APIError	"invalid_token"
//	@Failure		403	{object}	authsdk.APIError	"insufficient_role"
//	@Router			/api/audit-logs/actions [get]
func (h *AuditLogHandler) Actions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.Audit.Actions(r.Context())
	if err != nil {
		writeServiceError(w, r, "audit actions", err)
		return
	}

	out := authsdk.AuditActionsResponse{Actions: make([]string, 0, len(actions))}
	for _, a := range actions {
		out.Actions = append(out.Actions, string(a))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// SecurityEvents godoc
//
//	@Summary		Security events
//	@Description	Managers only. Failed logins, lockouts, rejected tokens and failed password changes of the last days.
//	@Tags			Audit
//	@Security		BearerAuth
//	@Produce		json
//	@Param			days	query		int	false	"Window in days (1-365, default 7)"
//	@Success		200		{object}	authsdk.SecurityEventsResponse
//	@Failure		400		{object}	authsdk.APIError	"invalid_request"
//	@Failure		401		{object}	authsdk.APIError	"invalid_token"
//	@Failure		403		{object}	authsdk.APIError	"insufficient_role"
//	@Router			/api/audit-logs/security-events [get]
func (h *AuditLogHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxSecurityWindowDays {
			authsdk.ErrInvalidRequest.WithDetails(map[string]string{
				"days": "must be between 1 and " + strconv.Itoa(MaxSecurityWindowDays),
			}).WriteError(w)
			return
		}
		days = n
	}

	records, err := h.Audit.SecurityEvents(r.Context(), days)
	if err != nil {
		writeServiceError(w, r, "security events", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.SecurityEventsResponse{Events: auditLogEntries(records)})
}

// ProfileHandler serves GET /api/auth/profile.
type ProfileHandler struct {
	Employees *service.EmployeeService
	Audit     *service.Auditor
}

// ServeHTTP godoc
//
//	@Summary		My profile
//	@Description	The caller as currently stored plus a summary of their last 30 days of audit entries.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ProfileResponse
//	@Failure		401	{object}	authsdk.APIError	"invalid_token"
//	@Failure		404	{object}	authsdk.APIError	"not_found"
//	@Router			/api/auth/profile [get]
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	e, err := h.Employees.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authsdk.ErrNotFound.WriteError(w)
			return
		}
		writeServiceError(w, r, "profile", err)
		return
	}

	var stats domain.AuditStats
	if h.Audit != nil {
		if stats, err = h.Audit.Stats(r.Context(), e.ID, service.ProfileStatsDays); err != nil {
			writeServiceError(w, r, "profile stats", err)
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ProfileResponse{
		User: authsdk.ProfileUser{
			UserResponse: authsdk.UserResponse{
				ID:        e.ID,
				FirstName: e.FirstName,
				LastName:  e.LastName,
				Email:     e.Email,
				Title:     e.Title,
				IsManager: e.IsManager(),
			},
			LastActivity: e.LastActivity,
		},
		Stats: authsdk.ProfileStats{
			TotalActions: stats.TotalActions,
			Logins:       stats.Logins,
			FailedLogins: stats.FailedLogins,
			LastActivity: stats.LastActivity,
		},
	})
}

// auditFilter maps a validated query onto the store filter.
func auditFilter(q authsdk.AuditLogQuery) domain.AuditFilter {
	f := domain.AuditFilter{
		Search: q.Search,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if q.EmployeeID > 0 {
		f.EmployeeID = &q.EmployeeID
	}
	if q.Action != "" {
		f.Actions = []domain.AuditAction{domain.AuditAction(q.Action)}
	}
	if t, _, err := authsdk.ParseAuditDate(q.DateFrom); err == nil {
		f.Since = t
	}
	if t, plain, err := authsdk.ParseAuditDate(q.DateTo); err == nil {
		if plain {
			f.Until = t.AddDate(0, 0, 1)
		} else {
			f.Until = t.Add(time.Microsecond)
		}
	}
	return f
}

func auditLogEntries(records []domain.AuditRecord) []authsdk.AuditLogEntry {
	out := make([]authsdk.AuditLogEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, authsdk.AuditLogEntry{
			ID:            rec.ID.String(),
			EmployeeID:    rec.EmployeeID,
			EmployeeName:  rec.EmployeeName,
			EmployeeEmail: rec.EmployeeEmail,
			Action:        string(rec.Action),
			Details:       rec.Details,
			IPAddress:     rec.IPAddress,
			UserAgent:     rec.UserAgent,
			CreatedAt:     rec.CreatedAt,
		})
	}
	return out
}
