package store

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
)

// AuditSelect is the column list drivers scan into a domain.AuditRecord,
// from audit_log aliased a left joined to employees aliased e.
const AuditSelect = `a.id, a.employee_id, a.action, a.details, a.ip_address, a.user_agent, a.created_at,
	e.first_name, e.last_name, e.email`

// AuditFrom is the join AuditFilterSQL conditions refer to.
const AuditFrom = `audit_log a LEFT JOIN employees e ON e.id = a.employee_id`

// AuditFilterSQL renders the conditions of f as a WHERE clause (empty when
// nothing filters) using ? placeholders. timeArg encodes time bounds the
// way the driver stores them.
func AuditFilterSQL(f domain.AuditFilter, timeArg func(time.Time) any) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.EmployeeID != nil {
		conds = append(conds, "a.employee_id = ?")
		args = append(args, *f.EmployeeID)
	}
	if len(f.Actions) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(f.Actions)), ", ")
		conds = append(conds, "a.action IN ("+marks+")")
		for _, a := range f.Actions {
			args = append(args, string(a))
		}
	}
	if !f.Since.IsZero() {
		conds = append(conds, "a.created_at >= ?")
		args = append(args, timeArg(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "a.created_at < ?")
		args = append(args, timeArg(f.Until))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, `(a.details LIKE ? ESCAPE '!' OR a.ip_address LIKE ? ESCAPE '!'
			OR e.first_name LIKE ? ESCAPE '!' OR e.last_name LIKE ? ESCAPE '!')`)
		pattern := "%" + likeEscaper.Replace(s) + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// EmployeeName joins the name columns of an audit row. Anonymous entries
// have neither.
func EmployeeName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
