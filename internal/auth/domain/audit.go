package domain

import (
	"time"

	"github.com/aussiebroadwan/crm/pkg/idx"
)

type AuditAction string

const (
	AuditLogin                AuditAction = "LOGIN"
	AuditLoginFailed          AuditAction = "LOGIN_FAILED"
	AuditLogout               AuditAction = "LOGOUT"
	AuditPasswordChange       AuditAction = "PASSWORD_CHANGE"
	AuditPasswordChangeFailed AuditAction = "PASSWORD_CHANGE_FAILED"
	AuditTokenRefresh         AuditAction = "TOKEN_REFRESH"
	AuditUnauthorizedAccess   AuditAction = "UNAUTHORIZED_ACCESS"
	AuditAccountLocked        AuditAction = "ACCOUNT_LOCKED"
	AuditSessionTimeout       AuditAction = "SESSION_TIMEOUT"
)

// AuditEntry is one security event. EmployeeID is nil when the actor could
// not be identified (unknown email, bad token).
type AuditEntry struct {
	ID         idx.ID
	EmployeeID *int64
	Action     AuditAction
	Details    string
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// ClientInfo describes where a request came from, for auditing.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// SecurityActions are the events a security review looks at.
var SecurityActions = []AuditAction{
	AuditLoginFailed,
	AuditUnauthorizedAccess,
	AuditAccountLocked,
	AuditPasswordChangeFailed,
}

// AuditFilter narrows an audit query. Zero fields do not filter. Search
// matches details, address and employee name. Until is exclusive.
type AuditFilter struct {
	EmployeeID *int64
	Actions    []AuditAction
	Since      time.Time
	Until      time.Time
	Search     string

	// Limit <= 0 means no limit.
	Limit  int
	Offset int
}

// AuditRecord is an entry joined with the employee it belongs to. The
// employee fields are empty for anonymous entries.
type AuditRecord struct {
	AuditEntry
	EmployeeName  string
	EmployeeEmail string
}

// AuditStats summarises an employee's activity over a window.
type AuditStats struct {
	TotalActions int64
	Logins       int64
	FailedLogins int64
	LastActivity *time.Time
}
