package domain

import (
	"strings"
	"time"
)

// Role is the explicit authorisation role stored on an employee.
type Role string

const (
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"

	// RoleUnset means the row predates the role column. See ManagerStatus.
	RoleUnset Role = ""
)

// ParseRole accepts the role names used by the CLI. Empty stays unset.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleManager, RoleStaff, RoleUnset:
		return r, true
	}
	return RoleUnset, false
}

type Employee struct {
	ID                  int64
	Email               string // stored lower-cased
	FirstName           string
	LastName            string
	Title               string
	Role                Role
	PasswordHash        string // argon2 encoded
	FailedLoginAttempts int
	AccountLocked       bool
	LastActivity        *time.Time
	LastPasswordChange  *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsManager reports whether the employee gets manager privileges.
func (e Employee) IsManager() bool {
	manager, _ := e.ManagerStatus()
	return manager
}

// ManagerStatus decides manager status from the explicit role. Rows without
// a role fall back to the legacy rule of looking for "manager" in the job
// title; fromTitle tells the caller that happened so it can be logged and
// the row backfilled.
func (e Employee) ManagerStatus() (manager bool, fromTitle bool) {
	if e.Role != RoleUnset {
		return e.Role == RoleManager, false
	}
	return strings.Contains(strings.ToLower(e.Title), "manager"), true
}

// NormalizeEmail is how emails are compared and stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordHistoryEntry is a previous password hash kept to stop reuse.
type PasswordHistoryEntry struct {
	EmployeeID   int64
	PasswordHash string
	ChangedAt    time.Time
}
