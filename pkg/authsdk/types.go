package authsdk

import (
	"time"

	"github.com/aussiebroadwan/crm/pkg/jwtx"
)

// ============================================================================
// Auth Types
// ============================================================================

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" example:"jane.doe@example.com"`
	Password string `json:"password" example:"Sales2024!"`
}

// UserResponse describes the logged in employee.
type UserResponse struct {
	ID        int64  `json:"id" example:"42"`
	FirstName string `json:"firstName" example:"Jane"`
	LastName  string `json:"lastName" example:"Doe"`
	Email     string `json:"email" example:"jane.doe@example.com"`
	Title     string `json:"title" example:"Sales Manager"`
	IsManager bool   `json:"isManager" example:"true"`
}

// TokensResponse carries every token minted at login. SignedToken and
// EncryptedToken are omitted when the server has no key for them.
type TokensResponse struct {
	// AccessToken is the HS256 access token
	AccessToken string `json:"accessToken"`

	// SignedToken is the same claims signed with RS256
	SignedToken string `json:"signedToken,omitempty"`

	// EncryptedToken is the same claims as a dir + A256GCM JWE
	EncryptedToken string `json:"encryptedToken,omitempty"`

	// RefreshToken exchanges for new access tokens at /api/auth/refresh
	RefreshToken string `json:"refreshToken"`
}

// TokenInfo gives lifetimes in the compact form used in config, e.g. "5m"
// or "7d".
type TokenInfo struct {
	ExpiresIn        string `json:"expiresIn" example:"5m"`
	RefreshExpiresIn string `json:"refreshExpiresIn" example:"7d"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Message   string         `json:"message"`
	User      UserResponse   `json:"user"`
	Tokens    TokensResponse `json:"tokens"`
	TokenInfo TokenInfo      `json:"tokenInfo"`
}

// RefreshRequest is the body of POST /api/auth/refresh and /api/auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is returned by a successful refresh. RefreshToken is
// only present when the server rotates refresh tokens.
type RefreshResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    string `json:"expiresIn" example:"2m"`
}

// ChangePasswordRequest is the body of POST /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// MessageResponse is used by endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// PasswordRequirements describes the password policy for display.
type PasswordRequirements struct {
	MinLength     int      `json:"minLength" example:"6"`
	MaxLength     int      `json:"maxLength" example:"14"`
	MinCategories int      `json:"minCategories" example:"3"`
	Categories    []string `json:"categories"`
}

// PasswordRequirementsResponse wraps PasswordRequirements.
type PasswordRequirementsResponse struct {
	Requirements PasswordRequirements `json:"requirements"`
}

// ============================================================================
// Key Types
// ============================================================================

// JWKResponse is the single public key returned by GET /api/auth/jwk.
type JWKResponse jwtx.JWK

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify RS256 signatures.
type JWKSResponse jwtx.JWKS

// ============================================================================
// Protected Resource Types
// ============================================================================

// ProtectedResponse is returned by the token demo endpoints. User echoes
// the identity the token carried.
type ProtectedResponse struct {
	Message string        `json:"message"`
	Kind    jwtx.Kind     `json:"kind" example:"jwt"`
	User    jwtx.Identity `json:"user"`
}

// AuditEntry is one security event of the caller.
type AuditEntry struct {
	ID        string    `json:"id" example:"01HZY1W5V6A1N3R8T2C7K9M4QX"`
	Action    string    `json:"action" example:"LOGIN"`
	Details   string    `json:"details,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty" example:"192.0.2.10"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditTrailResponse lists the caller's most recent security events,
// newest first.
type AuditTrailResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// AuditLogEntry is one row of the manager audit view. The employee fields
// are empty when the actor could not be identified.
type AuditLogEntry struct {
	ID            string    `json:"id" example:"01HZY1W5V6A1N3R8T2C7K9M4QX"`
	EmployeeID    *int64    `json:"employeeId,omitempty" example:"42"`
	EmployeeName  string    `json:"employeeName,omitempty" example:"Jane Doe"`
	EmployeeEmail string    `json:"employeeEmail,omitempty" example:"jane.doe@example.com"`
	Action        string    `json:"action" example:"LOGIN_FAILED"`
	Details       string    `json:"details,omitempty"`
	IPAddress     string    `json:"ipAddress,omitempty" example:"192.0.2.10"`
	UserAgent     string    `json:"userAgent,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AuditLogsResponse is one page of GET /api/audit-logs. Total counts every
// match, not just this page.
type AuditLogsResponse struct {
	Logs  []AuditLogEntry `json:"logs"`
	Total int64           `json:"total"`
}

// AuditActionsResponse lists the actions present in the log.
type AuditActionsResponse struct {
	Actions []string `json:"actions"`
}

// SecurityEventsResponse lists recent failed logins, lockouts, rejected
// tokens and failed password changes.
type SecurityEventsResponse struct {
	Events []AuditLogEntry `json:"events"`
}

// ProfileUser is the caller as stored, not as their token describes them.
type ProfileUser struct {
	UserResponse
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}

// ProfileStats summarises the caller's audit trail over the last 30 days.
type ProfileStats struct {
	TotalActions int64      `json:"totalActions"`
	Logins       int64      `json:"logins"`
	FailedLogins int64      `json:"failedLogins"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}

// ProfileResponse is returned by GET /api/auth/profile.
type ProfileResponse struct {
	User  ProfileUser  `json:"user"`
	Stats ProfileStats `json:"stats"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains the status of individual components (readyz only)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates whether the RS256 key is loaded
	Signer string `json:"signer"`
}
