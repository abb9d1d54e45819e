package authsdk

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/crm/pkg/jwtx"
)

// Login exchanges credentials for a token set.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var out RefreshResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/refresh", "", RefreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes refreshToken. accessToken is optional and only used to
// attribute the audit entry.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var out MessageResponse
	return c.call(ctx, http.MethodPost, "/api/auth/logout", accessToken, RefreshRequest{RefreshToken: refreshToken}, &out)
}

// ChangePassword sets a new password for the owner of accessToken. Every
// refresh token of the employee stops working afterwards.
func (c *Client) ChangePassword(ctx context.Context, accessToken, current, next string) error {
	var out MessageResponse
	return c.call(ctx, http.MethodPost, "/api/auth/change-password", accessToken,
		ChangePasswordRequest{CurrentPassword: current, NewPassword: next}, &out)
}

// PasswordRequirements fetches the password policy.
func (c *Client) PasswordRequirements(ctx context.Context) (*PasswordRequirements, error) {
	var out PasswordRequirementsResponse
	if err := c.call(ctx, http.MethodGet, "/api/auth/password-requirements", "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Requirements, nil
}

// PublicKey fetches the RS256 verification key.
func (c *Client) PublicKey(ctx context.Context) (*jwtx.JWK, error) {
	var out JWKResponse
	if err := c.call(ctx, http.MethodGet, "/api/auth/jwk", "", nil, &out); err != nil {
		return nil, err
	}
	jwk := jwtx.JWK(out)
	return &jwk, nil
}

// GetJWKS retrieves the JSON Web Key Set for token verification.
func (c *Client) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	var out JWKSResponse
	if err := c.call(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshKeys loads the published JWKS into keys, replacing whatever it
// held. Pair it with jwtx.NewRS256Verifier to check signed tokens without
// calling the service for every request.
func (c *Client) RefreshKeys(ctx context.Context, keys *jwtx.KeySet) error {
	jwks, err := c.GetJWKS(ctx)
	if err != nil {
		return err
	}
	return keys.ResetFromJWKS(jwtx.JWKS(*jwks))
}

// Protected calls the demo endpoint guarded by tokens of kind.
func (c *Client) Protected(ctx context.Context, kind jwtx.Kind, token string) (*ProtectedResponse, error) {
	var out ProtectedResponse
	if err := c.call(ctx, http.MethodGet, "/api/protected/"+string(kind)+"-protected", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Manager calls the manager-only endpoint.
func (c *Client) Manager(ctx context.Context, accessToken string) (*ProtectedResponse, error) {
	var out ProtectedResponse
	if err := c.call(ctx, http.MethodGet, "/api/protected/manager", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditTrail lists the caller's recent security events. A limit of zero
// uses the server default.
func (c *Client) AuditTrail(ctx context.Context, accessToken string, limit int) (*AuditTrailResponse, error) {
	path := "/api/audit/me"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out AuditTrailResponse
	if err := c.call(ctx, http.MethodGet, path, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile fetches the caller's stored profile and activity summary.
func (c *Client) Profile(ctx context.Context, accessToken string) (*ProfileResponse, error) {
	var out ProfileResponse
	if err := c.call(ctx, http.MethodGet, "/api/auth/profile", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditLogs searches the whole audit log. Managers only.
func (c *Client) AuditLogs(ctx context.Context, accessToken string, q AuditLogQuery) (*AuditLogsResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	path := "/api/audit-logs"
	if v := q.Values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out AuditLogsResponse
	if err := c.call(ctx, http.MethodGet, path, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditActions lists the actions present in the log. Managers only.
func (c *Client) AuditActions(ctx context.Context, accessToken string) ([]string, error) {
	var out AuditActionsResponse
	if err := c.call(ctx, http.MethodGet, "/api/audit-logs/actions", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out.Actions, nil
}

// SecurityEvents lists security relevant events of the last days. Zero
// days uses the server default of a week. Managers only.
func (c *Client) SecurityEvents(ctx context.Context, accessToken string, days int) (*SecurityEventsResponse, error) {
	path := "/api/audit-logs/security-events"
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	var out SecurityEventsResponse
	if err := c.call(ctx, http.MethodGet, path, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
