package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/service"
	"github.com/aussiebroadwan/crm/pkg/authsdk"
	"github.com/aussiebroadwan/crm/pkg/httpx"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
	"github.com/aussiebroadwan/crm/pkg/slogx"
)

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	Auth service.Authenticator
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Authenticates an employee by email and password and returns the access token in all configured encodings plus a refresh token.
//	@Description	The fifth consecutive failure locks the account.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"user, tokens, tokenInfo"
//	@Failure		400		{object}	authsdk.APIError		"invalid_request"
//	@Failure		401		{object}	authsdk.APIError		"invalid_credentials"
//	@Failure		403		{object}	authsdk.APIError		"account_locked"
//	@Failure		429		{object}	authsdk.APIError		"rate_limit_exceeded"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/api/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	res, err := h.Auth.Login(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, "login", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		Message: "login successful",
		User: authsdk.UserResponse{
			ID:        res.Employee.ID,
			FirstName: res.Employee.FirstName,
			LastName:  res.Employee.LastName,
			Email:     res.Employee.Email,
			Title:     res.Employee.Title,
			IsManager: res.Identity.IsManager,
		},
		Tokens: authsdk.TokensResponse{
			AccessToken:    res.Tokens.AccessToken,
			SignedToken:    res.Tokens.SignedToken,
			EncryptedToken: res.Tokens.EncryptedToken,
			RefreshToken:   res.Tokens.RefreshToken,
		},
		TokenInfo: authsdk.TokenInfo{
			ExpiresIn:        jwtx.FormatLifetime(res.TokenInfo.ExpiresIn),
			RefreshExpiresIn: jwtx.FormatLifetime(res.TokenInfo.RefreshExpiresIn),
		},
	})
}

// Refresh godoc
//
//	@Summary		Refresh the access token
//	@Description	Exchanges a refresh token for a new HS256 access token. The refresh token must still be active server side.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.RefreshResponse	"accessToken, expiresIn"
//	@Failure		400		{object}	authsdk.APIError		"invalid_request"
//	@Failure		401		{object}	authsdk.APIError		"invalid_token"
//	@Router			/api/auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	res, err := h.Auth.Refresh(r.Context(), req.RefreshToken, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, "refresh", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RefreshResponse{
		Message:      "token refreshed",
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    jwtx.FormatLifetime(res.ExpiresIn),
	})
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Revokes the refresh token. Always answers 200, also for unknown or already revoked tokens.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	false	"Refresh token"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Router			/api/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		slogx.FromContext(r.Context()).Debug("logout without a readable body", "err", err)
	}

	_ = h.Auth.Logout(r.Context(), req.RefreshToken, clientInfo(r))
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "logged out"})
}

// ChangePassword godoc
//
//	@Summary		Change password
//	@Description	Sets a new password for the caller and revokes all of their refresh tokens.
//	@Description	The new password must be 6 to 14 characters, use 3 of 4 character classes and differ from the current and previous password.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.APIError	"invalid_request, password_policy (with requirements) or password_reused"
//	@Failure		401		{object}	authsdk.APIError	"invalid_token or invalid_credentials"
//	@Router			/api/auth/change-password [post]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.ChangePasswordRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	ctx := slogx.With(r.Context(), "employee_id", claims.UserID)
	if err := h.Auth.ChangePassword(ctx, claims.UserID, req.CurrentPassword, req.NewPassword, clientInfo(r)); err != nil {
		writeServiceError(w, r.WithContext(ctx), "change password", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{
		Message: "password changed, please log in again",
	})
}

// PasswordRequirements godoc
//
//	@Summary		Password requirements
//	@Description	Describes the password policy so clients can show it before the user picks one.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.PasswordRequirementsResponse
//	@Router			/api/auth/password-requirements [get]
func (h *AuthHandler) PasswordRequirements(w http.ResponseWriter, r *http.Request) {
	rules := service.PasswordRequirements()
	httpx.WriteJSON(w, http.StatusOK, authsdk.PasswordRequirementsResponse{
		Requirements: authsdk.PasswordRequirements{
			MinLength:     rules.MinLength,
			MaxLength:     rules.MaxLength,
			MinCategories: rules.MinCategories,
			Categories:    rules.Categories,
		},
	})
}

// AuditHandler serves GET /api/audit/me.
type AuditHandler struct {
	Auth service.Authenticator
}

// ServeHTTP godoc
//
//	@Summary		My security events
//	@Description	Lists the caller's most recent audit entries, newest first.
//	@Tags			Audit
//	@Security		BearerAuth
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum entries (1-100)"
//	@Success		200		{object}	authsdk.AuditTrailResponse
//	@Failure		400		{object}	authsdk.APIError	"invalid_request"
//	@Failure		401		{object}	authsdk.APIError	"invalid_token"
//	@Router			/api/audit/me [get]
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > service.MaxAuditPage {
			authsdk.ErrInvalidRequest.WithDetails(map[string]string{
				"limit": "must be between 1 and " + strconv.Itoa(service.MaxAuditPage),
			}).WriteError(w)
			return
		}
		limit = n
	}

	entries, err := h.Auth.AuditTrail(r.Context(), claims.UserID, limit)
	if err != nil {
		writeServiceError(w, r, "audit trail", err)
		return
	}

	out := authsdk.AuditTrailResponse{Entries: make([]authsdk.AuditEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, authsdk.AuditEntry{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			Details:   e.Details,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			CreatedAt: e.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// clientInfo is what the audit log records about the caller.
func clientInfo(r *http.Request) domain.ClientInfo {
	return domain.ClientInfo{
		IPAddress: httpx.IPKeyExtractor(r),
		UserAgent: r.UserAgent(),
	}
}
