package authsdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/crm/pkg/authsdk"
	"github.com/aussiebroadwan/crm/pkg/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		authsdk.ErrPasswordPolicy.WithRequirements([]string{"too short"}).WriteError(w)
	}))
	t.Cleanup(srv.Close)

	err := authsdk.NewClient(srv.URL).ChangePassword(context.Background(), "access", "old", "new")
	require.ErrorIs(t, err, authsdk.ErrPasswordPolicy)
	require.NotErrorIs(t, err, authsdk.ErrPasswordReused)

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, []string{"too short"}, apiErr.Requirements)
}

func TestClientFallbackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream gone", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := authsdk.NewClient(srv.URL + "/").GetLiveness(context.Background())
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeServerError, apiErr.Code)
}

func TestClientLoginSendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req authsdk.LoginRequest
		assert.NoError(t, httpx.ReadJSON(w, r, &req))
		assert.Equal(t, "jane@example.com", req.Email)

		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
			User:   authsdk.UserResponse{ID: 9, Email: req.Email},
			Tokens: authsdk.TokensResponse{AccessToken: "a", RefreshToken: "r"},
		})
	}))
	t.Cleanup(srv.Close)

	res, err := authsdk.NewClient(srv.URL).Login(context.Background(), "jane@example.com", "Sales2024!")
	require.NoError(t, err)
	require.EqualValues(t, 9, res.User.ID)
	require.Equal(t, "r", res.Tokens.RefreshToken)
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		v      interface{ Validate() error }
		fields []string
	}{
		{"valid login", &authsdk.LoginRequest{Email: "a@example.com", Password: "x"}, nil},
		{"empty login", &authsdk.LoginRequest{}, []string{"email", "password"}},
		{"bad email", &authsdk.LoginRequest{Email: "not-an-email", Password: "x"}, []string{"email"}},
		{"blank refresh", &authsdk.RefreshRequest{RefreshToken: "   "}, []string{"refreshToken"}},
		{"missing new password", &authsdk.ChangePasswordRequest{CurrentPassword: "x"}, []string{"newPassword"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			details := authsdk.ValidationDetails(err)
			require.Len(t, details, len(tt.fields))
			for _, f := range tt.fields {
				require.Contains(t, details, f)
			}
		})
	}
}
