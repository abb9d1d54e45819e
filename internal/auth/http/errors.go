package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/crm/internal/auth/service"
	"github.com/aussiebroadwan/crm/pkg/authsdk"
	"github.com/aussiebroadwan/crm/pkg/slogx"
)

// writeServiceError maps the service error taxonomy onto API errors.
// Anything outside it is logged and reported as a server error.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var policy *service.PasswordPolicyError

	switch {
	case errors.As(err, &policy):
		authsdk.ErrPasswordPolicy.WithRequirements(policy.Violations).WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrAccountLocked):
		authsdk.ErrAccountLocked.WriteError(w)
	case errors.Is(err, service.ErrInvalidToken):
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrPasswordPolicy):
		authsdk.ErrPasswordPolicy.WriteError(w)
	case errors.Is(err, service.ErrPasswordReused):
		authsdk.ErrPasswordReused.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error(op+" failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

// writeValidationError answers a body that failed Validate.
func writeValidationError(w http.ResponseWriter, err error) {
	authsdk.ErrInvalidRequest.WithDetails(authsdk.ValidationDetails(err)).WriteError(w)
}
