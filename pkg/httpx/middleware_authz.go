package httpx

import (
	"net/http"
)

// RequireManager only lets through callers whose access token says they
// are a manager. It must run after AuthnMiddleware.
func RequireManager() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !claims.IsManager {
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "insufficient_role",
					"error_description": "Manager role required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
