package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/crm/pkg/jwtx"
	"github.com/aussiebroadwan/crm/pkg/slogx"
)

// VerifierFunc checks a raw bearer token.
type VerifierFunc func(ctx context.Context, token string) (*jwtx.Claims, error)

// RejectFunc is told about every rejected request, e.g. to write an audit
// entry. It must not write to the response.
type RejectFunc func(r *http.Request, err error)

// AuthnMiddleware requires a valid bearer token and stores its claims in
// the request context. The response never says why a token was rejected.
func AuthnMiddleware(verify VerifierFunc, onReject RejectFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				if onReject != nil {
					onReject(r, errMissingBearer)
				}
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := verify(ctx, raw)
			if err != nil {
				log.Warn("bearer verify failed", "err", err, slogx.Fingerprint("token", raw))
				if onReject != nil {
					onReject(r, err)
				}
				writeBearerError(w, "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

type bearerError string

func (e bearerError) Error() string { return string(e) }

const errMissingBearer = bearerError("missing bearer token")

// BearerToken pulls the token out of an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(authz[len("Bearer "):])
	return raw, raw != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": "Invalid or expired token",
	})
}
