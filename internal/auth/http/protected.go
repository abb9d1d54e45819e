package http

import (
	"net/http"

	"github.com/aussiebroadwan/crm/pkg/authsdk"
	"github.com/aussiebroadwan/crm/pkg/httpx"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
)

// ProtectedHandler godoc
//
//	@Summary		Token demo endpoints
//	@Description	Each endpoint only accepts its own token encoding: jwt-protected takes the HS256 access token, jws-protected the RS256 one and jwe-protected the encrypted one.
//	@Tags			Protected
//	@Security		BearerAuth
//	@Produce		json
//	@Param			kind	path		string	true	"Token kind"	Enums(jwt, jws, jwe)
//	@Success		200		{object}	authsdk.ProtectedResponse
//	@Failure		401		{object}	authsdk.APIError	"invalid_token"
//	@Router			/api/protected/{kind}-protected [get]
func ProtectedHandler(kind jwtx.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.ClaimsFromContext(r.Context())
		if !ok {
			authsdk.ErrInvalidToken.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.ProtectedResponse{
			Message: "access granted with " + string(kind),
			Kind:    kind,
			User:    claims.Identity,
		})
	}
}

// ManagerHandler godoc
//
//	@Summary		Manager only endpoint
//	@Description	Answers only to HS256 access tokens whose isManager claim is true.
//	@Tags			Protected
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ProtectedResponse
//	@Failure		401	{object}	authsdk.APIError	"invalid_token"
//	@Failure		403	{object}	authsdk.APIError	"insufficient_role"
//	@Router			/api/protected/manager [get]
func ManagerHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ProtectedResponse{
		Message: "access granted for managers",
		Kind:    jwtx.KindSymmetric,
		User:    claims.Identity,
	})
}
