package http

import (
	"net/http"

	"github.com/aussiebroadwan/crm/pkg/authsdk"
	"github.com/aussiebroadwan/crm/pkg/httpx"
	"github.com/aussiebroadwan/crm/pkg/jwtx"
)

// JWKHandler exposes the RS256 verification key on its own.
//
//	@Summary		Get the public key
//	@Description	Returns the RSA public key that verifies signedToken values.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKResponse	"kid, use=sig, alg=RS256"
//	@Failure		404	{object}	authsdk.APIError	"RS256 is not configured"
//	@Router			/api/auth/jwk [get]
func JWKHandler(signer *jwtx.RS256Codec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if signer == nil {
			authsdk.ErrNotFound.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKResponse(signer.PublicJWK()))
	}
}

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify RS256 tokens. The set is empty when RS256 is not configured.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get]
func JWKSHandler(signer *jwtx.RS256Codec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks := jwtx.JWKS{Keys: []jwtx.JWK{}}
		if signer != nil {
			jwks = signer.Keys().PublicJWKS()
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(jwks))
	}
}
