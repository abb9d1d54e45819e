package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// parseSigned parses a compact JWS accepting exactly one algorithm, then
// runs the shared claim checks. The keyfunc picks the verification key.
func parseSigned(tokenStr string, method jwt.SigningMethod, issuer string, keyfunc jwt.Keyfunc) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{method.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, keyfunc)
	if err != nil {
		return nil, invalid(classify(token, method, err))
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, invalid(ErrInvalidClaim)
	}

	if err := validate(claims, issuer); err != nil {
		return nil, err
	}
	return claims, nil
}

// classify turns golang-jwt's errors into ours.
func classify(token *jwt.Token, method jwt.SigningMethod, err error) error {
	// WithValidMethods reports a wrong alg as a bad signature, look at the
	// header ourselves to tell the two apart.
	if token != nil && token.Method != nil && token.Method.Alg() != method.Alg() {
		return ErrAlgMismatch
	}

	switch {
	case errors.Is(err, ErrUnknownKID), errors.Is(err, ErrNoKey):
		return ErrUnknownKID
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrAlgMismatch
	default:
		return ErrInvalidClaim
	}
}
