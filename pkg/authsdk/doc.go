/*
Package authsdk is the Go client for the CRM authentication service, and
the home of the wire types the server encodes.

# Overview

The service hands out three encodings of the same access token (HS256,
RS256 and an encrypted JWE) plus a refresh token recorded server side.
Access tokens are short lived: two minutes for staff, five for managers.

	client := authsdk.NewClient("https://crm.example.com")

	login, err := client.Login(ctx, "jane.doe@example.com", "Sales2024!")
	if err != nil {
		return err
	}

	// Call a protected endpoint with any of the encodings
	res, err := client.Protected(ctx, jwtx.KindEncrypted, login.Tokens.EncryptedToken)

	// Get a new access token when the old one expires
	refreshed, err := client.Refresh(ctx, login.Tokens.RefreshToken)

	// Revoke the refresh token
	err = client.Logout(ctx, login.Tokens.AccessToken, login.Tokens.RefreshToken)

The client keeps no state; storing and refreshing tokens is up to the
caller.

# Error Handling

Every non-2xx response comes back as an *APIError. APIError.Is compares
codes, so the predefined values can be used with errors.Is:

	_, err := client.Login(ctx, email, password)
	switch {
	case errors.Is(err, authsdk.ErrAccountLocked):
		// ask an administrator
	case errors.Is(err, authsdk.ErrInvalidCredentials):
		// try again
	}

A rejected password change lists the rules that were broken:

	err := client.ChangePassword(ctx, access, current, next)
	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodePasswordPolicy {
		for _, rule := range apiErr.Requirements {
			fmt.Println(rule)
		}
	}

A successful password change revokes every refresh token of the
employee, including the one the caller holds.

# Verifying RS256 Tokens Offline

PublicKey and GetJWKS return the RSA key the service signs with:

	jwk, err := client.PublicKey(ctx)
	keys := jwtx.NewKeySet()
	_ = keys.AddJWK(*jwk)
	verifier, err := jwtx.NewRS256Verifier(keys, "crm-auth")
	claims, err := verifier.Verify(login.Tokens.SignedToken)
*/
package authsdk
