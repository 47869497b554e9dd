/*
Package authsdk is the relying-party SDK for SEKAI Pass.

A Client drives the authorization-code grant against a SEKAI Pass server:

	c := authsdk.NewClient("https://pass.example.com", "app1",
		"https://app.example.com/cb", authsdk.ClientSecret{Secret: secret})

	pkce, _ := authsdk.NewPKCE()
	http.Redirect(w, r, c.AuthorizeURL(state, []string{"profile"}, pkce), http.StatusFound)

	// in the redirect handler
	tok, err := c.ExchangeCode(ctx, r.URL.Query().Get("code"), pkce.Verifier)
	info, err := c.UserInfo(ctx, tok.AccessToken)

Clients registered for private_key_jwt use PrivateKeyJWT instead of
ClientSecret. A new assertion with a fresh jti is signed for every request:

	signer, _ := jwtx.NewSignerFromPEM(jwtx.AlgES256, "", pemKey)
	c.Credentials = authsdk.PrivateKeyJWT{Signer: signer}

Every non-2xx response is returned as an *OAuth2Error. Compare with
errors.Is against the predefined values:

	if errors.Is(err, authsdk.ErrInvalidGrant) {
		// code already used or expired; restart the flow
	}

The same error values are written by the server, so the wire format and the
SDK cannot drift apart.
*/
package authsdk
