package authsdk

import (
	"net/http"
	"net/url"

	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
)

// Credentials authenticate a client at the token, revocation and
// introspection endpoints.
type Credentials interface {
	applyForm(clientID, tokenEndpoint string, form url.Values) error
	applyRequest(clientID string, req *http.Request)
}

// NoCredentials sends only client_id. The server rejects it for every
// registered client; it exists for tests of that rejection.
type NoCredentials struct{}

func (NoCredentials) applyForm(clientID, _ string, form url.Values) error {
	form.Set("client_id", clientID)
	return nil
}

func (NoCredentials) applyRequest(string, *http.Request) {}

// ClientSecret is client_secret_post, or client_secret_basic when Basic is
// set.
type ClientSecret struct {
	Secret string
	Basic  bool
}

func (c ClientSecret) applyForm(clientID, _ string, form url.Values) error {
	if c.Basic {
		return nil
	}
	form.Set("client_id", clientID)
	form.Set("client_secret", c.Secret)
	return nil
}

func (c ClientSecret) applyRequest(clientID string, req *http.Request) {
	if c.Basic {
		// RFC 6749 section 2.3.1 form-encodes both halves.
		req.SetBasicAuth(url.QueryEscape(clientID), url.QueryEscape(c.Secret))
	}
}

// PrivateKeyJWT authenticates with a freshly signed RFC 7523 assertion per
// request. Audience defaults to the server's token endpoint URL, which is
// also the audience for revocation and introspection.
type PrivateKeyJWT struct {
	Signer   jwtx.Signer
	Audience string
}

func (p PrivateKeyJWT) applyForm(clientID, tokenEndpoint string, form url.Values) error {
	aud := p.Audience
	if aud == "" {
		aud = tokenEndpoint
	}
	assertion, err := jwtx.BuildAssertion(clientID, aud, p.Signer)
	if err != nil {
		return err
	}
	form.Set("client_id", clientID)
	form.Set("client_assertion_type", jwtx.AssertionType)
	form.Set("client_assertion", assertion)
	return nil
}

func (PrivateKeyJWT) applyRequest(string, *http.Request) {}
