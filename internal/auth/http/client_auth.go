package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
)

// clientAuthFromRequest reads client credentials from a parsed form and the
// Authorization header. Exactly one method may be used.
func clientAuthFromRequest(r *http.Request) (service.ClientAuth, *authsdk.OAuth2Error) {
	form := r.PostForm
	clientID := strings.TrimSpace(form.Get("client_id"))
	assertion := form.Get("client_assertion")
	secret := form.Get("client_secret")

	user, pass, hasBasic := r.BasicAuth()

	methods := 0
	for _, used := range []bool{hasBasic, secret != "", assertion != ""} {
		if used {
			methods++
		}
	}
	if methods > 1 {
		return nil, authsdk.ErrInvalidRequest.WithDescription("more than one client authentication method used")
	}

	switch {
	case hasBasic:
		// RFC 6749 section 2.3.1: both halves are form-encoded.
		id, err1 := url.QueryUnescape(user)
		sec, err2 := url.QueryUnescape(pass)
		if err1 != nil || err2 != nil {
			return nil, authsdk.ErrInvalidClient
		}
		if clientID != "" && clientID != id {
			return nil, authsdk.ErrInvalidRequest.WithDescription("client_id does not match the Authorization header")
		}
		return service.SecretAuth{ClientID: id, Secret: sec, Basic: true}, nil

	case assertion != "":
		// RFC 7523 section 3: client_id is optional. Verification still
		// requires iss and sub to equal the client it names.
		if clientID == "" {
			clientID = jwtx.UnverifiedIssuer(assertion)
		}
		return service.AssertionAuth{
			ClientID:      clientID,
			AssertionType: form.Get("client_assertion_type"),
			Assertion:     assertion,
		}, nil

	default:
		// A bare client_id (public client) reaches the authenticator as a
		// secret auth with no secret and is rejected there.
		return service.SecretAuth{ClientID: clientID, Secret: secret}, nil
	}
}

// parseTokenForm enforces the form content type on back-channel endpoints.
func parseTokenForm(w http.ResponseWriter, r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return false
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return false
	}
	return true
}
