package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

// AuthorizeHandler serves the authorization endpoint. GET validates a request
// and describes it for the consent screen; POST records the user's answer.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Sessions         httpx.SessionAuthenticator
	Cookie           httpx.CookieConfig
}

// HandleGet godoc
//
//	@Summary		OAuth2 authorization endpoint (GET)
//	@Description	Validates an authorization request and returns what the consent screen shows.
//	@Description	The user must be logged in with a first-party session (cookie or Bearer token).
//	@Description
//	@Description	**Errors:**
//	@Description	- Unknown client or unregistered redirect_uri: 400 JSON, never a redirect
//	@Description	- Unsupported response_type or no usable scope: 302 to redirect_uri with error and state
//	@Description	- No session: 401 login_required
//	@Tags			OAuth2
//	@Produce		json
//	@Param			response_type			query		string						true	"Must be 'code'"	default(code)
//	@Param			client_id				query		string						true	"OAuth2 client identifier"
//	@Param			redirect_uri			query		string						true	"Callback URI, compared byte for byte with the registered ones"
//	@Param			scope					query		string						false	"Space-delimited list of scopes"	example("profile email")
//	@Param			state					query		string						false	"Opaque value returned unchanged"
//	@Param			nonce					query		string						false	"Opaque value stored with the code"
//	@Param			code_challenge			query		string						false	"PKCE code challenge (required for public clients)"	example("E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM")
//	@Param			code_challenge_method	query		string						false	"PKCE method (S256 or plain, defaults to plain)"	default(plain)	Enums(S256, plain)
//	@Success		200						{object}	authsdk.AuthorizeResponse	"Consent payload"
//	@Success		302						{string}	string						"Error redirect to redirect_uri"
//	@Failure		400						{object}	authsdk.ErrorResponse		"Invalid request"
//	@Failure		401						{object}	authsdk.ErrorResponse		"login_required or invalid_client"
//	@Router			/oauth/authorize [get]
func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	req := buildAuthorizeRequest(r.URL.Query())

	res, err := h.AuthorizeService.Authorize(r.Context(), req)
	if err != nil {
		h.handleAuthorizeError(w, r, req, err)
		return
	}

	if _, ok := h.resolveSession(r); !ok {
		authsdk.ErrLoginRequired.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.AuthorizeResponse{
		ClientID:            res.Client.ID,
		ClientName:          res.Client.Name,
		RedirectURI:         res.RedirectURI,
		Scope:               strings.Join(res.Scopes, " "),
		Scopes:              res.Scopes,
		State:               res.State,
		Nonce:               res.Nonce,
		CodeChallenge:       res.CodeChallenge,
		CodeChallengeMethod: res.CodeChallengeMethod,
	})
}

// HandlePost godoc
//
//	@Summary		OAuth2 authorization endpoint (POST)
//	@Description	Records consent for the authorization request carried in the form.
//	@Description	action=allow redirects to redirect_uri with a single-use code and state;
//	@Description	action=deny redirects with error=access_denied and state.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			action					formData	string					true	"Consent decision"	Enums(allow, deny)
//	@Param			response_type			formData	string					true	"Must be 'code'"
//	@Param			client_id				formData	string					true	"OAuth2 client identifier"
//	@Param			redirect_uri			formData	string					true	"Callback URI"
//	@Param			scope					formData	string					false	"Space-delimited list of scopes"
//	@Param			state					formData	string					false	"Opaque value returned unchanged"
//	@Param			nonce					formData	string					false	"Opaque value stored with the code"
//	@Param			code_challenge			formData	string					false	"PKCE code challenge"
//	@Param			code_challenge_method	formData	string					false	"PKCE method"	Enums(S256, plain)
//	@Success		302						{string}	string					"Redirect to redirect_uri"
//	@Failure		400						{object}	authsdk.ErrorResponse	"Invalid request"
//	@Failure		401						{object}	authsdk.ErrorResponse	"login_required"
//	@Router			/oauth/authorize [post]
func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	req := buildAuthorizeRequest(r.Form)

	var allow bool
	switch r.Form.Get("action") {
	case "allow":
		allow = true
	case "deny":
	default:
		authsdk.ErrInvalidRequest.WithDescription("action must be allow or deny").WriteError(w)
		return
	}

	p, ok := h.resolveSession(r)
	if !ok {
		authsdk.ErrLoginRequired.WriteError(w)
		return
	}

	res, err := h.AuthorizeService.Consent(r.Context(), service.ConsentRequest{
		AuthorizeRequest: req,
		UserID:           p.UserID,
		Allow:            allow,
	})
	if err != nil {
		h.handleAuthorizeError(w, r, req, err)
		return
	}

	slogx.FromContext(r.Context()).Info("authorization answered",
		"client_id", req.ClientID,
		"user_id", p.UserID,
		"allow", allow,
	)
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

func buildAuthorizeRequest(v url.Values) service.AuthorizeRequest {
	pick := func(key string) string { return strings.TrimSpace(v.Get(key)) }

	return service.AuthorizeRequest{
		ResponseType: pick("response_type"),
		ClientID:     pick("client_id"),
		// Compared byte for byte; no trimming.
		RedirectURI:         v.Get("redirect_uri"),
		Scope:               httpx.ParseSpaceDelimitedFields(v.Get("scope")),
		State:               v.Get("state"),
		Nonce:               v.Get("nonce"),
		CodeChallenge:       pick("code_challenge"),
		CodeChallengeMethod: pick("code_challenge_method"),
	}
}

// handleAuthorizeError redirects only errors raised after the client and
// redirect URI were verified. RFC 6749 section 4.1.2.1: an untrusted
// redirect URI must never be followed.
func (h *AuthorizeHandler) handleAuthorizeError(w http.ResponseWriter, r *http.Request, req service.AuthorizeRequest, err error) {
	if errors.Is(err, service.ErrUnsupportedResponseType) || errors.Is(err, service.ErrInvalidScope) {
		http.Redirect(w, r, service.RedirectError(req.RedirectURI, err, req.State), http.StatusFound)
		return
	}

	slogx.FromContext(r.Context()).Debug("authorize request rejected", "client_id", req.ClientID, "err", err)
	writeError(w, r, "authorize", err)
}

// resolveSession finds the user's first-party session. Tokens issued to
// OAuth clients cannot grant consent.
func (h *AuthorizeHandler) resolveSession(r *http.Request) (httpx.Principal, bool) {
	token := httpx.BearerToken(r)
	if token == "" {
		token = httpx.SessionCookieValue(r, h.Cookie)
	}
	if token == "" {
		return httpx.Principal{}, false
	}

	p, err := h.Sessions.AuthenticateSession(r.Context(), token)
	if err != nil {
		if !errors.Is(err, httpx.ErrNoSession) {
			slogx.FromContext(r.Context()).Error("session lookup failed", "err", err)
		}
		return httpx.Principal{}, false
	}
	if !p.FirstParty() {
		return httpx.Principal{}, false
	}
	return p, true
}
