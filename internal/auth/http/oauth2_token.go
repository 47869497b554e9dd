package http

import (
	"net/http"
	"strings"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

// TokenHandler serves POST /oauth/token.
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Redeems an authorization code or rotates a refresh token. The client authenticates with
//	@Description	client_secret_post, client_secret_basic or private_key_jwt (RFC 7523). A code is single use:
//	@Description	of concurrent redemptions exactly one succeeds.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type				formData	string					true	"Grant type"	Enums(authorization_code, refresh_token)
//	@Param			code					formData	string					false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri			formData	string					false	"Must equal the authorization request's redirect_uri when sent"
//	@Param			code_verifier			formData	string					false	"PKCE code_verifier (required when PKCE was used)"
//	@Param			refresh_token			formData	string					false	"Refresh token (refresh_token grant)"
//	@Param			scope					formData	string					false	"Narrower scope (refresh_token grant)"
//	@Param			client_id				formData	string					false	"Client identifier (unless sent with HTTP Basic)"
//	@Param			client_secret			formData	string					false	"client_secret_post"
//	@Param			client_assertion_type	formData	string					false	"urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
//	@Param			client_assertion		formData	string					false	"Signed JWT (private_key_jwt)"
//	@Success		200						{object}	authsdk.TokenResponse	"access_token, token_type, expires_in, refresh_token, scope"
//	@Failure		400						{object}	authsdk.ErrorResponse	"invalid_request, invalid_grant, unsupported_grant_type"
//	@Failure		401						{object}	authsdk.ErrorResponse	"invalid_client"
//	@Failure		500						{object}	authsdk.ErrorResponse	"server_error"
//	@Header			200						{string}	Cache-Control			"no-store"
//	@Header			200						{string}	Pragma					"no-cache"
//	@Router			/oauth/token [post]
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseTokenForm(w, r) {
		return
	}
	grantType := r.PostForm.Get("grant_type")
	r = r.WithContext(slogx.With(r.Context(), "grant_type", grantType))

	switch grantType {
	case service.GrantAuthorizationCode:
		h.handleAuthorizationCodeGrant(w, r)
	case service.GrantRefreshToken:
		h.handleRefreshGrant(w, r)
	case "":
		authsdk.ErrInvalidRequest.WithDescription("grant_type is required").WriteError(w)
	default:
		authsdk.ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	auth, authErr := clientAuthFromRequest(r)
	if authErr != nil {
		authErr.WriteError(w)
		return
	}

	form := r.PostForm
	resp, err := h.TokenService.ExchangeAuthorizationCode(r.Context(), service.CodeExchange{
		Client:       auth,
		Code:         form.Get("code"),
		RedirectURI:  form.Get("redirect_uri"),
		CodeVerifier: strings.TrimSpace(form.Get("code_verifier")),
	})
	if err != nil {
		writeError(w, r, "authorization_code grant", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(resp.AccessToken, resp.RefreshToken, resp.TokenType, resp.Scope, resp.ExpiresIn))
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	auth, authErr := clientAuthFromRequest(r)
	if authErr != nil {
		authErr.WriteError(w)
		return
	}

	form := r.PostForm
	resp, err := h.TokenService.ExchangeRefreshToken(r.Context(), service.RefreshExchange{
		Client:       auth,
		RefreshToken: form.Get("refresh_token"),
		Scope:        httpx.ParseSpaceDelimitedFields(form.Get("scope")),
	})
	if err != nil {
		writeError(w, r, "refresh_token grant", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(resp.AccessToken, resp.RefreshToken, resp.TokenType, resp.Scope, resp.ExpiresIn))
}

func tokenResponse(access, refresh, tokenType, scope string, expiresIn int64) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  access,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: refresh,
		Scope:        strings.TrimSpace(scope),
	}
}
