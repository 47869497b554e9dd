package http

import (
	"net/http"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
)

// RevokeHandler serves POST /oauth/revoke following RFC 7009. Access tokens
// (client sessions) and refresh tokens of the calling client can be revoked.
// Unknown tokens and tokens of other clients still return 200 OK so the
// endpoint cannot be used to probe for tokens.
type RevokeHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes an access or refresh token issued to the authenticated client (RFC 7009).
//	@Description	Returns 200 OK even for unknown tokens.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Success		200				"Token revoked (or was already invalid)"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"invalid_client"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/oauth/revoke [post]
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseTokenForm(w, r) {
		return
	}

	auth, authErr := clientAuthFromRequest(r)
	if authErr != nil {
		authErr.WriteError(w)
		return
	}

	err := h.TokenService.Revoke(r.Context(), auth, r.PostForm.Get("token"), r.PostForm.Get("token_type_hint"))
	if err != nil {
		writeError(w, r, "revoke", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}
