package http

import (
	"net/http"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
)

// IntrospectHandler serves POST /oauth/introspect following RFC 7662. A
// client only learns about its own tokens; anything else is inactive.
type IntrospectHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection Endpoint
//	@Description	Reports whether an access or refresh token of the authenticated client is active (RFC 7662).
//	@Description	Inactive tokens return only {"active": false}.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string							true	"The token to introspect"
//	@Param			token_type_hint	formData	string							false	"Ignored; both token types are looked up"
//	@Success		200				{object}	authsdk.IntrospectionResponse	"Token introspection result"
//	@Failure		400				{object}	authsdk.ErrorResponse			"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse			"invalid_client"
//	@Header			200				{string}	Cache-Control					"no-store"
//	@Header			200				{string}	Pragma							"no-cache"
//	@Router			/oauth/introspect [post]
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseTokenForm(w, r) {
		return
	}

	auth, authErr := clientAuthFromRequest(r)
	if authErr != nil {
		authErr.WriteError(w)
		return
	}

	info, err := h.TokenService.Introspect(r.Context(), auth, r.PostForm.Get("token"))
	if err != nil {
		writeError(w, r, "introspect", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.IntrospectionResponse{
		Active:    info.Active,
		Scope:     info.Scope,
		ClientID:  info.ClientID,
		Username:  info.Username,
		TokenType: info.TokenType,
		Exp:       info.Exp,
		Sub:       info.Sub,
	})
}
