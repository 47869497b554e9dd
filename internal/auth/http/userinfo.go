package http

import (
	"net/http"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
)

// UserInfoHandler serves GET /oauth/userinfo.
type UserInfoHandler struct {
	UserInfoService *service.UserInfoService
}

// ServeHTTP godoc
//
//	@Summary		Get user information
//	@Description	Returns the profile of the user behind a Bearer access token.
//	@Tags			OAuth2
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.UserInfoResponse	"id, username, email, display_name"
//	@Failure		401	{object}	authsdk.ErrorResponse		"invalid_token"
//	@Router			/oauth/userinfo [get]
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := httpx.BearerToken(r)
	if token == "" {
		authsdk.ErrInvalidToken.WithDescription("missing bearer token").WriteError(w)
		return
	}

	info, err := h.UserInfoService.UserInfo(r.Context(), token)
	if err != nil {
		writeError(w, r, "userinfo", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserInfoResponse{
		ID:          info.ID,
		Username:    info.Username,
		Email:       info.Email,
		DisplayName: info.DisplayName,
	})
}
