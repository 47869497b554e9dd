package http

import (
	"net/http"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

// AccountHandler serves the first-party account API under /auth.
type AccountHandler struct {
	UserService    *service.UserService
	SessionService *service.SessionService
	Cookie         httpx.CookieConfig
}

func userResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		MFAEnabled:  u.MFAEnabled(),
		CreatedAt:   u.CreatedAt.Unix(),
	}
}

// writeLogin sets the session cookie and returns the token in the body for
// non-browser callers.
func (h *AccountHandler) writeLogin(w http.ResponseWriter, status int, res *service.LoginResult) {
	httpx.SetSessionCookie(w, h.Cookie, res.Token, res.Session.ExpiresAt)
	httpx.WriteJSON(w, status, authsdk.LoginResponse{
		SessionToken: res.Token,
		ExpiresAt:    res.Session.ExpiresAt.Unix(),
		User:         userResponse(res.User),
	})
}

// HandleRegister godoc
//
//	@Summary		Register an account
//	@Description	Creates a user and logs it in. Usernames and emails are unique; passwords need at least 8 characters.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"New account"
//	@Success		201		{object}	authsdk.LoginResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		409		{object}	authsdk.ErrorResponse	"username or email taken"
//	@Failure		429		{object}	authsdk.ErrorResponse
//	@Router			/auth/register [post]
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return
	}

	res, err := h.UserService.Register(r.Context(), service.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(w, r, "register", err)
		return
	}

	h.writeLogin(w, http.StatusCreated, res)
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Checks the password, and the TOTP code once MFA is enabled, and starts a 30 day session.
//	@Description	The session token is set as the sekaipass_session cookie and returned in the body.
//	@Description	A missing otp for an MFA account yields 401 mfa_required.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials or mfa_required"
//	@Failure		429		{object}	authsdk.ErrorResponse
//	@Router			/auth/login [post]
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return
	}

	res, err := h.UserService.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
		OTP:      req.OTP,
	})
	if err != nil {
		writeError(w, r, "login", err)
		return
	}

	h.writeLogin(w, http.StatusOK, res)
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Deletes the session named by the cookie or bearer token and clears the cookie. Always 204.
//	@Tags			Account
//	@Success		204
//	@Router			/auth/logout [post]
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := httpx.BearerToken(r)
	if token == "" {
		token = httpx.SessionCookieValue(r, h.Cookie)
	}
	if err := h.SessionService.InvalidateSession(r.Context(), token); err != nil {
		slogx.FromContext(r.Context()).Error("logout failed", "err", err)
	}

	httpx.ClearSessionCookie(w, h.Cookie)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe godoc
//
//	@Summary		Current account
//	@Tags			Account
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Failure		403	{object}	authsdk.ErrorResponse	"session was issued to an OAuth client"
//	@Router			/auth/me [get]
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.UserService.GetUserByID(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, "get user", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponse(user))
}

// HandleUpdateProfile godoc
//
//	@Summary		Update profile
//	@Description	Sets display_name (at most 50 characters) and avatar_url (absolute http(s), at most 500 characters). Empty values clear the field.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.UpdateProfileRequest	true	"Profile"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Router			/auth/profile [put]
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req authsdk.UpdateProfileRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return
	}

	user, err := h.UserService.UpdateProfile(r.Context(), httpx.UserIDFromContext(r.Context()), req.DisplayName, req.AvatarURL)
	if err != nil {
		writeError(w, r, "update profile", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, userResponse(user))
}

// HandleChangePassword godoc
//
//	@Summary		Change password
//	@Description	Replaces the password. Every other session and all refresh tokens of the account are revoked.
//	@Tags			Account
//	@Accept			json
//	@Security		BearerAuth
//	@Param			request	body	authsdk.ChangePasswordRequest	true	"Passwords"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"current password wrong"
//	@Router			/auth/password [post]
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WithDescription("invalid JSON body").WriteError(w)
		return
	}

	current := httpx.BearerToken(r)
	if current == "" {
		current = httpx.SessionCookieValue(r, h.Cookie)
	}

	err := h.UserService.ChangePassword(r.Context(), httpx.UserIDFromContext(r.Context()),
		req.CurrentPassword, req.NewPassword, current)
	if err != nil {
		writeError(w, r, "change password", err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
