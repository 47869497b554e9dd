package http

import (
	"net/http"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

// MFAHandler manages TOTP second factors for the session's user.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleEnroll godoc
//
//	@Summary		Start TOTP enrollment
//	@Description	Generates a TOTP secret. It is not enforced at login until confirmed with /auth/mfa/totp/verify.
//	@Description	Enrolling again before verifying replaces the pending secret.
//	@Tags			MFA
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.TOTPEnrollResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Failure		409	{object}	authsdk.ErrorResponse	"MFA already enabled"
//	@Router			/auth/mfa/totp/enroll [post]
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enrollment, err := h.MFAService.EnrollTOTP(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeError(w, r, "totp enroll", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Secret:  enrollment.Secret,
		URL:     enrollment.URL,
		Issuer:  enrollment.Issuer,
		Account: enrollment.Account,
	})
}

// HandleVerify godoc
//
//	@Summary		Confirm TOTP enrollment
//	@Tags			MFA
//	@Accept			json
//	@Security		BearerAuth
//	@Param			request	body	authsdk.TOTPCodeRequest	true	"Current code"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"no pending enrollment"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid code"
//	@Router			/auth/mfa/totp/verify [post]
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.TOTPCodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Code == "" {
		authsdk.ErrInvalidRequest.WithDescription("code is required").WriteError(w)
		return
	}

	if err := h.MFAService.VerifyTOTP(ctx, httpx.UserIDFromContext(ctx), req.Code); err != nil {
		writeError(w, r, "totp verify", err)
		return
	}

	slogx.FromContext(ctx).Info("totp enabled")
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemove godoc
//
//	@Summary		Disable TOTP
//	@Description	Removes the second factor. A current code is required.
//	@Tags			MFA
//	@Accept			json
//	@Security		BearerAuth
//	@Param			request	body	authsdk.TOTPCodeRequest	true	"Current code"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"MFA not enabled"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid code"
//	@Router			/auth/mfa/totp [delete]
func (h *MFAHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.TOTPCodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Code == "" {
		authsdk.ErrInvalidRequest.WithDescription("code is required").WriteError(w)
		return
	}

	if err := h.MFAService.DisableTOTP(ctx, httpx.UserIDFromContext(ctx), req.Code); err != nil {
		writeError(w, r, "totp disable", err)
		return
	}

	slogx.FromContext(ctx).Info("totp disabled")
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
