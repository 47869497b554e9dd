package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

// errorMap pairs service sentinels with their wire errors. Order matters:
// the first match wins.
var errorMap = []struct {
	err    error
	wire   *authsdk.OAuth2Error
	detail bool // expose the wrapped message as error_description
}{
	{service.ErrRedirectURIMismatch, authsdk.ErrRedirectURIMismatch, false},
	{service.ErrInvalidRequest, authsdk.ErrInvalidRequest, true},
	{service.ErrInvalidClient, authsdk.ErrInvalidClient, false},
	{service.ErrInvalidGrant, authsdk.ErrInvalidGrant, false},
	{service.ErrInvalidScope, authsdk.ErrInvalidScope, true},
	{service.ErrUnauthorized, authsdk.ErrInvalidToken, false},
	{service.ErrUnsupportedGrantType, authsdk.ErrUnsupportedGrantType, false},
	{service.ErrUnsupportedResponseType, authsdk.ErrUnsupportedResponseType, false},
	{service.ErrAccessDenied, authsdk.ErrAccessDenied, false},

	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials, false},
	{service.ErrMFARequired, authsdk.ErrMFARequired, false},
	{service.ErrInvalidTOTPCode, authsdk.ErrInvalidCredentials.WithDescription("invalid one-time code"), false},
	{service.ErrUserExists, authsdk.ErrConflict.WithDescription(service.ErrUserExists.Error()), false},
	{service.ErrWeakPassword, authsdk.ErrInvalidRequest.WithDescription(service.ErrWeakPassword.Error()), false},
	{service.ErrInvalidProfile, authsdk.ErrInvalidRequest, true},
	{service.ErrMFANotEnrolled, authsdk.ErrInvalidRequest.WithDescription("no pending TOTP enrollment"), false},
	{service.ErrMFANotEnabled, authsdk.ErrInvalidRequest.WithDescription(service.ErrMFANotEnabled.Error()), false},
	{service.ErrMFAAlreadyEnabled, authsdk.ErrConflict.WithDescription(service.ErrMFAAlreadyEnabled.Error()), false},
}

// wireError maps err to the response body. Unknown errors become
// server_error.
func wireError(err error) *authsdk.OAuth2Error {
	for _, m := range errorMap {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.detail {
			if desc := describe(err, m.err); desc != "" {
				return m.wire.WithDescription(desc)
			}
		}
		return m.wire
	}
	return authsdk.ErrServerError
}

// describe strips the sentinel prefix from a "%w: detail" error.
func describe(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if !strings.HasPrefix(msg, prefix) {
		return ""
	}
	return strings.TrimPrefix(msg, prefix)
}

// writeError writes the wire form of err. server_error is logged with the
// cause; the client never sees it.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	wire := wireError(err)
	if wire == authsdk.ErrServerError {
		slogx.FromContext(r.Context()).Error(op+" failed", "err", err)
	}
	wire.WriteError(w)
}
