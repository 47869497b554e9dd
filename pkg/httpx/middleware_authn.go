package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

// ErrNoSession is returned by a SessionAuthenticator when the token does not
// name a live session.
var ErrNoSession = errors.New("httpx: no session")

// SessionAuthenticator resolves an opaque session token.
type SessionAuthenticator interface {
	AuthenticateSession(ctx context.Context, token string) (Principal, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if len(authz) < 7 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

// AuthnMiddleware requires a live session, taken from the bearer header or
// the session cookie. Cookie sessions that were just renewed get a fresh
// cookie.
func AuthnMiddleware(a SessionAuthenticator, cookie CookieConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			token, fromCookie := BearerToken(r), false
			if token == "" {
				token, fromCookie = SessionCookieValue(r, cookie), true
			}
			if token == "" {
				writeBearerError(w, "missing session")
				return
			}

			p, err := a.AuthenticateSession(ctx, token)
			if err != nil {
				if !errors.Is(err, ErrNoSession) {
					log.Error("session lookup failed", "err", err)
					WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
					return
				}
				if fromCookie {
					ClearSessionCookie(w, cookie)
				}
				writeBearerError(w, "session invalid or expired")
				return
			}

			if p.Fresh && fromCookie {
				SetSessionCookie(w, cookie, token, p.ExpiresAt)
			}

			ctx = slogx.WithContext(WithSession(ctx, p), log.With("user_id", p.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireFirstParty rejects sessions that were issued to an OAuth client.
// Account management is only reachable with the user's own login session.
func RequireFirstParty(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := SessionFromContext(r.Context())
		if !ok {
			writeBearerError(w, "missing session")
			return
		}
		if !p.FirstParty() {
			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
			WriteJSON(w, http.StatusForbidden, map[string]string{
				"error":             "insufficient_scope",
				"error_description": "this endpoint requires a first-party session",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RFC 6750 error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
