package httpx

import (
	"context"
	"time"
)

type ctxKey string

const ctxKeySession ctxKey = "session"

// Principal is the authenticated session a request runs under.
type Principal struct {
	UserID    string
	Username  string
	SessionID string // fingerprint, never the bearer token
	ClientID  string // empty for first-party sessions
	Scopes    []string
	ExpiresAt time.Time

	// Fresh is true when validation just extended the session; the
	// cookie should be re-issued with the new expiry.
	Fresh bool
}

// FirstParty reports whether the session was created by a direct login
// rather than by an OAuth code redemption.
func (p Principal) FirstParty() bool { return p.ClientID == "" }

// WithSession returns a copy of ctx carrying p.
func WithSession(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeySession, p)
}

// SessionFromContext returns the principal stored by WithSession.
func SessionFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeySession).(Principal)
	return p, ok
}

// UserIDFromContext returns the authenticated user id or "".
func UserIDFromContext(ctx context.Context) string {
	p, _ := SessionFromContext(ctx)
	return p.UserID
}
