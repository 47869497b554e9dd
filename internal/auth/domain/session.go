package domain

import "time"

// Session is a server-side login session. The bearer token itself is never
// stored; IDHash is its fingerprint.
type Session struct {
	IDHash    string
	UserID    string
	ClientID  string   // empty for first-party sessions
	Scopes    []string // granted scopes for client sessions
	CreatedAt time.Time
	ExpiresAt time.Time

	// Fresh is true when the session was created or extended by the call
	// that returned it. It is not persisted.
	Fresh bool
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }
