package domain

import "time"

// AuthorizationCode is a single-use grant bound to a user, client and
// redirect URI. Only its fingerprint is stored and it is deleted on
// redemption.
type AuthorizationCode struct {
	CodeHash            string
	UserID              string
	ClientID            string
	RedirectURI         string
	Scopes              []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	CreatedAt           time.Time
}
