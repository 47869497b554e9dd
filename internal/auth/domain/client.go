package domain

import (
	"slices"
	"time"
)

// Token endpoint authentication methods (RFC 8414 names).
const (
	AuthMethodSecretPost    = "client_secret_post"
	AuthMethodSecretBasic   = "client_secret_basic"
	AuthMethodPrivateKeyJWT = "private_key_jwt"
)

// Client is a registered OAuth application.
type Client struct {
	ID                      string
	Name                    string
	SecretHash              string // empty for private_key_jwt clients
	RedirectURIs            []string
	Scopes                  []string
	TokenEndpointAuthMethod string
	Keys                    []ClientKey
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// HasRedirectURI reports an exact, byte-for-byte match against the
// registered redirect URIs.
func (c Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// ActiveKeys returns the keys that have not been revoked.
func (c Client) ActiveKeys() []ClientKey {
	out := make([]ClientKey, 0, len(c.Keys))
	for _, k := range c.Keys {
		if k.RevokedAt == nil {
			out = append(out, k)
		}
	}
	return out
}

// ClientKey is a public key registered for private_key_jwt authentication.
type ClientKey struct {
	ID           string
	ClientID     string
	KeyID        string // JWK kid, RFC 7638 thumbprint unless given
	Algorithm    string // ES256 or RS256
	PublicKeyJWK string // JSON
	CreatedAt    time.Time
	RevokedAt    *time.Time
}
