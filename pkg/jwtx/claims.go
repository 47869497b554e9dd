package jwtx

import (
	"time"

	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// AssertionType is the client_assertion_type value for RFC 7523 client
	// authentication.
	AssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	// DefaultAssertionLifetime is the exp - iat window BuildAssertion uses.
	DefaultAssertionLifetime = 5 * time.Minute
)

// AssertionClaims are the claims a client signs to prove possession of its
// registered key. iss and sub both carry the client id.
type AssertionClaims struct {
	jwt.RegisteredClaims
}

// NewAssertionClaims builds claims for a single token request. The jti is a
// fresh 128-bit random value.
func NewAssertionClaims(clientID, audience string, now time.Time) (AssertionClaims, error) {
	jti, err := NewJTI()
	if err != nil {
		return AssertionClaims{}, err
	}
	now = now.UTC()
	return AssertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    clientID,
			Subject:   clientID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(DefaultAssertionLifetime)),
			ID:        jti,
		},
	}, nil
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() (string, error) {
	return cryptox.GenerateToken(cryptox.TokenSize128)
}
