package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BuildAssertion signs a private_key_jwt client assertion for a single token
// request against audience, which is the token endpoint URL.
func BuildAssertion(clientID, audience string, signer Signer) (string, error) {
	return BuildAssertionAt(clientID, audience, signer, time.Now())
}

// BuildAssertionAt is BuildAssertion with an explicit issue time.
func BuildAssertionAt(clientID, audience string, signer Signer, now time.Time) (string, error) {
	if signer == nil {
		return "", errors.New("jwtx: nil signer")
	}
	if clientID == "" || audience == "" {
		return "", errors.New("jwtx: client id and audience are required")
	}
	switch signer.Alg() {
	case AlgES256, AlgRS256:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, signer.Alg())
	}

	claims, err := NewAssertionClaims(clientID, audience, now)
	if err != nil {
		return "", err
	}
	return signer.Sign(claims)
}

// UnverifiedIssuer reads iss from an assertion without checking anything.
// It only names the client whose keys will verify the assertion.
func UnverifiedIssuer(assertion string) string {
	var claims AssertionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(assertion, &claims); err != nil {
		return ""
	}
	return claims.Issuer
}
