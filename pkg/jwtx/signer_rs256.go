package jwtx

import (
	"crypto/rsa"
	"fmt"

	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// RS256Signer signs with RSASSA-PKCS1-v1_5 and SHA-256.
type RS256Signer struct {
	kid string
	key *rsa.PrivateKey
}

func newRS256Signer(kid string, key *rsa.PrivateKey) (*RS256Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil RSA key", ErrUnsupportedAlgorithm)
	}
	if key.N.BitLen() < cryptox.MinRSABits {
		return nil, fmt.Errorf("%w: RSA key is %d bits, need at least %d",
			ErrUnsupportedAlgorithm, key.N.BitLen(), cryptox.MinRSABits)
	}
	return &RS256Signer{kid: kid, key: key}, nil
}

func (s *RS256Signer) Alg() string { return AlgRS256 }
func (s *RS256Signer) KID() string { return s.kid }

// Sign serialises claims into a compact JWS.
func (s *RS256Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

// PublicJWK is what the client registers with the server.
func (s *RS256Signer) PublicJWK() jose.JSONWebKey {
	return PublicJWK(s.kid, AlgRS256, &s.key.PublicKey)
}
