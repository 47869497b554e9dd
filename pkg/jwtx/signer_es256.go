package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// ES256Signer signs with ECDSA P-256 and SHA-256. Signatures are the fixed
// 64 byte r||s encoding, never ASN.1 DER.
type ES256Signer struct {
	kid string
	key *ecdsa.PrivateKey
}

func newES256Signer(kid string, key *ecdsa.PrivateKey) (*ES256Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil ECDSA key", ErrUnsupportedAlgorithm)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: ES256 requires curve P-256, got %s", ErrUnsupportedAlgorithm, key.Curve.Params().Name)
	}
	return &ES256Signer{kid: kid, key: key}, nil
}

func (s *ES256Signer) Alg() string { return AlgES256 }
func (s *ES256Signer) KID() string { return s.kid }

// Sign serialises claims into a compact JWS.
func (s *ES256Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

// PublicJWK is what the client registers with the server.
func (s *ES256Signer) PublicJWK() jose.JSONWebKey {
	return PublicJWK(s.kid, AlgES256, &s.key.PublicKey)
}
