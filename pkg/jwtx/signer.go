package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// Supported assertion algorithms.
const (
	AlgES256 = "ES256"
	AlgRS256 = "RS256"
)

// ErrUnsupportedAlgorithm is returned for algorithm identifiers other than
// ES256 and RS256, and for keys that do not fit the requested algorithm.
var ErrUnsupportedAlgorithm = errors.New("jwtx: unsupported algorithm")

// Signer is anything that can sign client assertions.
type Signer interface {
	Alg() string
	KID() string
	Sign(jwt.Claims) (string, error)
	PublicJWK() jose.JSONWebKey
}

// NewAssertionSigner wraps key for alg. The key is checked against the
// algorithm here so a mismatch never reaches the signing step.
func NewAssertionSigner(alg, kid string, key crypto.Signer) (Signer, error) {
	switch alg {
	case AlgES256:
		ek, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: ES256 needs an ECDSA key, got %T", ErrUnsupportedAlgorithm, key)
		}
		return newES256Signer(kid, ek)
	case AlgRS256:
		rk, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: RS256 needs an RSA key, got %T", ErrUnsupportedAlgorithm, key)
		}
		return newRS256Signer(kid, rk)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// NewSignerFromPEM parses a private key PEM and wraps it with
// NewAssertionSigner. An empty kid defaults to the RFC 7638 thumbprint of the
// public key.
func NewSignerFromPEM(alg, kid string, pemKey []byte) (Signer, error) {
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, err
	}
	if kid == "" {
		kid, err = Thumbprint(key.Public())
		if err != nil {
			return nil, err
		}
	}
	return NewAssertionSigner(alg, kid, key)
}
