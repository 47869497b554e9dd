package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/go-jose/go-jose/v4"
)

// ErrInvalidJWK is returned for JWKs that cannot serve as a client
// verification key.
var ErrInvalidJWK = errors.New("jwtx: invalid jwk")

// Key is a registered verification key with its algorithm pinned.
type Key struct {
	KID    string
	Alg    string
	Public crypto.PublicKey
}

// PublicJWK builds the JWK (RFC 7517) for a public key.
func PublicJWK(kid, alg string, pub crypto.PublicKey) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       pub,
		KeyID:     kid,
		Algorithm: alg,
		Use:       "sig",
	}
}

// Thumbprint computes the RFC 7638 SHA-256 thumbprint of a public key,
// base64url encoded. It is the default kid for registered keys.
func Thumbprint(pub crypto.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	sum, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("jwtx: thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}

// ParseJWK decodes a single public JWK. A missing alg is inferred from the
// key type, a missing kid becomes the thumbprint.
func ParseJWK(data []byte) (Key, error) {
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(data, &jwk); err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidJWK, err)
	}
	return KeyFromJWK(jwk)
}

// KeyFromJWK validates a decoded JWK and pins its algorithm.
func KeyFromJWK(jwk jose.JSONWebKey) (Key, error) {
	if !jwk.Valid() || !jwk.IsPublic() {
		return Key{}, fmt.Errorf("%w: expected a public key", ErrInvalidJWK)
	}
	if jwk.Use != "" && jwk.Use != "sig" {
		return Key{}, fmt.Errorf("%w: use %q", ErrInvalidJWK, jwk.Use)
	}

	alg, err := keyAlg(jwk.Algorithm, jwk.Key)
	if err != nil {
		return Key{}, err
	}

	kid := jwk.KeyID
	if kid == "" {
		if kid, err = Thumbprint(jwk.Key); err != nil {
			return Key{}, err
		}
	}
	return Key{KID: kid, Alg: alg, Public: jwk.Key}, nil
}

// JWK renders the key back into its JSON Web Key form.
func (k Key) JWK() jose.JSONWebKey {
	return PublicJWK(k.KID, k.Alg, k.Public)
}

// MarshalJSON encodes the key as a JWK.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.JWK())
}

func keyAlg(alg string, pub crypto.PublicKey) (string, error) {
	switch p := pub.(type) {
	case *ecdsa.PublicKey:
		if p.Curve != elliptic.P256() {
			return "", fmt.Errorf("%w: curve %s", ErrUnsupportedAlgorithm, p.Curve.Params().Name)
		}
		if alg != "" && alg != AlgES256 {
			return "", fmt.Errorf("%w: %q on an EC key", ErrUnsupportedAlgorithm, alg)
		}
		return AlgES256, nil
	case *rsa.PublicKey:
		if p.N.BitLen() < cryptox.MinRSABits {
			return "", fmt.Errorf("%w: RSA key is %d bits", ErrUnsupportedAlgorithm, p.N.BitLen())
		}
		if alg != "" && alg != AlgRS256 {
			return "", fmt.Errorf("%w: %q on an RSA key", ErrUnsupportedAlgorithm, alg)
		}
		return AlgRS256, nil
	default:
		return "", fmt.Errorf("%w: key type %T", ErrUnsupportedAlgorithm, pub)
	}
}
