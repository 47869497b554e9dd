package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

// MinRSABits is the smallest modulus accepted for RS256 client keys.
const MinRSABits = 2048

// GenerateRSAKey generates a new RSA private key with the specified bit size.
// Common bit sizes are 2048, 3072, or 4096 bits.
// Returns the private key in PEM format (PKCS8).
func GenerateRSAKey(bits int) ([]byte, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate RSA key: %w", err)
	}
	return MarshalPrivateKeyPEM(privateKey)
}
