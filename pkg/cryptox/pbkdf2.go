package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Legacy hashes were written as hex(salt || key) using PBKDF2-HMAC-SHA256
// with a fixed work factor and no pepper.
const (
	legacyIterations = 100_000
	legacySaltLength = 16
	legacyKeyLength  = 32
	legacyEncodedLen = 2 * (legacySaltLength + legacyKeyLength)
)

func isLegacyHash(encoded string) bool {
	return len(encoded) == legacyEncodedLen && !strings.Contains(encoded, "$")
}

func verifyLegacyPassword(password, encoded string) bool {
	raw, err := hex.DecodeString(encoded)
	if err != nil || len(raw) != legacySaltLength+legacyKeyLength {
		return false
	}
	salt, expected := raw[:legacySaltLength], raw[legacySaltLength:]

	computed := pbkdf2.Key([]byte(password), salt, legacyIterations, legacyKeyLength, sha256.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
