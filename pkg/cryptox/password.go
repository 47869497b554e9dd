package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// HashPassword generates a PHC-format Argon2id hash string including salt and parameters.
// Every call draws a fresh salt, so hashing the same password twice never yields the same string.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: failed to read salt: %w", err)
	}
	hash := argon2.IDKey(
		pepperedPassword(password),
		salt,
		iterations,
		memory,
		parallelism,
		keyLength,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword reports whether password matches the encoded hash.
//
// Both the PHC Argon2id format produced by HashPassword and the legacy
// PBKDF2 hex format are accepted. Anything that cannot be parsed yields false.
func VerifyPassword(password, encodedHash string) bool {
	if isLegacyHash(encodedHash) {
		return verifyLegacyPassword(password, encodedHash)
	}

	params, salt, expected, ok := parseArgon2Hash(encodedHash)
	if !ok {
		return false
	}

	computed := argon2.IDKey(
		pepperedPassword(password),
		salt,
		params.iterations,
		params.memory,
		params.parallelism,
		uint32(len(expected)), // #nosec G115 - bounded by parseArgon2Hash
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// NeedsRehash reports whether an encoded hash should be replaced with a fresh
// HashPassword result on the next successful login.
func NeedsRehash(encodedHash string) bool {
	if isLegacyHash(encodedHash) {
		return true
	}
	params, _, _, ok := parseArgon2Hash(encodedHash)
	if !ok {
		return true
	}
	return params.memory < memory || params.iterations < iterations
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

// parseArgon2Hash splits $argon2id$v=19$m=X,t=Y,p=Z$salt$hash.
func parseArgon2Hash(encoded string) (argon2Params, []byte, []byte, bool) {
	var p argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, false
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return p, nil, nil, false
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, nil, nil, false
	}
	if p.memory == 0 || p.memory > maxMemory || p.iterations == 0 || p.iterations > maxIterations || p.parallelism == 0 {
		return p, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < saltLength {
		return p, nil, nil, false
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) < 16 || len(hash) > 64 {
		return p, nil, nil, false
	}

	return p, salt, hash, true
}
