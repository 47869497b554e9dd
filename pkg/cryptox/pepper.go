package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Configuration for Argon2id hashing.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated hash
	saltLength  = 16        // Length of the salt

	// Upper bounds accepted when parsing stored hashes.
	maxMemory     = 1024 * 1024
	maxIterations = 64
)

var (
	pepperMu sync.RWMutex
	pepper   []byte
)

// SetPepper installs the server-wide secret mixed into every Argon2id hash.
// An empty pepper disables peppering.
func SetPepper(p string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepper = []byte(p)
}

// LoadPepperFile reads the pepper from file, creating the file with a random
// value when it does not exist yet.
func LoadPepperFile(file string) error {
	if file == "" {
		return errors.New("cryptox: pepper file path is empty")
	}
	file = filepath.Clean(file)

	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		SetPepper(strings.TrimSpace(string(data)))
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("cryptox: read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return fmt.Errorf("cryptox: create pepper dir: %w", err)
	}
	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	generated := base64.RawURLEncoding.EncodeToString(buf)
	if err := os.WriteFile(file, []byte(generated), 0o600); err != nil {
		return fmt.Errorf("cryptox: write pepper: %w", err)
	}
	SetPepper(generated)
	return nil
}

// pepperedPassword keys an HMAC with the pepper so the Argon2 input length
// stays fixed no matter how long the password is.
func pepperedPassword(password string) []byte {
	pepperMu.RLock()
	defer pepperMu.RUnlock()

	if len(pepper) == 0 {
		return []byte(password)
	}
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}
