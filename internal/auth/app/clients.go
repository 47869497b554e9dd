package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"gopkg.in/yaml.v3"
)

// ClientsFile is the registry seed read from AUTH_CLIENTS_FILE.
//
//	clients:
//	  - id: app1
//	    name: App One
//	    redirect_uris: [https://app1.example/cb]
//	    scopes: [profile, email]
//	    secret_env: APP1_CLIENT_SECRET
//	  - id: app2
//	    name: App Two
//	    redirect_uris: [https://app2.example/cb]
//	    token_endpoint_auth_method: private_key_jwt
//	    jwks_files: [keys/app2.jwk.json]
type ClientsFile struct {
	Clients []ClientSeed `yaml:"clients"`
}

type ClientSeed struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	RedirectURIs []string `yaml:"redirect_uris"`
	Scopes       []string `yaml:"scopes"`
	AuthMethod   string   `yaml:"token_endpoint_auth_method"`

	// Secret or SecretEnv set the secret of a secret client. SecretEnv
	// names an environment variable and wins when both are set.
	Secret    string `yaml:"secret"`
	SecretEnv string `yaml:"secret_env"`

	// JWKs are inline public keys; JWKSFiles are paths relative to the
	// seed file holding one JWK each.
	JWKs      []map[string]any `yaml:"jwks"`
	JWKSFiles []string         `yaml:"jwks_files"`
}

// LoadClientsFile parses path and resolves secrets and key files.
func LoadClientsFile(path string) ([]service.ClientSpec, [][][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read clients file: %w", err)
	}

	var file ClientsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("parse clients file %s: %w", path, err)
	}

	base := filepath.Dir(path)
	specs := make([]service.ClientSpec, 0, len(file.Clients))
	keys := make([][][]byte, 0, len(file.Clients))
	seen := map[string]bool{}
	for i, seed := range file.Clients {
		if seed.ID == "" {
			return nil, nil, fmt.Errorf("clients[%d]: id is required", i)
		}
		if seen[seed.ID] {
			return nil, nil, fmt.Errorf("clients[%d]: duplicate id %q", i, seed.ID)
		}
		seen[seed.ID] = true

		secret := seed.Secret
		if seed.SecretEnv != "" {
			secret = os.Getenv(seed.SecretEnv)
			if secret == "" {
				return nil, nil, fmt.Errorf("client %s: %s is not set", seed.ID, seed.SecretEnv)
			}
		}

		var jwks [][]byte
		for _, jwk := range seed.JWKs {
			raw, err := json.Marshal(jwk)
			if err != nil {
				return nil, nil, fmt.Errorf("client %s: encode jwk: %w", seed.ID, err)
			}
			jwks = append(jwks, raw)
		}
		for _, name := range seed.JWKSFiles {
			if !filepath.IsAbs(name) {
				name = filepath.Join(base, name)
			}
			raw, err := os.ReadFile(name)
			if err != nil {
				return nil, nil, fmt.Errorf("client %s: %w", seed.ID, err)
			}
			jwks = append(jwks, raw)
		}

		specs = append(specs, service.ClientSpec{
			ID:           seed.ID,
			Name:         seed.Name,
			RedirectURIs: seed.RedirectURIs,
			Scopes:       seed.Scopes,
			AuthMethod:   seed.AuthMethod,
			Secret:       secret,
		})
		keys = append(keys, jwks)
	}
	return specs, keys, nil
}

// SeedClients syncs every client in path into the registry. Clients not
// named in the file are left alone.
func SeedClients(ctx context.Context, clients *service.ClientService, path string, logger *slog.Logger) error {
	specs, keys, err := LoadClientsFile(path)
	if err != nil {
		return err
	}
	for i, spec := range specs {
		client, err := clients.SyncClient(ctx, spec, keys[i])
		if err != nil {
			return fmt.Errorf("seed client %s: %w", spec.ID, err)
		}
		logger.Info("client seeded",
			"client_id", client.ID,
			"method", client.TokenEndpointAuthMethod,
			"active_keys", len(client.ActiveKeys()),
		)
	}
	return nil
}
