package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func publicJWK(t *testing.T) []byte {
	t.Helper()
	pemKey, err := cryptox.GenerateES256Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerFromPEM(jwtx.AlgES256, "", pemKey)
	require.NoError(t, err)
	raw, err := signer.PublicJWK().MarshalJSON()
	require.NoError(t, err)
	return raw
}

func TestLoadClientsFile(t *testing.T) {
	t.Setenv("APP1_CLIENT_SECRET", "from-env")

	dir := t.TempDir()
	jwk := publicJWK(t)
	writeFile(t, dir, "app2.jwk.json", string(jwk))
	path := writeFile(t, dir, "clients.yaml", `
clients:
  - id: app1
    name: App One
    redirect_uris: [https://app1.example/cb]
    scopes: [profile, email]
    secret_env: APP1_CLIENT_SECRET
  - id: app2
    name: App Two
    redirect_uris: [https://app2.example/cb]
    token_endpoint_auth_method: private_key_jwt
    jwks_files: [app2.jwk.json]
    jwks:
      - `+string(jwk)+`
`)

	specs, keys, err := LoadClientsFile(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	require.Equal(t, "app1", specs[0].ID)
	require.Equal(t, "from-env", specs[0].Secret)
	require.Equal(t, []string{"profile", "email"}, specs[0].Scopes)
	require.Empty(t, keys[0])

	require.Equal(t, domain.AuthMethodPrivateKeyJWT, specs[1].AuthMethod)
	require.Len(t, keys[1], 2)
	for _, raw := range keys[1] {
		key, err := jwtx.ParseJWK(raw)
		require.NoError(t, err)
		require.Equal(t, jwtx.AlgES256, key.Alg)
	}
}

func TestLoadClientsFileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "clients:\n  - id: a\n    colour: red\n", "colour"},
		{"missing id", "clients:\n  - name: a\n", "id is required"},
		{"duplicate id", "clients:\n  - id: a\n  - id: a\n", "duplicate id"},
		{"unset secret env", "clients:\n  - id: a\n    secret_env: SEKAIPASS_TEST_UNSET_SECRET\n", "SEKAIPASS_TEST_UNSET_SECRET"},
		{"missing key file", "clients:\n  - id: a\n    jwks_files: [nope.json]\n", "nope.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, t.TempDir(), "clients.yaml", tt.content)
			_, _, err := LoadClientsFile(path)
			require.ErrorContains(t, err, tt.want)
		})
	}

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		path := writeFile(t, t.TempDir(), "clients.yaml", "")
		specs, _, err := LoadClientsFile(path)
		require.NoError(t, err)
		require.Empty(t, specs)
	})
}
