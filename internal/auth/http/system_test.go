package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("livez", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		resp := env.do(t, http.MethodGet, "/livez", "", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[authsdk.HealthResponse](t, resp)
		require.Equal(t, "ok", body.Status)
		require.Equal(t, "test", body.Version)
	})

	t.Run("readyz", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, withCheck("replay_cache", func(context.Context) error { return nil }))
		resp := env.do(t, http.MethodGet, "/readyz", "", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[authsdk.HealthResponse](t, resp)
		require.Equal(t, map[string]string{"database": "ok", "replay_cache": "ok"}, body.Checks)
	})

	t.Run("readyz degraded", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, withCheck("replay_cache", func(context.Context) error {
			return errors.New("dial tcp: connection refused")
		}))
		resp := env.do(t, http.MethodGet, "/readyz", "", nil, "")
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decode[authsdk.HealthResponse](t, resp)
		require.Equal(t, "degraded", body.Status)
		require.Equal(t, "error", body.Checks["replay_cache"])
		require.Equal(t, "ok", body.Checks["database"])
	})
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	c := authsdk.NewClient(env.srv.URL, "", "", nil)

	md, err := c.Metadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, env.srv.URL, md.Issuer)
	require.Equal(t, env.srv.URL+"/oauth/token", md.TokenEndpoint)
	require.Equal(t, env.verify.Audience, md.TokenEndpoint)
	require.Contains(t, md.TokenEndpointAuthMethodsSupported, "private_key_jwt")
	require.ElementsMatch(t, []string{"ES256", "RS256"}, md.TokenEndpointAuthSigningAlgValuesSupported)
	require.Equal(t, []string{"code"}, md.ResponseTypesSupported)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "alice")

	resp := env.do(t, http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `sekaipass_logins_total`)
}

func TestSwagger(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/swagger/doc.json", "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"/oauth/token"`)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withRateLimits)

	var limited *http.Response
	for range 20 {
		resp := env.do(t, http.MethodPost, "/auth/login", "", strings.NewReader("{}"), "application/json")
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = resp
			break
		}
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	require.NotNil(t, limited, "strict profile never tripped")
	require.NotEmpty(t, limited.Header.Get("Retry-After"))

	const want = `
# HELP sekaipass_rate_limited_total Requests rejected by a rate limit profile.
# TYPE sekaipass_rate_limited_total counter
sekaipass_rate_limited_total{profile="strict"} 1
`
	require.NoError(t, testutil.GatherAndCompare(env.metrics.Registry(), strings.NewReader(want), "sekaipass_rate_limited_total"))
}
