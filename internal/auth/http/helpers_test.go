package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/metrics"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store/drivers/sqlite"
	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testRedirectURI = "https://app.example.test/cb"
	testSecret      = "app1-secret"
	testPassword    = "password123!"
)

type testEnv struct {
	srv     *httptest.Server
	router  *Router
	clients *service.ClientService
	metrics *metrics.Metrics
	verify  *jwtx.AssertionVerifier
}

type envOption func(*Router)

func withRateLimits(r *Router) { r.DisableRateLimits = false }

func withCheck(name string, check func(context.Context) error) envOption {
	return func(r *Router) {
		r.Checks = append(r.Checks, ReadinessCheck{Name: name, Check: check})
	}
}

// newTestEnv wires every service over an in-memory store behind a real
// HTTP server.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sealer, err := cryptox.NewSealer([]byte("test-master-key"))
	require.NoError(t, err)

	m := metrics.New()
	sessions := &service.SessionService{Store: st, Metrics: m}
	mfa := &service.MFAService{Store: st, Sealer: sealer, Issuer: "SEKAI Pass"}
	verifier := &jwtx.AssertionVerifier{
		Replay: jwtx.NewMemoryReplayCache(0),
		Leeway: 30 * time.Second,
	}
	auth := &service.ClientAuthenticator{Store: st, Verifier: verifier, Metrics: m}

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	verifier.Audience = srv.URL + authsdk.PathToken

	router := NewRouter(srv.URL, "test", st, slogx.Discard())
	router.DisableRateLimits = true
	router.Cookie = httpx.CookieConfig{}
	router.Metrics = m
	router.SessionService = sessions
	router.UserService = &service.UserService{Store: st, Sessions: sessions, MFA: mfa, Metrics: m}
	router.MFAService = mfa
	router.AuthorizeService = &service.AuthorizeService{Store: st, Metrics: m}
	router.TokenService = &service.TokenService{Store: st, Clients: auth, Sessions: sessions, Metrics: m}
	router.UserInfoService = &service.UserInfoService{Sessions: sessions}
	for _, opt := range opts {
		opt(router)
	}
	router.ApplyRoutes()
	mux.Handle("/", router)

	return &testEnv{
		srv:     srv,
		router:  router,
		clients: &service.ClientService{Store: st},
		metrics: m,
		verify:  verifier,
	}
}

// noRedirect returns a client that hands 302s back to the caller.
func (e *testEnv) noRedirect() *http.Client {
	c := *e.srv.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &c
}

func (e *testEnv) do(t *testing.T, method, path, session string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: httpx.DefaultSessionCookie, Value: session})
	}
	resp, err := e.noRedirect().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) postJSON(t *testing.T, path, session string, v any) *http.Response {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return e.do(t, http.MethodPost, path, session, strings.NewReader(string(b)), "application/json")
}

func (e *testEnv) postForm(t *testing.T, path, session string, form url.Values) *http.Response {
	t.Helper()
	return e.do(t, http.MethodPost, path, session, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// register creates an account over HTTP and returns its session token.
func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	resp := e.postJSON(t, "/auth/register", "", authsdk.RegisterRequest{
		Username: username,
		Email:    username + "@example.test",
		Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	login := decode[authsdk.LoginResponse](t, resp)
	require.NotEmpty(t, login.SessionToken)
	return login.SessionToken
}

func (e *testEnv) secretClient(t *testing.T) {
	t.Helper()
	_, _, err := e.clients.CreateClient(context.Background(), service.ClientSpec{
		ID:           "app1",
		Name:         "App One",
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"profile", "email"},
		Secret:       testSecret,
	})
	require.NoError(t, err)
}

func (e *testEnv) sdk(creds authsdk.Credentials, clientID string) *authsdk.Client {
	c := authsdk.NewClient(e.srv.URL, clientID, testRedirectURI, creds)
	c.HTTPClient = e.srv.Client()
	return c
}

// consent approves an authorization request for the session's user and
// returns the code from the redirect.
func (e *testEnv) consent(t *testing.T, session, clientID string, extra url.Values) string {
	t.Helper()
	form := url.Values{
		"action":        {"allow"},
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {testRedirectURI},
		"state":         {"xyz"},
	}
	for k, v := range extra {
		form[k] = v
	}
	resp := e.postForm(t, authsdk.PathAuthorize, session, form)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "xyz", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}
