package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type fakeSessions map[string]httpx.Principal

func (f fakeSessions) AuthenticateSession(_ context.Context, token string) (httpx.Principal, error) {
	if token == "boom" {
		return httpx.Principal{}, errors.New("db down")
	}
	p, ok := f[token]
	if !ok {
		return httpx.Principal{}, httpx.ErrNoSession
	}
	return p, nil
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mw("a"), mw("b"), mw("c"))
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestAuthnMiddleware(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour)
	sessions := fakeSessions{
		"tok-alice": {UserID: "u1", ExpiresAt: expires},
		"tok-fresh": {UserID: "u2", ExpiresAt: expires, Fresh: true},
	}
	cookie := httpx.CookieConfig{Secure: true}

	var seen httpx.Principal
	h := httpx.AuthnMiddleware(sessions, cookie)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = httpx.SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tok-alice")
		rec := serve(h, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "u1", seen.UserID)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("renewed cookie is re-issued", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: httpx.DefaultSessionCookie, Value: "tok-fresh"})
		rec := serve(h, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		require.Equal(t, "tok-fresh", c.Value)
		require.True(t, c.HttpOnly)
		require.True(t, c.Secure)
		require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), `Bearer error="invalid_token"`))
	})

	t.Run("unknown cookie is cleared", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: httpx.DefaultSessionCookie, Value: "stale"})
		rec := serve(h, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, -1, cookies[0].MaxAge)
	})

	t.Run("store failure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer boom")
		require.Equal(t, http.StatusInternalServerError, serve(h, req).Code)
	})
}

func TestRequireFirstParty(t *testing.T) {
	h := httpx.RequireFirstParty(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(httpx.WithSession(req.Context(), httpx.Principal{UserID: "u1"}))
	require.Equal(t, http.StatusOK, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(httpx.WithSession(req.Context(), httpx.Principal{UserID: "u1", ClientID: "app1"}))
	require.Equal(t, http.StatusForbidden, serve(h, req).Code)

	require.Equal(t, http.StatusUnauthorized, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":  "abc",
		"bearer abc ": "abc",
		"Basic abc":   "",
		"Bearer":      "",
		"":            "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		require.Equal(t, want, httpx.BearerToken(req), "header %q", header)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Username string `json:"username"`
	}

	decode := func(body string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return httpx.DecodeJSON(httptest.NewRecorder(), req, &dst)
	}

	require.NoError(t, decode(`{"username":"alice"}`))
	require.Equal(t, "alice", dst.Username)
	require.Error(t, decode(`{"username":"alice","admin":true}`))
	require.Error(t, decode(`{"username":"a"}{"username":"b"}`))
	require.Error(t, decode(`not json`))
}
