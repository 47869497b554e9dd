package slogx_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "sekaipass", Level: "debug", Output: &buf})
	t.Cleanup(func() { slog.SetDefault(slogx.Discard()) })

	logger.Info("login",
		"username", "alice",
		"password", "hunter22",
		"Client_Secret", "s3cret",
		slog.Group("req", "refresh_token", "rt"),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	require.Equal(t, "alice", line["username"])
	require.Equal(t, slogx.Redacted, line["password"])
	require.Equal(t, slogx.Redacted, line["Client_Secret"])
	require.Equal(t, map[string]any{"refresh_token": slogx.Redacted}, line["req"])
	require.Equal(t, "sekaipass", line["service"])
}

func TestHTTPMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"kept from upstream", "edge-1234", true},
		{"replaced when too long", strings.Repeat("a", 65), false},
		{"replaced when not printable", "bad id", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			base := slog.New(slog.NewJSONHandler(&buf, nil))

			var seen string
			h := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = slogx.RequestID(r.Context())
				slogx.FromContext(r.Context()).Info("inside")
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte("short and stout"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?state=secret-state", nil)
			if tt.incoming != "" {
				req.Header.Set(slogx.RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			require.Equal(t, seen, rec.Header().Get(slogx.RequestIDHeader))
			if tt.keep {
				require.Equal(t, tt.incoming, seen)
			} else {
				require.NotEqual(t, tt.incoming, seen)
			}

			require.NotContains(t, buf.String(), "secret-state")
			lines := decodeLines(t, &buf)
			require.Len(t, lines, 2)
			require.Equal(t, seen, lines[0]["req_id"])
			require.Equal(t, "http_request", lines[1]["msg"])
			require.EqualValues(t, http.StatusTeapot, lines[1]["status"])
			require.EqualValues(t, len("short and stout"), lines[1]["bytes"])
			require.Equal(t, "/oauth/authorize", lines[1]["path"])
		})
	}
}

func TestWith(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := slogx.WithContext(t.Context(), slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx = slogx.With(ctx, "client_id", "app1")
	slogx.FromContext(ctx).Info("hello")

	require.Equal(t, "app1", decodeLines(t, &buf)[0]["client_id"])
	require.Empty(t, slogx.RequestID(t.Context()))
}
