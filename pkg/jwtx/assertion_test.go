package jwtx_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "app1"
	testAudience = "https://pass.example.test/oauth/token"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newES256(t *testing.T, kid string) (jwtx.Signer, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	s, err := jwtx.NewAssertionSigner(jwtx.AlgES256, kid, key)
	require.NoError(t, err)
	return s, key
}

func newRS256(t *testing.T, kid string) (jwtx.Signer, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	s, err := jwtx.NewAssertionSigner(jwtx.AlgRS256, kid, key)
	require.NoError(t, err)
	return s, key
}

func keySetFor(t *testing.T, signers ...jwtx.Signer) *jwtx.KeySet {
	t.Helper()
	ks, err := jwtx.NewKeySet()
	require.NoError(t, err)
	for _, s := range signers {
		key, err := jwtx.KeyFromJWK(s.PublicJWK())
		require.NoError(t, err)
		require.NoError(t, ks.Add(key))
	}
	return ks
}

func newVerifier() *jwtx.AssertionVerifier {
	clock := func() time.Time { return testNow }
	return &jwtx.AssertionVerifier{
		Audience:    testAudience,
		Replay:      jwtx.NewMemoryReplayCache(0).WithClock(clock),
		Leeway:      30 * time.Second,
		MaxLifetime: 5 * time.Minute,
		Now:         clock,
	}
}

func TestBuildAssertionClaims(t *testing.T) {
	t.Parallel()

	signer, _ := newES256(t, "k1")
	token, err := jwtx.BuildAssertionAt(testClientID, testAudience, signer, testNow)
	require.NoError(t, err)

	var claims jwtx.AssertionClaims
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	require.NoError(t, err)

	require.Equal(t, "ES256", parsed.Header["alg"])
	require.Equal(t, "k1", parsed.Header["kid"])
	require.Equal(t, testClientID, claims.Issuer)
	require.Equal(t, testClientID, claims.Subject)
	require.Equal(t, jwt.ClaimStrings{testAudience}, claims.Audience)
	require.Equal(t, testNow.Unix(), claims.IssuedAt.Unix())
	require.Equal(t, testNow.Add(300*time.Second).Unix(), claims.ExpiresAt.Unix())
	require.Len(t, claims.ID, 22)
}

func TestBuildAssertionUniqueJTI(t *testing.T) {
	t.Parallel()

	signer, _ := newES256(t, "k1")
	seen := make(map[string]bool)
	for range 50 {
		token, err := jwtx.BuildAssertion(testClientID, testAudience, signer)
		require.NoError(t, err)

		var claims jwtx.AssertionClaims
		_, _, err = jwt.NewParser().ParseUnverified(token, &claims)
		require.NoError(t, err)
		require.False(t, seen[claims.ID], "jti reused")
		seen[claims.ID] = true
	}
}

func TestES256SignatureIsRawRS(t *testing.T) {
	t.Parallel()

	signer, _ := newES256(t, "k1")
	token, err := jwtx.BuildAssertionAt(testClientID, testAudience, signer, testNow)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	require.Len(t, sig, 64)
}

func TestAssertionRoundTrip(t *testing.T) {
	t.Parallel()

	es, _ := newES256(t, "es-key")
	rs, _ := newRS256(t, "rs-key")

	for _, signer := range []jwtx.Signer{es, rs} {
		t.Run(signer.Alg(), func(t *testing.T) {
			t.Parallel()

			token, err := jwtx.BuildAssertionAt(testClientID, testAudience, signer, testNow)
			require.NoError(t, err)

			v := newVerifier()
			require.NoError(t, v.Verify(context.Background(), token, testClientID, keySetFor(t, signer)))
		})
	}
}

func TestNewAssertionSignerRejectsMismatch(t *testing.T) {
	t.Parallel()

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = jwtx.NewAssertionSigner("HS256", "k", ecKey)
	require.ErrorIs(t, err, jwtx.ErrUnsupportedAlgorithm)

	_, err = jwtx.NewAssertionSigner(jwtx.AlgRS256, "k", ecKey)
	require.ErrorIs(t, err, jwtx.ErrUnsupportedAlgorithm)

	_, err = jwtx.NewAssertionSigner(jwtx.AlgES256, "k", p384)
	require.ErrorIs(t, err, jwtx.ErrUnsupportedAlgorithm)

	_, err = jwtx.NewAssertionSigner(jwtx.AlgES256, "k", edKey)
	require.ErrorIs(t, err, jwtx.ErrUnsupportedAlgorithm)
}

func TestNewSignerFromPEMDefaultsKIDToThumbprint(t *testing.T) {
	t.Parallel()

	pemKey, err := cryptox.GenerateES256Key()
	require.NoError(t, err)

	signer, err := jwtx.NewSignerFromPEM(jwtx.AlgES256, "", pemKey)
	require.NoError(t, err)

	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	require.NoError(t, err)
	want, err := jwtx.Thumbprint(key.Public())
	require.NoError(t, err)
	require.Equal(t, want, signer.KID())
	require.Len(t, signer.KID(), 43)
}

func TestUnverifiedIssuer(t *testing.T) {
	t.Parallel()

	signer, _ := newES256(t, "k1")
	tok, err := jwtx.BuildAssertionAt(testClientID, testAudience, signer, testNow)
	require.NoError(t, err)

	require.Equal(t, testClientID, jwtx.UnverifiedIssuer(tok))
	require.Empty(t, jwtx.UnverifiedIssuer("a.b.c"))
	require.Empty(t, jwtx.UnverifiedIssuer(""))
}
