package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"encoding/base64"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func app1Auth() SecretAuth { return SecretAuth{ClientID: "app1", Secret: testSecret} }

func TestExchangeAuthorizationCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.secretClient(t)
	code := f.issueCode(t, alice.User.ID, "app1")

	resp, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
		Client:      app1Auth(),
		Code:        code,
		RedirectURI: testRedirectURI,
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, int64(3600), resp.ExpiresIn)
	require.Len(t, resp.AccessToken, 43)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "profile email", resp.Scope)

	info, err := f.userinfo.UserInfo(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, domain.UserInfo{
		ID:       alice.User.ID,
		Username: "alice",
		Email:    "alice@example.test",
	}, info)

	// A second redemption finds nothing.
	_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: app1Auth(), Code: code})
	require.ErrorIs(t, err, ErrInvalidGrant)

	// The access token dies after an hour and is not renewed.
	f.clock.Advance(time.Hour)
	_, err = f.userinfo.UserInfo(ctx, resp.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestExchangeAuthorizationCodeConcurrentRedemption(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.secretClient(t)
	code := f.issueCode(t, alice.User.ID, "app1")

	var ok, invalid atomic.Int32
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: app1Auth(), Code: code})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInvalidGrant):
				invalid.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int32(1), ok.Load())
	require.Equal(t, int32(7), invalid.Load())
}

func TestExchangeAuthorizationCodeRejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("client authentication comes first", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		alice := f.register(t, "alice")
		f.secretClient(t)
		code := f.issueCode(t, alice.User.ID, "app1")

		_, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
			Client: SecretAuth{ClientID: "app1", Secret: "wrong"},
			Code:   code,
		})
		require.ErrorIs(t, err, ErrInvalidClient)

		// The code survived the failed attempt.
		_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: app1Auth(), Code: code})
		require.NoError(t, err)
	})

	t.Run("unknown client", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
			Client: SecretAuth{ClientID: "ghost", Secret: "x"},
			Code:   "whatever",
		})
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("missing code", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.secretClient(t)
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: app1Auth()})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("redirect mismatch burns the code", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		alice := f.register(t, "alice")
		f.secretClient(t)
		code := f.issueCode(t, alice.User.ID, "app1")

		_, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
			Client:      app1Auth(),
			Code:        code,
			RedirectURI: testRedirectURI + "/",
		})
		require.ErrorIs(t, err, ErrInvalidGrant)

		_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
			Client:      app1Auth(),
			Code:        code,
			RedirectURI: testRedirectURI,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("expired code", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		alice := f.register(t, "alice")
		f.secretClient(t)
		code := f.issueCode(t, alice.User.ID, "app1")

		f.clock.Advance(DefaultCodeTTL)
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: app1Auth(), Code: code})
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("code issued to another client", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		alice := f.register(t, "alice")
		f.secretClient(t)
		_, _, err := f.clients.CreateClient(ctx, ClientSpec{
			ID:           "app3",
			Name:         "App Three",
			RedirectURIs: []string{testRedirectURI},
			Secret:       "app3-secret",
		})
		require.NoError(t, err)
		code := f.issueCode(t, alice.User.ID, "app1")

		_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
			Client: SecretAuth{ClientID: "app3", Secret: "app3-secret"},
			Code:   code,
		})
		require.ErrorIs(t, err, ErrInvalidGrant)

		_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: app1Auth(), Code: code})
		require.NoError(t, err)
	})
}

func TestExchangeAuthorizationCodeWithPKCE(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.secretClient(t)

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	issue := func() string {
		res, err := f.authz.Consent(ctx, ConsentRequest{
			AuthorizeRequest: AuthorizeRequest{
				ResponseType:        "code",
				ClientID:            "app1",
				RedirectURI:         testRedirectURI,
				CodeChallenge:       base64.RawURLEncoding.EncodeToString(sum[:]),
				CodeChallengeMethod: "S256",
			},
			UserID: alice.User.ID,
			Allow:  true,
		})
		require.NoError(t, err)
		return res.Code
	}

	_, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: app1Auth(), Code: issue(), CodeVerifier: "nope"})
	require.ErrorIs(t, err, ErrInvalidGrant)

	_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: app1Auth(), Code: issue(), CodeVerifier: verifier})
	require.NoError(t, err)

	t.Run("omitted method is plain", func(t *testing.T) {
		res, err := f.authz.Consent(ctx, ConsentRequest{
			AuthorizeRequest: AuthorizeRequest{
				ResponseType:  "code",
				ClientID:      "app1",
				RedirectURI:   testRedirectURI,
				CodeChallenge: verifier,
			},
			UserID: alice.User.ID,
			Allow:  true,
		})
		require.NoError(t, err)

		_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: app1Auth(), Code: res.Code, CodeVerifier: verifier})
		require.NoError(t, err)
	})
}

func TestExchangeWithPrivateKeyJWT(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	_, signer := f.jwtClient(t)

	assertion, err := jwtx.BuildAssertionAt("app2", testAudience, signer, f.clock.Now())
	require.NoError(t, err)
	auth := AssertionAuth{ClientID: "app2", AssertionType: jwtx.AssertionType, Assertion: assertion}

	resp, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
		Client: auth,
		Code:   f.issueCode(t, alice.User.ID, "app2"),
	})
	require.NoError(t, err)
	require.Equal(t, "profile", resp.Scope)

	t.Run("replayed assertion", func(t *testing.T) {
		code := f.issueCode(t, alice.User.ID, "app2")
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{Client: auth, Code: code})
		require.ErrorIs(t, err, ErrInvalidClient)
		require.Equal(t, jwtx.KindReplayed, jwtx.ErrorKind(err))
	})

	t.Run("wrong audience", func(t *testing.T) {
		bad, err := jwtx.BuildAssertionAt("app2", "https://elsewhere/token", signer, f.clock.Now())
		require.NoError(t, err)
		_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
			Client: AssertionAuth{ClientID: "app2", AssertionType: jwtx.AssertionType, Assertion: bad},
			Code:   "irrelevant",
		})
		require.ErrorIs(t, err, ErrInvalidClient)
		require.Equal(t, jwtx.KindAudienceMismatch, jwtx.ErrorKind(err))
	})

	t.Run("wrong assertion type", func(t *testing.T) {
		fresh, err := jwtx.BuildAssertionAt("app2", testAudience, signer, f.clock.Now())
		require.NoError(t, err)
		_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
			Client: AssertionAuth{ClientID: "app2", AssertionType: "urn:other", Assertion: fresh},
			Code:   "irrelevant",
		})
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("secret presented for a key client", func(t *testing.T) {
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
			Client: SecretAuth{ClientID: "app2", Secret: "anything"},
			Code:   "irrelevant",
		})
		require.ErrorIs(t, err, ErrInvalidClient)
	})

	t.Run("revoked key", func(t *testing.T) {
		client, err := f.clients.GetClient(ctx, "app2")
		require.NoError(t, err)
		require.Len(t, client.Keys, 1)
		require.NoError(t, f.clients.RevokeKey(ctx, "app2", client.Keys[0].KeyID))

		fresh, err := jwtx.BuildAssertionAt("app2", testAudience, signer, f.clock.Now())
		require.NoError(t, err)
		_, err = f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
			Client: AssertionAuth{ClientID: "app2", AssertionType: jwtx.AssertionType, Assertion: fresh},
			Code:   "irrelevant",
		})
		require.ErrorIs(t, err, ErrInvalidClient)
	})
}

func TestExchangeRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.secretClient(t)

	first, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
		Client: app1Auth(),
		Code:   f.issueCode(t, alice.User.ID, "app1"),
	})
	require.NoError(t, err)

	second, err := f.tokens.ExchangeRefreshToken(ctx, RefreshExchange{
		Client:       app1Auth(),
		RefreshToken: first.RefreshToken,
		Scope:        []string{"profile"},
	})
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, "profile", second.Scope)

	// Rotated tokens are dead.
	_, err = f.tokens.ExchangeRefreshToken(ctx, RefreshExchange{Client: app1Auth(), RefreshToken: first.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidGrant)

	// Narrowed grants cannot widen again.
	_, err = f.tokens.ExchangeRefreshToken(ctx, RefreshExchange{
		Client:       app1Auth(),
		RefreshToken: second.RefreshToken,
		Scope:        []string{"email"},
	})
	require.ErrorIs(t, err, ErrInvalidScope)

	f.clock.Advance(DefaultRefreshTokenTTL)
	_, err = f.tokens.ExchangeRefreshToken(ctx, RefreshExchange{Client: app1Auth(), RefreshToken: second.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRevokeAndIntrospect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.secretClient(t)
	_, _, err := f.clients.CreateClient(ctx, ClientSpec{
		ID:           "app3",
		Name:         "App Three",
		RedirectURIs: []string{testRedirectURI},
		Secret:       "app3-secret",
	})
	require.NoError(t, err)
	other := SecretAuth{ClientID: "app3", Secret: "app3-secret", Basic: true}

	resp, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
		Client: app1Auth(),
		Code:   f.issueCode(t, alice.User.ID, "app1"),
	})
	require.NoError(t, err)

	info, err := f.tokens.Introspect(ctx, app1Auth(), resp.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "alice", info.Username)
	require.Equal(t, alice.User.ID, info.Sub)
	require.Equal(t, "app1", info.ClientID)
	require.Equal(t, f.clock.Now().Add(time.Hour).Unix(), info.Exp)

	info, err = f.tokens.Introspect(ctx, app1Auth(), resp.RefreshToken)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, GrantRefreshToken, info.TokenType)

	// Other clients learn nothing and cannot revoke.
	info, err = f.tokens.Introspect(ctx, other, resp.AccessToken)
	require.NoError(t, err)
	require.False(t, info.Active)
	require.NoError(t, f.tokens.Revoke(ctx, other, resp.AccessToken, ""))

	info, err = f.tokens.Introspect(ctx, app1Auth(), resp.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)

	// First-party sessions are never visible to clients.
	info, err = f.tokens.Introspect(ctx, app1Auth(), alice.Token)
	require.NoError(t, err)
	require.False(t, info.Active)

	require.NoError(t, f.tokens.Revoke(ctx, app1Auth(), resp.AccessToken, "access_token"))
	require.NoError(t, f.tokens.Revoke(ctx, app1Auth(), resp.RefreshToken, "refresh_token"))
	require.NoError(t, f.tokens.Revoke(ctx, app1Auth(), "never-issued", ""))

	info, err = f.tokens.Introspect(ctx, app1Auth(), resp.AccessToken)
	require.NoError(t, err)
	require.False(t, info.Active)

	_, err = f.tokens.ExchangeRefreshToken(ctx, RefreshExchange{Client: app1Auth(), RefreshToken: resp.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidGrant)

	err = f.tokens.Revoke(ctx, SecretAuth{ClientID: "app1", Secret: "bad"}, resp.AccessToken, "")
	require.ErrorIs(t, err, ErrInvalidClient)
}

func TestUserInfoRejectsUnknownToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.userinfo.UserInfo(context.Background(), cryptox.MustGenerateToken(cryptox.TokenSize256))
	require.ErrorIs(t, err, ErrUnauthorized)
}
