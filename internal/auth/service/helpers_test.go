package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store/drivers/sqlite"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testAudience    = "https://pass.example.test/oauth/token"
	testRedirectURI = "https://x/cb"
	testSecret      = "app1-secret"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixture wires every service over one in-memory store.
type fixture struct {
	store    *sqlite.Store
	clock    *fakeClock
	sessions *SessionService
	users    *UserService
	mfa      *MFAService
	authz    *AuthorizeService
	clients  *ClientService
	auth     *ClientAuthenticator
	tokens   *TokenService
	userinfo *UserInfoService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sealer, err := cryptox.NewSealer([]byte("test-master-key"))
	require.NoError(t, err)

	clock := newFakeClock()
	now := Clock(clock.Now)

	sessions := &SessionService{Store: st, TTL: 30 * 24 * time.Hour, RenewWindow: 15 * 24 * time.Hour, Now: now}
	mfa := &MFAService{Store: st, Sealer: sealer, Issuer: "SEKAI Pass", Now: now}
	auth := &ClientAuthenticator{
		Store: st,
		Verifier: &jwtx.AssertionVerifier{
			Audience:    testAudience,
			Replay:      jwtx.NewMemoryReplayCache(0).WithClock(clock.Now),
			Leeway:      30 * time.Second,
			MaxLifetime: 5 * time.Minute,
			Now:         clock.Now,
		},
	}

	return &fixture{
		store:    st,
		clock:    clock,
		sessions: sessions,
		users:    &UserService{Store: st, Sessions: sessions, MFA: mfa, Now: now},
		mfa:      mfa,
		authz:    &AuthorizeService{Store: st, CodeTTL: 10 * time.Minute, Now: now},
		clients:  &ClientService{Store: st, Now: now},
		auth:     auth,
		tokens: &TokenService{
			Store:      st,
			Clients:    auth,
			Sessions:   sessions,
			AccessTTL:  time.Hour,
			RefreshTTL: 30 * 24 * time.Hour,
			Now:        now,
		},
		userinfo: &UserInfoService{Sessions: sessions},
	}
}

func (f *fixture) register(t *testing.T, username string) *LoginResult {
	t.Helper()
	res, err := f.users.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.test",
		Password: "password123!",
	})
	require.NoError(t, err)
	return res
}

// secretClient registers app1 with a fixed secret.
func (f *fixture) secretClient(t *testing.T) domain.Client {
	t.Helper()
	c, _, err := f.clients.CreateClient(context.Background(), ClientSpec{
		ID:           "app1",
		Name:         "App One",
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"profile", "email"},
		Secret:       testSecret,
	})
	require.NoError(t, err)
	return c
}

// jwtClient registers app2 for private_key_jwt with a fresh ES256 key.
func (f *fixture) jwtClient(t *testing.T) (domain.Client, jwtx.Signer) {
	t.Helper()
	ctx := context.Background()

	c, _, err := f.clients.CreateClient(ctx, ClientSpec{
		ID:           "app2",
		Name:         "App Two",
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"profile"},
		AuthMethod:   domain.AuthMethodPrivateKeyJWT,
	})
	require.NoError(t, err)

	pemKey, err := cryptox.GenerateES256Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerFromPEM(jwtx.AlgES256, "", pemKey)
	require.NoError(t, err)

	jwk, err := signer.PublicJWK().MarshalJSON()
	require.NoError(t, err)
	_, err = f.clients.AddKey(ctx, c.ID, jwk)
	require.NoError(t, err)
	return c, signer
}

// issueCode runs the consent step for userID and returns the raw code.
func (f *fixture) issueCode(t *testing.T, userID, clientID string) string {
	t.Helper()
	res, err := f.authz.Consent(context.Background(), ConsentRequest{
		AuthorizeRequest: AuthorizeRequest{
			ResponseType: "code",
			ClientID:     clientID,
			RedirectURI:  testRedirectURI,
			State:        "st",
		},
		UserID: userID,
		Allow:  true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)
	return res.Code
}
