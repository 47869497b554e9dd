package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	sess, token, err := f.sessions.CreateSession(ctx, alice.User.ID)
	require.NoError(t, err)
	require.True(t, sess.Fresh)
	require.Len(t, token, 43)
	require.Equal(t, cryptox.FingerprintToken(token), sess.IDHash)
	require.Equal(t, f.clock.Now().Add(30*24*time.Hour), sess.ExpiresAt)

	got, user, err := f.sessions.ValidateSession(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.False(t, got.Fresh)
	require.Equal(t, "alice", user.Username)

	require.NoError(t, f.sessions.InvalidateSession(ctx, token))
	require.NoError(t, f.sessions.InvalidateSession(ctx, token))

	got, user, err = f.sessions.ValidateSession(ctx, token)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Nil(t, user)
}

func TestValidateSessionUnknownToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, token := range []string{"", "not-a-session"} {
		sess, user, err := f.sessions.ValidateSession(context.Background(), token)
		require.NoError(t, err)
		require.Nil(t, sess)
		require.Nil(t, user)
	}
}

func TestValidateSessionExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	f.clock.Advance(30 * 24 * time.Hour)

	sess, _, err := f.sessions.ValidateSession(ctx, alice.Token)
	require.NoError(t, err)
	require.Nil(t, sess)

	// The stale record was removed on the way out.
	_, err = f.store.Sessions().GetSession(ctx, cryptox.FingerprintToken(alice.Token))
	require.Error(t, err)
}

func TestValidateSessionRenewsOncePerWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	// Outside the renewal window nothing changes.
	f.clock.Advance(10 * 24 * time.Hour)
	sess, _, err := f.sessions.ValidateSession(ctx, alice.Token)
	require.NoError(t, err)
	require.False(t, sess.Fresh)
	require.Equal(t, alice.Session.ExpiresAt, sess.ExpiresAt)

	// Inside it the first validation extends and reports fresh.
	f.clock.Advance(10 * 24 * time.Hour)
	sess, _, err = f.sessions.ValidateSession(ctx, alice.Token)
	require.NoError(t, err)
	require.True(t, sess.Fresh)
	require.Equal(t, f.clock.Now().Add(30*24*time.Hour), sess.ExpiresAt)

	sess, _, err = f.sessions.ValidateSession(ctx, alice.Token)
	require.NoError(t, err)
	require.False(t, sess.Fresh)
}

func TestValidateSessionConcurrentRenewalIsFreshOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	f.clock.Advance(20 * 24 * time.Hour)

	var (
		wg    sync.WaitGroup
		fresh atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, _, err := f.sessions.ValidateSession(ctx, alice.Token)
			if err == nil && sess != nil && sess.Fresh {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), fresh.Load())
}

func TestClientSessionsDoNotRenew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.secretClient(t)

	sess, token, err := f.sessions.issue(ctx, f.store.Sessions(), alice.User.ID, "app1", nil, time.Hour)
	require.NoError(t, err)

	f.clock.Advance(59 * time.Minute)
	got, _, err := f.sessions.ValidateSession(ctx, token)
	require.NoError(t, err)
	require.False(t, got.Fresh)
	require.Equal(t, sess.ExpiresAt, got.ExpiresAt)

	f.clock.Advance(time.Minute)
	got, _, err = f.sessions.ValidateSession(ctx, token)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestInvalidateUserSessionsKeepsCurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	_, other, err := f.sessions.CreateSession(ctx, alice.User.ID)
	require.NoError(t, err)

	require.NoError(t, f.sessions.InvalidateUserSessions(ctx, alice.User.ID, alice.Token))

	sess, _, err := f.sessions.ValidateSession(ctx, alice.Token)
	require.NoError(t, err)
	require.NotNil(t, sess)

	sess, _, err = f.sessions.ValidateSession(ctx, other)
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestAuthenticateSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	p, err := f.sessions.AuthenticateSession(ctx, alice.Token)
	require.NoError(t, err)
	require.Equal(t, alice.User.ID, p.UserID)
	require.Equal(t, "alice", p.Username)
	require.True(t, p.FirstParty())

	_, err = f.sessions.AuthenticateSession(ctx, "bogus")
	require.ErrorIs(t, err, httpx.ErrNoSession)
}
