package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/idx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	res := f.register(t, "alice")
	require.Equal(t, "alice", res.User.Username)
	require.True(t, strings.HasPrefix(res.User.PasswordHash, "$argon2id$"))
	require.True(t, res.Session.Fresh)

	sess, user, err := f.sessions.ValidateSession(ctx, res.Token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, res.User.ID, user.ID)

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"duplicate username", RegisterInput{Username: "alice", Email: "other@example.test", Password: "password123!"}, ErrUserExists},
		{"duplicate email", RegisterInput{Username: "alice2", Email: "alice@example.test", Password: "password123!"}, ErrUserExists},
		{"short password", RegisterInput{Username: "bob", Email: "bob@example.test", Password: "short"}, ErrWeakPassword},
		{"bad email", RegisterInput{Username: "bob", Email: "not-an-email", Password: "password123!"}, ErrInvalidRequest},
		{"missing username", RegisterInput{Email: "bob@example.test", Password: "password123!"}, ErrInvalidRequest},
		{"long display name", RegisterInput{
			Username: "bob", Email: "bob@example.test", Password: "password123!",
			DisplayName: strings.Repeat("あ", MaxDisplayNameLength+1),
		}, ErrInvalidProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Register(ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	res, err := f.users.Login(ctx, LoginInput{Username: "alice", Password: "password123!"})
	require.NoError(t, err)
	require.Equal(t, alice.User.ID, res.User.ID)
	require.NotEqual(t, alice.Token, res.Token)

	_, err = f.users.Login(ctx, LoginInput{Username: "alice", Password: "wrong-password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Login(ctx, LoginInput{Username: "nobody", Password: "password123!"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Usernames match exactly.
	_, err = f.users.Login(ctx, LoginInput{Username: "Alice", Password: "password123!"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Login(ctx, LoginInput{Username: "alice"})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	salt := []byte("0123456789abcdef")
	key := pbkdf2.Key([]byte("legacy-pass"), salt, 100_000, 32, sha256.New)
	legacy := hex.EncodeToString(append(salt, key...))

	now := f.clock.Now()
	require.NoError(t, f.store.Users().CreateUser(ctx, domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     "kanade",
		Email:        "kanade@example.test",
		PasswordHash: legacy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	res, err := f.users.Login(ctx, LoginInput{Username: "kanade", Password: "legacy-pass"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.User.PasswordHash, "$argon2id$"))

	stored, err := f.store.Users().GetUserByUsername(ctx, "kanade")
	require.NoError(t, err)
	require.False(t, cryptox.NeedsRehash(stored.PasswordHash))
	require.True(t, cryptox.VerifyPassword("legacy-pass", stored.PasswordHash))

	_, err = f.users.Login(ctx, LoginInput{Username: "kanade", Password: "legacy-pass"})
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")

	user, err := f.users.UpdateProfile(ctx, alice.User.ID, " 宵崎 奏 ", "https://cdn.example.test/a.png")
	require.NoError(t, err)
	require.Equal(t, "宵崎 奏", user.DisplayName)
	require.Equal(t, "https://cdn.example.test/a.png", user.AvatarURL)
	require.Equal(t, "宵崎 奏", user.PublicName())

	// Fifty multi-byte characters is still within the limit.
	_, err = f.users.UpdateProfile(ctx, alice.User.ID, strings.Repeat("奏", MaxDisplayNameLength), "")
	require.NoError(t, err)

	_, err = f.users.UpdateProfile(ctx, alice.User.ID, strings.Repeat("奏", MaxDisplayNameLength+1), "")
	require.ErrorIs(t, err, ErrInvalidProfile)

	for _, avatar := range []string{"javascript:alert(1)", "/relative.png", "https://" + strings.Repeat("a", MaxAvatarURLLength)} {
		_, err = f.users.UpdateProfile(ctx, alice.User.ID, "", avatar)
		require.ErrorIs(t, err, ErrInvalidProfile, avatar)
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.secretClient(t)

	other, err := f.users.Login(ctx, LoginInput{Username: "alice", Password: "password123!"})
	require.NoError(t, err)
	tokens, err := f.tokens.ExchangeAuthorizationCode(ctx, CodeExchange{
		Client: app1Auth(),
		Code:   f.issueCode(t, alice.User.ID, "app1"),
	})
	require.NoError(t, err)

	err = f.users.ChangePassword(ctx, alice.User.ID, "wrong-password", "new-password-1", alice.Token)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	err = f.users.ChangePassword(ctx, alice.User.ID, "password123!", "short", alice.Token)
	require.ErrorIs(t, err, ErrWeakPassword)

	require.NoError(t, f.users.ChangePassword(ctx, alice.User.ID, "password123!", "new-password-1", alice.Token))

	sess, _, err := f.sessions.ValidateSession(ctx, alice.Token)
	require.NoError(t, err)
	require.NotNil(t, sess, "current session survives")

	sess, _, err = f.sessions.ValidateSession(ctx, other.Token)
	require.NoError(t, err)
	require.Nil(t, sess)

	_, err = f.tokens.ExchangeRefreshToken(ctx, RefreshExchange{Client: app1Auth(), RefreshToken: tokens.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidGrant)

	_, err = f.users.Login(ctx, LoginInput{Username: "alice", Password: "password123!"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Login(ctx, LoginInput{Username: "alice", Password: "new-password-1"})
	require.NoError(t, err)
}
