package service

import (
	"context"
	"errors"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/metrics"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

const (
	DefaultSessionTTL  = 30 * 24 * time.Hour
	DefaultRenewWindow = 15 * 24 * time.Hour
)

// SessionService owns the session lifecycle. Tokens are handed to callers
// once and only their fingerprints are stored.
//
// First-party sessions slide: validating one within RenewWindow of its
// expiry pushes the expiry to now+TTL. Sessions issued to a client through
// code redemption are access tokens with a fixed lifetime and never renew.
type SessionService struct {
	Store       store.Store
	TTL         time.Duration
	RenewWindow time.Duration
	Now         Clock
	Metrics     *metrics.Metrics
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultSessionTTL
}

func (s *SessionService) renewWindow() time.Duration {
	if s.RenewWindow > 0 {
		return s.RenewWindow
	}
	return DefaultRenewWindow
}

// CreateSession starts a first-party login session for userID.
func (s *SessionService) CreateSession(ctx context.Context, userID string) (domain.Session, string, error) {
	return s.issue(ctx, s.Store.Sessions(), userID, "", nil, s.ttl())
}

// issue mints a token and persists its session through repo, which may
// belong to a transaction.
func (s *SessionService) issue(
	ctx context.Context,
	repo store.Sessions,
	userID, clientID string,
	scopes []string,
	ttl time.Duration,
) (domain.Session, string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Session{}, "", err
	}

	now := s.Now.now()
	sess := domain.Session{
		IDHash:    cryptox.FingerprintToken(token),
		UserID:    userID,
		ClientID:  clientID,
		Scopes:    scopes,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Fresh:     true,
	}
	if err := repo.CreateSession(ctx, sess); err != nil {
		return domain.Session{}, "", err
	}

	s.Metrics.Session("created")
	return sess, token, nil
}

// ValidateSession resolves token to its session and user. A token that names
// no live session yields (nil, nil, nil); expired records are deleted on the
// way out.
func (s *SessionService) ValidateSession(ctx context.Context, token string) (*domain.Session, *domain.User, error) {
	if token == "" {
		return nil, nil, nil
	}

	hash := cryptox.FingerprintToken(token)
	sess, err := s.Store.Sessions().GetSession(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	now := s.Now.now()
	if sess.Expired(now) {
		if err := s.Store.Sessions().DeleteSession(ctx, hash); err != nil {
			slogx.FromContext(ctx).Warn("failed to delete expired session", "err", err)
		}
		s.Metrics.Session("expired")
		return nil, nil, nil
	}

	if sess.ClientID == "" && sess.ExpiresAt.Sub(now) < s.renewWindow() {
		newExpiry := now.Add(s.ttl())
		extended, err := s.Store.Sessions().ExtendSession(ctx, hash, newExpiry)
		if err != nil {
			return nil, nil, err
		}
		// Only the caller whose update moved the expiry reports Fresh.
		if extended {
			sess.ExpiresAt = newExpiry
			sess.Fresh = true
			s.Metrics.Session("renewed")
		}
	}

	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	return &sess, &user, nil
}

// InvalidateSession deletes the session named by token. It is idempotent.
func (s *SessionService) InvalidateSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.Store.Sessions().DeleteSession(ctx, cryptox.FingerprintToken(token)); err != nil {
		return err
	}
	s.Metrics.Session("invalidated")
	return nil
}

// InvalidateUserSessions logs userID out everywhere except the session
// named by keepToken, which may be empty.
func (s *SessionService) InvalidateUserSessions(ctx context.Context, userID, keepToken string) error {
	keep := ""
	if keepToken != "" {
		keep = cryptox.FingerprintToken(keepToken)
	}
	return s.Store.Sessions().DeleteUserSessions(ctx, userID, keep)
}

// AuthenticateSession adapts ValidateSession to httpx.SessionAuthenticator.
func (s *SessionService) AuthenticateSession(ctx context.Context, token string) (httpx.Principal, error) {
	sess, user, err := s.ValidateSession(ctx, token)
	if err != nil {
		return httpx.Principal{}, err
	}
	if sess == nil {
		return httpx.Principal{}, httpx.ErrNoSession
	}
	return httpx.Principal{
		UserID:    user.ID,
		Username:  user.Username,
		SessionID: sess.IDHash,
		ClientID:  sess.ClientID,
		Scopes:    sess.Scopes,
		ExpiresAt: sess.ExpiresAt,
		Fresh:     sess.Fresh,
	}, nil
}
