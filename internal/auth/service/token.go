package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/metrics"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/idx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"

	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// TokenService runs the token endpoint grants. Access tokens are opaque
// session tokens bound to the client.
type TokenService struct {
	Store      store.Store
	Clients    *ClientAuthenticator
	Sessions   *SessionService
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        Clock
	Metrics    *metrics.Metrics
}

// CodeExchange is a grant_type=authorization_code request.
type CodeExchange struct {
	Client       ClientAuth
	Code         string
	RedirectURI  string // optional; must match the authorization request when sent
	CodeVerifier string
}

// RefreshExchange is a grant_type=refresh_token request.
type RefreshExchange struct {
	Client       ClientAuth
	RefreshToken string
	Scope        []string // optional narrowing
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return DefaultRefreshTokenTTL
}

// ExchangeAuthorizationCode redeems a code.
//
// The client is authenticated before the code is looked at. The code is
// consumed by a conditional delete in the same transaction that creates the
// session and refresh token, so two concurrent redemptions cannot both
// succeed. A code that fails the expiry, redirect or PKCE checks is still
// burned.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, req CodeExchange) (*domain.TokenResponse, error) {
	client, err := s.Clients.Authenticate(ctx, req.Client)
	if err != nil {
		return nil, err
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}

	now := s.Now.now()
	var (
		resp     *domain.TokenResponse
		rejected error
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		authCode, err := tx.AuthorizationCodes().ConsumeAuthorizationCode(ctx, cryptox.FingerprintToken(code), client.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		if reason := checkCode(authCode, now, req); reason != "" {
			// Commit the delete.
			rejected = fmt.Errorf("%w: %s", ErrInvalidGrant, reason)
			return nil
		}

		resp, err = s.issueTokens(ctx, tx, authCode.UserID, client.ID, authCode.Scopes)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			s.Metrics.Code("rejected")
		}
		return nil, err
	}
	if rejected != nil {
		s.Metrics.Code("rejected")
		slogx.FromContext(ctx).Info("authorization code rejected", "client_id", client.ID, "err", rejected)
		return nil, rejected
	}

	s.Metrics.Code("redeemed")
	s.Metrics.TokenIssued(GrantAuthorizationCode)
	return resp, nil
}

func checkCode(code domain.AuthorizationCode, now time.Time, req CodeExchange) string {
	if !now.Before(code.ExpiresAt) {
		return "code expired"
	}
	if req.RedirectURI != "" && req.RedirectURI != code.RedirectURI {
		return "redirect_uri mismatch"
	}
	if !verifyCodeVerifier(code.CodeChallenge, code.CodeChallengeMethod, req.CodeVerifier) {
		return "code_verifier mismatch"
	}
	return ""
}

// ExchangeRefreshToken rotates a refresh token: the presented token is
// revoked and a new access and refresh token are issued in one transaction.
// Only one of two concurrent rotations of the same token wins.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, req RefreshExchange) (*domain.TokenResponse, error) {
	client, err := s.Clients.Authenticate(ctx, req.Client)
	if err != nil {
		return nil, err
	}

	opaque := strings.TrimSpace(req.RefreshToken)
	if opaque == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}
	hash := cryptox.FingerprintToken(opaque)
	now := s.Now.now()

	var resp *domain.TokenResponse
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}
		if rt.Revoked || !now.Before(rt.ExpiresAt) || rt.ClientID != client.ID {
			return ErrInvalidGrant
		}

		scopes := rt.Scopes
		if len(req.Scope) > 0 {
			for _, sc := range req.Scope {
				if !slices.Contains(rt.Scopes, sc) {
					return fmt.Errorf("%w: scope %q was not granted", ErrInvalidScope, sc)
				}
			}
			scopes = dedupe(req.Scope)
		}

		revoked, err := tx.RefreshTokens().RevokeRefreshToken(ctx, hash, now)
		if err != nil {
			return err
		}
		if !revoked {
			return ErrInvalidGrant
		}

		resp, err = s.issueTokens(ctx, tx, rt.UserID, client.ID, scopes)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.TokenIssued(GrantRefreshToken)
	return resp, nil
}

// issueTokens creates the client session and a refresh token inside tx.
func (s *TokenService) issueTokens(
	ctx context.Context,
	tx store.Tx,
	userID, clientID string,
	scopes []string,
) (*domain.TokenResponse, error) {
	_, access, err := s.Sessions.issue(ctx, tx.Sessions(), userID, clientID, scopes, s.accessTTL())
	if err != nil {
		return nil, err
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	now := s.Now.now()
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		ClientID:  clientID,
		TokenHash: cryptox.FingerprintToken(refresh),
		Scopes:    scopes,
		ExpiresAt: now.Add(s.refreshTTL()),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}

	return &domain.TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL() / time.Second),
		RefreshToken: refresh,
		Scope:        strings.Join(scopes, " "),
	}, nil
}

// Revoke implements RFC 7009. Unknown tokens and tokens of other clients
// are ignored; the caller always answers 200.
func (s *TokenService) Revoke(ctx context.Context, auth ClientAuth, token, hint string) error {
	client, err := s.Clients.Authenticate(ctx, auth)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidRequest)
	}
	hash := cryptox.FingerprintToken(token)

	revokeRefresh := func() (bool, error) {
		rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		if errors.Is(err, store.ErrNotFound) || (err == nil && rt.ClientID != client.ID) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		_, err = s.Store.RefreshTokens().RevokeRefreshToken(ctx, hash, s.Now.now())
		return true, err
	}
	revokeSession := func() (bool, error) {
		sess, err := s.Store.Sessions().GetSession(ctx, hash)
		if errors.Is(err, store.ErrNotFound) || (err == nil && sess.ClientID != client.ID) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, s.Store.Sessions().DeleteSession(ctx, hash)
	}

	order := []func() (bool, error){revokeSession, revokeRefresh}
	if hint == "refresh_token" {
		order = []func() (bool, error){revokeRefresh, revokeSession}
	}
	for _, revoke := range order {
		done, err := revoke()
		if err != nil || done {
			return err
		}
	}
	return nil
}

// Introspect implements RFC 7662 for the calling client's own tokens.
func (s *TokenService) Introspect(ctx context.Context, auth ClientAuth, token string) (domain.Introspection, error) {
	client, err := s.Clients.Authenticate(ctx, auth)
	if err != nil {
		return domain.Introspection{}, err
	}
	if token == "" {
		return domain.Introspection{}, fmt.Errorf("%w: token is required", ErrInvalidRequest)
	}
	hash := cryptox.FingerprintToken(token)
	now := s.Now.now()

	var (
		userID, tokenType string
		scopes            []string
		exp               time.Time
	)
	if sess, err := s.Store.Sessions().GetSession(ctx, hash); err == nil {
		if sess.ClientID != client.ID || sess.Expired(now) {
			return domain.Introspection{}, nil
		}
		userID, tokenType, scopes, exp = sess.UserID, "Bearer", sess.Scopes, sess.ExpiresAt
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Introspection{}, err
	} else {
		rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Introspection{}, nil
		}
		if err != nil {
			return domain.Introspection{}, err
		}
		if rt.ClientID != client.ID || rt.Revoked || !now.Before(rt.ExpiresAt) {
			return domain.Introspection{}, nil
		}
		userID, tokenType, scopes, exp = rt.UserID, GrantRefreshToken, rt.Scopes, rt.ExpiresAt
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Introspection{}, nil
		}
		return domain.Introspection{}, err
	}

	return domain.Introspection{
		Active:    true,
		Scope:     strings.Join(scopes, " "),
		ClientID:  client.ID,
		Username:  user.Username,
		TokenType: tokenType,
		Exp:       exp.Unix(),
		Sub:       user.ID,
	}, nil
}

func verifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		// No PKCE challenge stored; accept regardless of verifier.
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	switch {
	case method == "" || strings.EqualFold(method, "plain"):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case strings.EqualFold(method, "S256"):
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
