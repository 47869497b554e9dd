package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/metrics"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/idx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
)

const (
	MinPasswordLength     = 8
	MaxDisplayNameLength  = 50
	MaxAvatarURLLength    = 500
	maxUsernameLength     = 64
	maxPasswordByteLength = 1024
)

// UserService handles registration, password login and account changes.
type UserService struct {
	Store    store.Store
	Sessions *SessionService
	MFA      *MFAService
	Now      Clock
	Metrics  *metrics.Metrics
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// LoginInput is a password login. OTP is only consulted for users with MFA
// enabled.
type LoginInput struct {
	Username string
	Password string
	OTP      string
}

// LoginResult carries the new session and the bearer token naming it.
type LoginResult struct {
	User    domain.User
	Session domain.Session
	Token   string
}

// Register creates the account and logs it in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, ErrInvalidRequest
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username too long", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidRequest)
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		return nil, ErrInvalidProfile
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.Now.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	slogx.FromContext(ctx).Info("user registered", "user_id", user.ID)

	sess, token, err := s.Sessions.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Session: sess, Token: token}, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// burnPasswordCheck spends the same work as a real verification so unknown
// usernames are not distinguishable by timing.
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = cryptox.HashPassword("sekaipass-timing-equaliser")
	})
	_ = cryptox.VerifyPassword(password, dummyHash)
}

// Login checks the password (and TOTP code when enabled) and starts a
// session. Every credential failure is ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	log := slogx.FromContext(ctx)

	if in.Username == "" || in.Password == "" {
		return nil, ErrInvalidRequest
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, strings.TrimSpace(in.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			burnPasswordCheck(in.Password)
			s.Metrics.Login("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !cryptox.VerifyPassword(in.Password, user.PasswordHash) {
		s.Metrics.Login("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if user.MFAEnabled() {
		if in.OTP == "" {
			s.Metrics.Login("mfa_required")
			return nil, ErrMFARequired
		}
		if s.MFA == nil || !s.MFA.Validate(user, in.OTP) {
			s.Metrics.Login("invalid_otp")
			return nil, ErrInvalidTOTPCode
		}
	}

	if cryptox.NeedsRehash(user.PasswordHash) {
		if hash, err := cryptox.HashPassword(in.Password); err == nil {
			if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash, s.Now.now()); err != nil {
				log.Warn("password rehash failed", "user_id", user.ID, "err", err)
			} else {
				user.PasswordHash = hash
				log.Info("password hash upgraded", "user_id", user.ID)
			}
		}
	}

	sess, token, err := s.Sessions.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.Metrics.Login("ok")
	return &LoginResult{User: user, Session: sess, Token: token}, nil
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// UpdateProfile sets the display name and avatar. An empty avatar clears it.
func (s *UserService) UpdateProfile(ctx context.Context, userID, displayName, avatarURL string) (domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	avatarURL = strings.TrimSpace(avatarURL)

	if utf8.RuneCountInString(displayName) > MaxDisplayNameLength {
		return domain.User{}, fmt.Errorf("%w: display name longer than %d characters", ErrInvalidProfile, MaxDisplayNameLength)
	}
	if avatarURL != "" {
		if len(avatarURL) > MaxAvatarURLLength {
			return domain.User{}, fmt.Errorf("%w: avatar url longer than %d characters", ErrInvalidProfile, MaxAvatarURLLength)
		}
		u, err := url.Parse(avatarURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return domain.User{}, fmt.Errorf("%w: avatar url must be an absolute http(s) url", ErrInvalidProfile)
		}
	}

	if err := s.Store.Users().UpdateProfile(ctx, userID, displayName, avatarURL, s.Now.now()); err != nil {
		return domain.User{}, err
	}
	return s.Store.Users().GetUserByID(ctx, userID)
}

// ChangePassword replaces the password and signs out every other session
// and refresh token of the user. currentToken names the session to keep.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next, currentToken string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !cryptox.VerifyPassword(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := checkPassword(next); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}

	now := s.Now.now()
	keep := ""
	if currentToken != "" {
		keep = cryptox.FingerprintToken(currentToken)
	}
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash, now); err != nil {
			return err
		}
		if err := tx.Sessions().DeleteUserSessions(ctx, userID, keep); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeUserRefreshTokens(ctx, userID, now)
	})
}

func checkPassword(p string) error {
	if utf8.RuneCountInString(p) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(p) > maxPasswordByteLength {
		return fmt.Errorf("%w: password too long", ErrInvalidRequest)
	}
	return nil
}
