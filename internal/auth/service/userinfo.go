package service

import (
	"context"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
)

// UserInfoService answers /oauth/userinfo.
type UserInfoService struct {
	Sessions *SessionService
}

// UserInfo resolves a bearer token to the minimal profile of its user.
func (s *UserInfoService) UserInfo(ctx context.Context, bearer string) (domain.UserInfo, error) {
	sess, user, err := s.Sessions.ValidateSession(ctx, bearer)
	if err != nil {
		return domain.UserInfo{}, err
	}
	if sess == nil {
		return domain.UserInfo{}, ErrUnauthorized
	}
	return domain.UserInfo{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, nil
}
