package service

import (
	"context"
	"fmt"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/domain"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// MFAService manages TOTP second factors. Secrets are sealed before they
// reach the store.
type MFAService struct {
	Store  store.Store
	Sealer *cryptox.Sealer
	Issuer string // shown in authenticator apps
	Now    Clock
}

// EnrollTOTP generates a secret and stores it as pending. MFA is not
// enforced until VerifyTOTP confirms a code.
func (s *MFAService) EnrollTOTP(ctx context.Context, userID string) (domain.MFAEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.MFAEnrollment{}, err
	}
	if user.MFAEnabled() {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Username,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	sealed, err := s.Sealer.Seal([]byte(key.Secret()))
	if err != nil {
		return domain.MFAEnrollment{}, err
	}
	if err := s.Store.Users().SetMFASecret(ctx, userID, sealed, s.Now.now()); err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("store MFA secret: %w", err)
	}

	return domain.MFAEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: user.Username,
	}, nil
}

// VerifyTOTP confirms a pending enrollment.
func (s *MFAService) VerifyTOTP(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFAEnabled() {
		return ErrMFAAlreadyEnabled
	}
	if user.MFASecret == nil {
		return ErrMFANotEnrolled
	}
	if !s.Validate(user, code) {
		return ErrInvalidTOTPCode
	}
	return s.Store.Users().EnableMFA(ctx, userID, s.Now.now())
}

// DisableTOTP removes the second factor. A current code is required.
func (s *MFAService) DisableTOTP(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled() {
		return ErrMFANotEnabled
	}
	if !s.Validate(user, code) {
		return ErrInvalidTOTPCode
	}
	return s.Store.Users().DisableMFA(ctx, userID, s.Now.now())
}

// Validate checks code against the user's stored secret, pending or not.
func (s *MFAService) Validate(user domain.User, code string) bool {
	if user.MFASecret == nil || code == "" {
		return false
	}
	secret, err := s.Sealer.Open(*user.MFASecret)
	if err != nil {
		return false
	}
	ok, err := totp.ValidateCustom(code, string(secret), s.Now.now(), totpOpts)
	return err == nil && ok
}
