package service

import "errors"

// OAuth errors. The string is the RFC 6749 error code so the HTTP layer can
// map them with errors.Is and nothing else.
var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrUnauthorized            = errors.New("invalid_token")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrAccessDenied            = errors.New("access_denied")

	// ErrRedirectURIMismatch must never lead to a redirect: the URI is not
	// trusted.
	ErrRedirectURIMismatch = errors.New("redirect_uri mismatch")
)

// Account errors.
var (
	ErrInvalidCredentials = errors.New("username or password incorrect")
	ErrMFARequired        = errors.New("mfa_required")
	ErrUserExists         = errors.New("username or email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidProfile     = errors.New("invalid profile")

	ErrInvalidTOTPCode   = errors.New("invalid TOTP code")
	ErrMFANotEnabled     = errors.New("MFA not enabled for this user")
	ErrMFANotEnrolled    = errors.New("MFA not enrolled")
	ErrMFAAlreadyEnabled = errors.New("MFA already enabled for this user")
)

// Client registry errors.
var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientExists   = errors.New("client already exists")
	ErrInvalidKey     = errors.New("invalid client key")
)
