package domain

import "time"

// User is an end user account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2id PHC string, or a legacy PBKDF2 hex blob
	DisplayName  string
	AvatarURL    string
	MFASecret    *string    // sealed TOTP secret (nullable)
	MFAEnabledAt *time.Time // set once the TOTP secret has been confirmed
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MFAEnabled reports whether login requires a TOTP code.
func (u User) MFAEnabled() bool { return u.MFAEnabledAt != nil && u.MFASecret != nil }

// PublicName is the display name, falling back to the username.
func (u User) PublicName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
