package domain

// MFAEnrollment is returned when a user starts TOTP enrollment.
type MFAEnrollment struct {
	Secret  string `json:"secret"`  // base32 secret for manual entry
	URL     string `json:"otpauth"` // otpauth:// URL for QR codes
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}
