package httpx

import (
	"net/http"
	"time"
)

// DefaultSessionCookie is the name of the first-party session cookie.
const DefaultSessionCookie = "sekaipass_session"

// CookieConfig controls how the session cookie is written.
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultSessionCookie
	}
	return c.Name
}

func (c CookieConfig) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

// SetSessionCookie writes token as an HttpOnly, SameSite=Lax cookie that
// expires with the session.
func SetSessionCookie(w http.ResponseWriter, cfg CookieConfig, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge <= 0 {
		ClearSessionCookie(w, cfg)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    token,
		Path:     cfg.path(),
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name(),
		Value:    "",
		Path:     cfg.path(),
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionCookieValue returns the session token sent as a cookie, or "".
func SessionCookieValue(r *http.Request, cfg CookieConfig) string {
	c, err := r.Cookie(cfg.name())
	if err != nil {
		return ""
	}
	return c.Value
}
