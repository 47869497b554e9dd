package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/pkg/authsdk"
	"github.com/caarlos0/env/v11"
)

const (
	ReplayMemory = "memory"
	ReplayRedis  = "redis"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Issuer is the RFC 8414 issuer identifier and the base URL every
	// endpoint is advertised under.
	Issuer string `env:"AUTH_ISSUER" envDefault:"http://localhost:8080"`
	// PublicURL is the base of the token endpoint URL client assertions
	// must name as aud. Defaults to Issuer.
	PublicURL string `env:"AUTH_PUBLIC_URL"`

	DatabaseFile  string `env:"AUTH_DATABASE_FILE" envDefault:"sekaipass.db"`
	PepperFile    string `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`
	SecretKeyFile string `env:"AUTH_SECRET_KEY_FILE"` // seals TOTP secrets; ephemeral when empty
	ClientsFile   string `env:"AUTH_CLIENTS_FILE"`
	TOTPIssuer    string `env:"AUTH_TOTP_ISSUER" envDefault:"SEKAI Pass"`

	SessionTTL           time.Duration `env:"AUTH_SESSION_TTL" envDefault:"720h"`
	SessionRenewWindow   time.Duration `env:"AUTH_SESSION_RENEW_WINDOW" envDefault:"360h"`
	AccessTokenTTL       time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL      time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"720h"`
	CodeTTL              time.Duration `env:"AUTH_CODE_TTL" envDefault:"10m"`
	AssertionMaxLifetime time.Duration `env:"AUTH_ASSERTION_MAX_LIFETIME" envDefault:"5m"`
	AssertionLeeway      time.Duration `env:"AUTH_ASSERTION_LEEWAY" envDefault:"30s"`

	ReplayBackend  string `env:"AUTH_REPLAY_BACKEND" envDefault:"memory"`
	RedisAddr      string `env:"AUTH_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"AUTH_REDIS_PASSWORD"`
	RedisDB        int    `env:"AUTH_REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"AUTH_REDIS_KEY_PREFIX" envDefault:"sekaipass:jti:"`

	CookieSecure   bool `env:"AUTH_COOKIE_SECURE" envDefault:"true"`
	TrustProxy     bool `env:"AUTH_TRUST_PROXY" envDefault:"false"`
	MetricsEnabled bool `env:"AUTH_METRICS_ENABLED" envDefault:"true"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// LoadConfig reads the configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with and fills PublicURL.
func (c *Config) Validate() error {
	var errs []error

	c.Issuer = strings.TrimSuffix(c.Issuer, "/")
	if u, err := url.Parse(c.Issuer); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("AUTH_ISSUER %q must be an absolute http(s) URL", c.Issuer))
	} else if u.RawQuery != "" || u.Fragment != "" {
		errs = append(errs, fmt.Errorf("AUTH_ISSUER %q must not carry a query or fragment", c.Issuer))
	}

	if c.PublicURL == "" {
		c.PublicURL = c.Issuer
	}
	c.PublicURL = strings.TrimSuffix(c.PublicURL, "/")

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.DatabaseFile == "" {
		errs = append(errs, errors.New("AUTH_DATABASE_FILE is required"))
	}

	positive := map[string]time.Duration{
		"AUTH_SESSION_TTL":            c.SessionTTL,
		"AUTH_ACCESS_TOKEN_TTL":       c.AccessTokenTTL,
		"AUTH_REFRESH_TOKEN_TTL":      c.RefreshTokenTTL,
		"AUTH_CODE_TTL":               c.CodeTTL,
		"AUTH_ASSERTION_MAX_LIFETIME": c.AssertionMaxLifetime,
		"SHUTDOWN_GRACE_PERIOD":       c.ShutdownGracePeriod,
		"HOUSEKEEPING_INTERVAL":       c.HousekeepingInterval,
	}
	for key, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.SessionRenewWindow < 0 || c.SessionRenewWindow > c.SessionTTL {
		errs = append(errs, errors.New("AUTH_SESSION_RENEW_WINDOW must be between 0 and AUTH_SESSION_TTL"))
	}
	if c.AssertionLeeway < 0 {
		errs = append(errs, errors.New("AUTH_ASSERTION_LEEWAY must not be negative"))
	}

	switch c.ReplayBackend {
	case ReplayMemory:
	case ReplayRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("AUTH_REDIS_ADDR is required for the redis replay backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_REPLAY_BACKEND %q must be memory or redis", c.ReplayBackend))
	}

	return errors.Join(errs...)
}

// TokenEndpoint is the audience client assertions must carry.
func (c Config) TokenEndpoint() string {
	return c.PublicURL + authsdk.PathToken
}
