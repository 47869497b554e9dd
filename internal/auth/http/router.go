package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/metrics"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"

	_ "github.com/IaSoC/sekai-pass-l10n/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// ReadinessCheck is one named dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	// Cookie configures the first-party session cookie.
	Cookie httpx.CookieConfig

	// DisableRateLimits skips the per-route limiters. Tests only.
	DisableRateLimits bool

	// Checks are probed by /readyz after the store ping.
	Checks []ReadinessCheck

	Metrics          *metrics.Metrics
	SessionService   *service.SessionService
	UserService      *service.UserService
	MFAService       *service.MFAService
	AuthorizeService *service.AuthorizeService
	TokenService     *service.TokenService
	UserInfoService  *service.UserInfoService
}

// NewRouter creates a router. issuer is the public base URL endpoints are
// advertised under.
func NewRouter(issuer, buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccount()
	r.registerMFA()
	r.registerOAuth2()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			SEKAI Pass API
//	@version		0.1.0
//	@description	Identity provider for SEKAI applications: account API and the OAuth 2.0
//	@description	authorization-code grant with client_secret and private_key_jwt (RFC 7523) client authentication.
//	@description
//	@description				Access tokens are opaque session tokens. Validate them with /oauth/userinfo or /oauth/introspect.
//
//	@contact.name				IaSoC
//	@contact.url				https://github.com/IaSoC/sekai-pass-l10n
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Opaque session token. Format: "Bearer {token}". Browsers send the sekaipass_session cookie instead.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// limit returns the rate limiter for profile, reporting rejections to the
// metrics.
func (r *Router) limit(by func(httpx.RateLimitConfig) httpx.Middleware, profile httpx.RateLimitConfig) httpx.Middleware {
	if r.DisableRateLimits {
		return func(next http.Handler) http.Handler { return next }
	}
	profile.OnLimit = r.Metrics.RateLimited
	return by(profile)
}

// authn requires a session and, for account routes, a first-party one.
func (r *Router) authn(firstParty bool) []httpx.Middleware {
	mws := []httpx.Middleware{httpx.AuthnMiddleware(r.SessionService, r.Cookie)}
	if firstParty {
		mws = append(mws, httpx.RequireFirstParty)
	}
	return mws
}

// secured chains h behind the given limiter and session middlewares. The
// limiter runs after authentication so per-user buckets see the user.
func (r *Router) secured(h http.Handler, firstParty bool, limiter httpx.Middleware) http.Handler {
	return httpx.Chain(h, append(r.authn(firstParty), limiter)...)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		UserService:    r.UserService,
		SessionService: r.SessionService,
		Cookie:         r.Cookie,
	}

	// Credential checks - strict rate limit by IP
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister), r.limit(httpx.RateLimitByIP, httpx.StrictLimit)))
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), r.limit(httpx.RateLimitByIP, httpx.StrictLimit)))

	// Logout accepts any session state, so no authn middleware
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout), r.limit(httpx.RateLimitByIP, httpx.ModerateLimit)))

	r.Mux.Handle("GET /auth/me",
		r.secured(http.HandlerFunc(h.HandleMe), true, r.limit(httpx.RateLimitByUser, httpx.ModerateLimit)))
	r.Mux.Handle("PUT /auth/profile",
		r.secured(http.HandlerFunc(h.HandleUpdateProfile), true, r.limit(httpx.RateLimitByUser, httpx.ModerateLimit)))

	// Password change re-checks the current password - strict
	r.Mux.Handle("POST /auth/password",
		r.secured(http.HandlerFunc(h.HandleChangePassword), true, r.limit(httpx.RateLimitByUser, httpx.StrictLimit)))
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /auth/mfa/totp/enroll",
		r.secured(http.HandlerFunc(h.HandleEnroll), true, r.limit(httpx.RateLimitByUser, httpx.ModerateLimit)))

	// Verify and remove take a TOTP code - strict to stop brute force
	r.Mux.Handle("POST /auth/mfa/totp/verify",
		r.secured(http.HandlerFunc(h.HandleVerify), true, r.limit(httpx.RateLimitByUser, httpx.StrictLimit)))
	r.Mux.Handle("DELETE /auth/mfa/totp",
		r.secured(http.HandlerFunc(h.HandleRemove), true, r.limit(httpx.RateLimitByUser, httpx.StrictLimit)))
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		Sessions:         r.SessionService,
		Cookie:           r.Cookie,
	}

	// GET /authorize only validates and describes the request
	r.Mux.Handle("GET /oauth/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleGet), r.limit(httpx.RateLimitByIP, httpx.ModerateLimit)))
	r.Mux.Handle("POST /oauth/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandlePost), r.limit(httpx.RateLimitByIP, httpx.ModerateLimit)))

	// POST /token - strict rate limit by IP + client_id (covers all grant types)
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/token",
		httpx.Chain(tokenHandler, r.limit(func(cfg httpx.RateLimitConfig) httpx.Middleware {
			return httpx.RateLimitByIPAndFormField(cfg, "client_id")
		}, httpx.StrictLimit)))

	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/revoke",
		httpx.Chain(revokeHandler, r.limit(httpx.RateLimitByIP, httpx.ModerateLimit)))

	introspectHandler := &IntrospectHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/introspect",
		httpx.Chain(introspectHandler, r.limit(httpx.RateLimitByIP, httpx.ModerateLimit)))

	// Userinfo validates the bearer itself so failures stay RFC 6750 shaped
	userInfoHandler := &UserInfoHandler{UserInfoService: r.UserInfoService}
	r.Mux.Handle("GET /oauth/userinfo",
		httpx.Chain(userInfoHandler, r.limit(httpx.RateLimitByIP, httpx.PublicLimit)))

	r.Mux.Handle("GET /.well-known/oauth-authorization-server",
		httpx.Chain(MetadataHandler(r.issuer), r.limit(httpx.RateLimitByIP, httpx.PublicLimit)))
}

func (r *Router) registerSystem() {
	// Health check endpoints - public limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion), r.limit(httpx.RateLimitByIP, httpx.PublicLimit)))
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Checks...), r.limit(httpx.RateLimitByIP, httpx.PublicLimit)))

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
