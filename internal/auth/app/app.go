package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	httpapi "github.com/IaSoC/sekai-pass-l10n/internal/auth/http"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/metrics"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/replay"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/service"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store"
	"github.com/IaSoC/sekai-pass-l10n/internal/auth/store/drivers/sqlite"
	"github.com/IaSoC/sekai-pass-l10n/pkg/cryptox"
	"github.com/IaSoC/sekai-pass-l10n/pkg/httpx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/jwtx"
	"github.com/IaSoC/sekai-pass-l10n/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application holds the identity provider and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	redis   *redis.Client
	metrics *metrics.Metrics

	sessionService      *service.SessionService
	userService         *service.UserService
	mfaService          *service.MFAService
	clientService       *service.ClientService
	authorizeService    *service.AuthorizeService
	tokenService        *service.TokenService
	housekeepingService *service.HousekeepingService

	replayCache jwtx.ReplayCache
	checks      []httpapi.ReadinessCheck

	server *http.Server
	router *httpapi.Router
}

// Option adjusts an Application before it is wired.
type Option func(*Application)

// WithLogger replaces the logger built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(app *Application) { app.logger = logger }
}

// New opens the store, seeds the client registry and wires the HTTP server.
func New(ctx context.Context, cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "sekaipass",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}
	if cfg.MetricsEnabled {
		app.metrics = metrics.New()
	}
	httpx.TrustForwardedHeaders(cfg.TrustProxy)

	if cfg.PepperFile != "" {
		if err := cryptox.LoadPepperFile(cfg.PepperFile); err != nil {
			return nil, err
		}
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initReplay(ctx); err != nil {
		_ = app.closeBackends()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.closeBackends()
		return nil, err
	}
	if cfg.ClientsFile != "" {
		if err := SeedClients(slogx.WithContext(ctx, app.logger), app.clientService, cfg.ClientsFile, app.logger); err != nil {
			_ = app.closeBackends()
			return nil, err
		}
	}
	app.initHTTP()

	return app, nil
}

// Handler is the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (app *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", app.server.Addr, err)
	}
	return app.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	app.housekeepingService.Start()

	app.logger.Info("sekaipass starting",
		"addr", ln.Addr().String(),
		"issuer", app.cfg.Issuer,
		"replay_backend", app.cfg.ReplayBackend,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.closeBackends()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		app.logger.Info("shutdown requested", "cause", context.Cause(ctx))
		return app.Shutdown()
	}
}

// Shutdown drains in-flight requests and closes the backends.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down sekaipass...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeBackends(); err != nil {
		return err
	}
	app.logger.Info("sekaipass stopped")
	return nil
}

// Close releases the backends of an Application that was never served.
func (app *Application) Close() error { return app.closeBackends() }

func (app *Application) closeBackends() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		app.redis = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		app.db = nil
	}
	err := errors.Join(errs...)
	if err != nil {
		app.logger.Error("error closing backends", "error", err)
	}
	return err
}

// OpenStore opens the SQLite database named by cfg and applies migrations.
func OpenStore(cfg Config) (*sqlite.Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

func (app *Application) initDatabase() error {
	db, err := OpenStore(app.cfg)
	if err != nil {
		return err
	}
	app.db = db
	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

func (app *Application) initReplay(ctx context.Context) error {
	switch app.cfg.ReplayBackend {
	case ReplayRedis:
		client, err := connectRedis(ctx, app.cfg, app.logger)
		if err != nil {
			return err
		}
		app.redis = client
		cache := replay.NewRedisCache(client, app.cfg.RedisKeyPrefix)
		app.replayCache = cache
		app.checks = append(app.checks, httpapi.ReadinessCheck{Name: "redis", Check: cache.Ping})
	default:
		app.replayCache = jwtx.NewMemoryReplayCache(0)
	}
	return nil
}

func (app *Application) initServices() error {
	sealer, err := cryptox.NewSealerFromFile(app.cfg.SecretKeyFile)
	if err != nil {
		return err
	}
	if app.cfg.SecretKeyFile == "" {
		app.logger.Warn("AUTH_SECRET_KEY_FILE not set; TOTP secrets will not survive a restart")
	}

	app.sessionService = &service.SessionService{
		Store:       app.db,
		TTL:         app.cfg.SessionTTL,
		RenewWindow: app.cfg.SessionRenewWindow,
		Metrics:     app.metrics,
	}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Sealer: sealer,
		Issuer: app.cfg.TOTPIssuer,
	}
	app.userService = &service.UserService{
		Store:    app.db,
		Sessions: app.sessionService,
		MFA:      app.mfaService,
		Metrics:  app.metrics,
	}
	app.clientService = &service.ClientService{Store: app.db}
	app.authorizeService = &service.AuthorizeService{
		Store:   app.db,
		CodeTTL: app.cfg.CodeTTL,
		Metrics: app.metrics,
	}

	authenticator := &service.ClientAuthenticator{
		Store: app.db,
		Verifier: &jwtx.AssertionVerifier{
			Audience:    app.cfg.TokenEndpoint(),
			Replay:      app.replayCache,
			Leeway:      app.cfg.AssertionLeeway,
			MaxLifetime: app.cfg.AssertionMaxLifetime,
		},
		Metrics: app.metrics,
	}
	app.tokenService = &service.TokenService{
		Store:      app.db,
		Clients:    authenticator,
		Sessions:   app.sessionService,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
		Metrics:    app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(app.db, app.logger, app.cfg.HousekeepingInterval)
	app.housekeepingService.Metrics = app.metrics
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.cfg.Issuer, BuildVersion, app.db, app.logger)

	router.Cookie = httpx.CookieConfig{Secure: app.cfg.CookieSecure}
	router.Checks = app.checks
	router.Metrics = app.metrics
	router.SessionService = app.sessionService
	router.UserService = app.userService
	router.MFAService = app.mfaService
	router.AuthorizeService = app.authorizeService
	router.TokenService = app.tokenService
	router.UserInfoService = &service.UserInfoService{Sessions: app.sessionService}
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
