package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/directory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/directory/dummyjson"
	"github.com/aussiebroadwan/gatehouse/internal/auth/directory/static"
	httpapi "github.com/aussiebroadwan/gatehouse/internal/auth/http"
	"github.com/aussiebroadwan/gatehouse/internal/auth/metrics"
	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/tiered"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the token service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// ctx scopes background work (directory watch); cancelled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// Core dependencies
	cache      store.Cache
	tokenStore *store.TokenStore
	directory  directory.Directory
	keyManager *jwtx.KeyManager
	metrics    *metrics.Metrics

	// Services
	tokenService        *jwtx.TokenService
	proofValidator      *jwtx.ProofValidator
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService // nil when the cache expires entries itself

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatehouse",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		ctx:     ctx,
		cancel:  cancel,
		metrics: metrics.New(),
	}

	if err := app.initCache(); err != nil {
		cancel()
		return nil, err
	}

	keyManager, err := InitAuthKeys(cfg, app.logger)
	if err != nil {
		app.abort()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	hasher, err := app.initDirectory()
	if err != nil {
		app.abort()
		return nil, err
	}

	if err := app.initServices(hasher); err != nil {
		app.abort()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// abort releases what New had acquired before failing.
func (app *Application) abort() {
	app.cancel()
	if app.cache != nil {
		_ = app.cache.Close()
	}
}

// Handler exposes the routed handler, mostly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start(app.ctx)
	}

	app.logger.Info("gatehouse starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"base_url", app.cfg.BaseURL,
		"cache", app.cfg.CacheDriver,
		"directory", app.cfg.DirectoryDriver,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatehouse...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}
	app.cancel()

	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
		return err
	}

	app.logger.Info("gatehouse stopped")
	return nil
}

// initCache opens the configured cache driver.
func (app *Application) initCache() error {
	cache, err := app.openCache(app.cfg.CacheDriver)
	if err != nil {
		return fmt.Errorf("failed to initialize %s cache: %w", app.cfg.CacheDriver, err)
	}
	app.cache = cache
	app.tokenStore = store.NewTokenStore(cache)

	app.logger.Info("cache ready", "driver", app.cfg.CacheDriver)
	return nil
}

func (app *Application) openCache(driver string) (store.Cache, error) {
	switch driver {
	case "memory":
		return memory.New(), nil
	case "redis":
		ctx, cancel := context.WithTimeout(app.ctx, 5*time.Second)
		defer cancel()
		return redis.New(ctx, redis.Config{
			Addr:      app.cfg.RedisAddr,
			Password:  app.cfg.RedisPassword,
			DB:        app.cfg.RedisDB,
			KeyPrefix: app.cfg.CacheKeyPrefix,
		})
	case "sqlite":
		return sqlite.New(fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.CacheSQLiteFile))
	case "tiered":
		l2, err := app.openCache(app.cfg.CacheL2Driver)
		if err != nil {
			return nil, err
		}
		return tiered.New(memory.New(), l2, tiered.WithL1TTL(app.cfg.CacheL1TTL)), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driver)
	}
}

// initDirectory connects the user directory and returns the password
// hasher matching it.
func (app *Application) initDirectory() (*cryptox.PasswordHasher, error) {
	switch app.cfg.DirectoryDriver {
	case "static":
		pepper, err := cryptox.LoadPepper(app.cfg.PepperFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load pepper: %w", err)
		}
		users, err := static.Load(app.cfg.DirectoryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load users file: %w", err)
		}
		if err := users.Watch(app.ctx, app.logger); err != nil {
			app.logger.Warn("users file will not be reloaded", "error", err)
		}
		app.directory = users
		app.logger.Info("static directory loaded", "path", app.cfg.DirectoryFile)
		return cryptox.NewPasswordHasher(pepper), nil

	default:
		app.directory = dummyjson.New(app.cfg.DirectoryURL)
		app.logger.Info("remote directory configured", "url", app.cfg.DirectoryURL)
		return cryptox.NewPasswordHasher(""), nil
	}
}

// initServices initializes token issuance, proof validation and sessions.
func (app *Application) initServices(hasher *cryptox.PasswordHasher) error {
	tokens, err := jwtx.NewTokenService(app.keyManager, jwtx.TokenConfig{
		Issuer:           app.cfg.Issuer,
		Audience:         app.cfg.Audience,
		AccessTTL:        app.cfg.AccessTTL,
		RefreshTTL:       app.cfg.RefreshTTL,
		RefreshNotBefore: app.cfg.RefreshNotBefore,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	app.tokenService = tokens

	app.proofValidator = jwtx.NewProofValidator(tokens, jwtx.ProofConfig{
		BaseURL:   app.cfg.BaseURL,
		ClockSkew: app.cfg.ClockSkew,
	})

	app.sessionService = &service.SessionService{
		Tokens:    tokens,
		Store:     app.tokenStore,
		Directory: app.directory,
		Hasher:    hasher,
		ClockSkew: app.cfg.ClockSkew,
	}

	// Redis expires keys itself; the other drivers hold them until swept.
	if sweeper, ok := app.cache.(store.Sweeper); ok {
		app.housekeepingService = service.NewHousekeepingService(
			sweeper,
			app.logger,
			app.cfg.HousekeepingInterval,
		)
		app.housekeepingService.OnSweep = app.metrics.ObserveSweep
	}
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet(),
		BuildVersion,
		app.tokenStore,
		app.logger,
	)

	router.Auth = httpx.AuthConfig{
		Tokens:       app.tokenService,
		Proofs:       app.proofValidator,
		Replay:       app.tokenStore,
		ReplayWindow: app.cfg.ReplayWindow,
	}
	router.SessionService = app.sessionService
	router.Metrics = app.metrics
	router.RequestTimeout = app.cfg.RequestTimeout
	router.RequireDPoP = app.cfg.RequireDPoP
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
