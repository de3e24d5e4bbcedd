package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/sidequest/backend/internal/middleware"
	"github.com/anonto42/sidequest/backend/internal/router"
	"github.com/anonto42/sidequest/backend/internal/validators"
	"github.com/anonto42/sidequest/backend/pkg/cache"
	"github.com/anonto42/sidequest/backend/pkg/config"
	"github.com/anonto42/sidequest/backend/pkg/firebase"
	"github.com/anonto42/sidequest/backend/pkg/logger"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			log.Error("Sentry initialization failed", "error", err)
		}
		defer sentry.Flush(5 * time.Second)
	}

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped", "error", err)
		sentry.Flush(5 * time.Second)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	var profileCache cache.Cache = cache.Nop{}
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		profileCache = cache.NewRedisCache(client, "sidequest:")
	}

	auth, err := authMiddleware(ctx, cfg)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, log)

	if err := router.SetupRoutes(ctx, e, router.Dependencies{
		Postgres: db.Postgres,
		Mongo:    db.MongoDatabase(),
		Cache:    profileCache,
		CacheTTL: cfg.CacheTTL,
		IdleTTL:  cfg.FollowStateIdleTTL,
		Auth:     auth,
		Logger:   log,
	}); err != nil {
		return err
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("Starting server", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func authMiddleware(ctx context.Context, cfg *config.Config) (echo.MiddlewareFunc, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderFirebase:
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			return nil, err
		}
		return middleware.FirebaseAuthMiddleware(app.AuthClient), nil
	case config.AuthProviderJWT:
		if cfg.JWTSecret == "" {
			return nil, errors.New("JWT_SECRET environment variable not set")
		}
		return middleware.JWTAuthMiddleware(cfg.JWTSecret), nil
	default:
		return nil, errors.New("unknown AUTH_PROVIDER " + cfg.AuthProvider)
	}
}
