package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/sidequest/backend/internal/follow"
	"github.com/anonto42/sidequest/backend/internal/handlers"
	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/internal/repositories"
	"github.com/anonto42/sidequest/backend/pkg/cache"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Dependencies are the collaborators the routes are built from. Mongo may be
// nil, in which case device registration is not served. A zero IdleTTL keeps
// follow state for the life of the process.
type Dependencies struct {
	Postgres *gorm.DB
	Mongo    *mongo.Database
	Cache    cache.Cache
	CacheTTL time.Duration
	IdleTTL  time.Duration
	Auth     echo.MiddlewareFunc
	Logger   *slog.Logger
}

// SetupRoutes migrates the relational models and registers every route.
// Background work started here stops when ctx is done.
func SetupRoutes(ctx context.Context, e *echo.Echo, deps Dependencies) error {
	logger := deps.Logger

	if err := deps.Postgres.AutoMigrate(
		&models.Profile{},
		&models.Follow{},
		&models.Notification{},
		&models.PointsHistory{},
	); err != nil {
		return fmt.Errorf("auto migrate models: %w", err)
	}
	logger.Info("PostgreSQL auto-migrations completed")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	followRepo := repositories.NewPostgresFollowRepository(deps.Postgres, logger.With("component", "follows"))
	notificationRepo := repositories.NewPostgresNotificationRepository(deps.Postgres)
	profileCache := deps.Cache
	if profileCache == nil {
		profileCache = cache.Nop{}
	}
	pointsRepo := repositories.NewCachedPointsRepository(
		repositories.NewPostgresPointsRepository(deps.Postgres, logger.With("component", "points")),
		profileCache,
		logger.With("component", "points"),
	)
	profileRepo := repositories.NewCachedProfileRepository(
		repositories.NewPostgresProfileRepository(deps.Postgres),
		profileCache,
		deps.CacheTTL,
		logger.With("component", "profiles"),
	)

	notifier := follow.NewNotifier(notificationRepo, logger.With("component", "notifier"))
	registry := follow.NewRegistry(followRepo, notifier, logger.With("component", "follow"))
	if deps.IdleTTL > 0 {
		go registry.Run(ctx, deps.IdleTTL)
	}

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(deps.Auth)

	handlers.NewSessionHandler(registry).RegisterSessionRoutes(api)
	handlers.NewFollowHandler(registry).RegisterFollowRoutes(api)
	handlers.NewProfileHandler(profileRepo, registry).RegisterProfileRoutes(api)
	handlers.NewNotificationHandler(notificationRepo, notifier).RegisterNotificationRoutes(api)
	handlers.NewLeaderboardHandler(pointsRepo, registry).RegisterLeaderboardRoutes(api)

	if deps.Mongo != nil {
		handlers.NewDeviceHandler(repositories.NewMongoDeviceRepository(deps.Mongo)).RegisterDeviceRoutes(api)
	} else {
		logger.Warn("Device routes disabled, no MongoDB configured")
	}

	logger.Info("All routes configured")
	return nil
}
