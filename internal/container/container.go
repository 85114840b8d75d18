package container

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-posts-api/app/db"
	"github.com/FACorreiaa/go-posts-api/app/observability/metrics"
	"github.com/FACorreiaa/go-posts-api/config"
	"github.com/FACorreiaa/go-posts-api/internal/api/auth"
	"github.com/FACorreiaa/go-posts-api/internal/api/post"
	"github.com/FACorreiaa/go-posts-api/internal/api/upload"
	"github.com/FACorreiaa/go-posts-api/internal/router"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Metrics *metrics.AppMetrics

	Tokens       *auth.TokenService
	AuthService  *auth.AuthServiceImpl
	AuthHandler  *auth.HandlerImpl
	PostService  *post.PostServiceImpl
	PostHandler  *post.HandlerImpl
	ImageStore   upload.ImageStore
	Authenticate func(http.Handler) http.Handler
}

// Stores are the storage-facing collaborators. NewContainer backs them with
// Postgres and the configured image store; tests substitute their own.
type Stores struct {
	Credentials auth.CredentialStore
	Posts       post.PostRepo
	Images      upload.ImageStore
}

// NewContainer connects to the database (which must already be migrated) and
// wires every component.
func NewContainer(ctx context.Context, cfg *config.Config, appMetrics *metrics.AppMetrics, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}
	if !database.WaitForDB(ctx, pool, logger) {
		pool.Close()
		return nil, fmt.Errorf("database not ready")
	}

	images, err := upload.NewImageStore(ctx, cfg.Uploads, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	c, err := Build(cfg, Stores{
		Credentials: auth.NewPostgresCredentialStore(pool, appMetrics, logger),
		Posts:       post.NewPostgresPostRepo(pool, appMetrics, logger),
		Images:      images,
	}, appMetrics, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	c.Pool = pool
	return c, nil
}

// Build composes services and handlers on top of the given stores.
func Build(cfg *config.Config, stores Stores, appMetrics *metrics.AppMetrics, logger *slog.Logger) (*Container, error) {
	tokens, err := auth.NewTokenService(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	authService, err := auth.NewAuthService(stores.Credentials, auth.NewBcryptHasher(), tokens, appMetrics, logger)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	authHandler := auth.NewHandlerImpl(authService, logger)

	uploader := upload.NewService(
		upload.NewProcessor(cfg.Uploads.Width, cfg.Uploads.Quality),
		stores.Images, appMetrics, logger)

	postService := post.NewPostService(stores.Posts, cfg.Cache.TTL, cfg.Cache.Cleanup, logger)
	postHandler := post.NewHandlerImpl(postService, uploader, cfg.Uploads.MaxBytes, logger)

	return &Container{
		Config:       cfg,
		Logger:       logger,
		Metrics:      appMetrics,
		Tokens:       tokens,
		AuthService:  authService,
		AuthHandler:  authHandler,
		PostService:  postService,
		PostHandler:  postHandler,
		ImageStore:   stores.Images,
		Authenticate: auth.Authenticate(tokens, logger),
	}, nil
}

// Router returns the complete HTTP handler for the API server.
func (c *Container) Router() http.Handler {
	return router.SetupRouter(&router.Config{
		AuthHandler:            c.AuthHandler,
		PostHandler:            c.PostHandler,
		AuthenticateMiddleware: c.Authenticate,
		Uploads:                c.ImageStore.Handler(),
		Logger:                 c.Logger,
		Timeout:                c.Config.Server.Timeout,
		AllowedOrigins:         c.Config.Server.AllowedOrigins,
		AuthRequests:           c.Config.RateLimit.AuthRequests,
		AuthWindow:             c.Config.RateLimit.Window,
	})
}

// Close releases all resources held by the container.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
