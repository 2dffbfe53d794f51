package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"contract-backend/internal/contracts"
	"contract-backend/internal/extractor"
	"contract-backend/internal/extractor/openai"
	"contract-backend/internal/newsletter"
	"contract-backend/internal/notifications"
	"contract-backend/internal/notifications/smtp"
	"contract-backend/internal/services/health"
	"contract-backend/internal/shared/config"
	"contract-backend/internal/shared/server"
	"contract-backend/internal/shared/server/middleware"
	"contract-backend/internal/shared/storage/db"
	"contract-backend/internal/shared/storage/object"
	localstore "contract-backend/internal/shared/storage/object/local"
	s3store "contract-backend/internal/shared/storage/object/s3"
	"contract-backend/internal/shared/telemetry"
)

// App holds the wired dependencies of the API process.
type App struct {
	Config               config.Config
	Router               *gin.Engine
	DB                   *sql.DB
	Store                object.ObjectStore
	ContractsRepo        contracts.Repo
	NotificationStore    notifications.Store
	NewsletterRepo       newsletter.Repo
	ContractsService     *contracts.Service
	NotificationsService *notifications.Service
	NewsletterService    *newsletter.Service
	Dispatcher           *notifications.Dispatcher
}

// Option overrides a collaborator, mainly for tests.
type Option func(*buildOptions)

type buildOptions struct {
	extractor extractor.Extractor
	transport notifications.Transport
}

// WithExtractor replaces the configured extractor.
func WithExtractor(e extractor.Extractor) Option {
	return func(o *buildOptions) { o.extractor = e }
}

// WithTransport replaces the configured email transport.
func WithTransport(t notifications.Transport) Option {
	return func(o *buildOptions) { o.transport = t }
}

// Build connects storage and wires services, dispatcher and router.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	ext := bo.extractor
	if ext == nil {
		if ext, err = buildExtractor(cfg); err != nil {
			closeDB(sqlDB)
			return nil, err
		}
	}
	transport := bo.transport
	if transport == nil {
		transport = buildTransport(cfg)
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}
	buildServices(app, ext, transport)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:               cfg,
		Health:               health.NewService(sqlDB),
		ContractsHandler:     contracts.NewHandler(app.ContractsService),
		NotificationsHandler: notifications.NewHandler(app.Dispatcher),
		NewsletterHandler:    newsletter.NewHandler(app.NewsletterService),
		RateLimiter:          middleware.NewRateLimiter(nil),
	})
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{
				"reason": "database connect failed",
				"error":  err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildExtractor(cfg config.Config) (extractor.Extractor, error) {
	if cfg.ExtractorProvider != "openai" {
		return extractor.Unavailable{}, nil
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.extractor_unavailable", map[string]any{"reason": "OPENAI_API_KEY empty"})
			return extractor.Unavailable{}, nil
		}
		return nil, errors.New("OPENAI_API_KEY is required when EXTRACTOR_PROVIDER=openai")
	}
	return openai.NewClient(cfg.OpenAIAPIKey, cfg.ExtractorModel)
}

func buildTransport(cfg config.Config) notifications.Transport {
	if strings.TrimSpace(cfg.SMTPAddr) == "" {
		telemetry.Info("bootstrap.log_transport", map[string]any{"reason": "SMTP_ADDR empty"})
		return notifications.LogTransport{}
	}
	return smtp.New(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
}

func buildServices(app *App, ext extractor.Extractor, transport notifications.Transport) {
	if app.DB != nil {
		app.ContractsRepo = &contracts.PGRepo{DB: app.DB}
		app.NotificationStore = &notifications.PGStore{DB: app.DB}
		app.NewsletterRepo = &newsletter.PGRepo{DB: app.DB}
	} else {
		app.ContractsRepo = contracts.NewMemoryRepo()
		app.NotificationStore = notifications.NewMemoryStore()
		app.NewsletterRepo = newsletter.NewMemoryRepo()
	}

	app.NotificationsService = notifications.NewService(app.NotificationStore, app.Config.AppBaseURL)
	app.Dispatcher = notifications.NewDispatcher(app.NotificationStore, transport,
		notifications.WithTransportTimeout(app.Config.TransportTimeout),
		notifications.WithBatchSize(app.Config.SweepBatchSize),
	)
	app.ContractsService = contracts.NewService(app.ContractsRepo, app.Store, ext,
		contracts.WithNotifier(app.NotificationsService),
		contracts.WithExtractTimeout(app.Config.ExtractorTimeout),
	)
	app.NewsletterService = newsletter.NewService(app.NewsletterRepo, app.NotificationsService)
}

func closeDB(sqlDB *sql.DB) {
	if sqlDB != nil {
		_ = sqlDB.Close()
	}
}
