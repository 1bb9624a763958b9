package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lexmatch.backend/internal/config"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/infrastructure/esign"
	"lexmatch.backend/internal/infrastructure/metrics"
	"lexmatch.backend/internal/infrastructure/models"
	"lexmatch.backend/internal/infrastructure/repositories"
	"lexmatch.backend/internal/infrastructure/storage"
	"lexmatch.backend/internal/interfaces/http/handlers"
	"lexmatch.backend/internal/interfaces/http/middleware"
	"lexmatch.backend/internal/usecases"
	"lexmatch.backend/pkg/jwt"
	"lexmatch.backend/pkg/logger"
	"lexmatch.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	migrateDB  = models.AutoMigrate
	newArchive = func(ctx context.Context, cfg config.StorageConfig) (usecases.DocumentArchive, error) {
		return storage.NewS3Archive(ctx, storage.ArchiveConfig(cfg))
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(ctx, "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		logger.Warn(ctx, "Database not available, endpoints will return errors", zap.Error(err))
	} else {
		logger.Info(ctx, "Connected to PostgreSQL via GORM")
		if cfg.Database.AutoMigrate {
			if err := migrateDB(db); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			logger.Info(ctx, "Contract tables migrated")
		}
	}

	r, err := buildRouter(ctx, cfg, db)
	if err != nil {
		return err
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(ctx, "Shutting down server")
		_ = redis.Close()
		os.Exit(0)
	}()

	logger.Info(ctx, "LexMatch contract service starting",
		zap.String("port", cfg.Server.Port),
		zap.Bool("esign_enabled", cfg.ESign.Enabled()),
		zap.Bool("archive_enabled", cfg.Storage.Enabled()),
	)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// buildRouter wires repositories, usecases and handlers into a gin engine
func buildRouter(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gin.Engine, error) {
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessExpiry)
	m := metrics.New()

	contractRepo := repositories.NewContractRepository(db)
	transitionRepo := repositories.NewContractTransitionRepository(db)
	uow := repositories.NewUnitOfWork(db)

	var provider usecases.EnvelopeProvider = unconfiguredProvider{}
	if cfg.ESign.Enabled() {
		provider = esign.NewClient(cfg.ESign.BaseURL, cfg.ESign.APIKey, cfg.ESign.Timeout)
	} else {
		logger.Warn(ctx, "ESIGN_BASE_URL not set, provider sync is disabled")
	}

	var archive usecases.DocumentArchive
	if cfg.Storage.Enabled() {
		a, err := newArchive(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize document archive: %w", err)
		}
		archive = a
	}

	coordinator := usecases.NewSignatureCoordinator(contractRepo, transitionRepo, uow, m)
	syncUsecase := usecases.NewSignatureSyncUsecase(contractRepo, coordinator, provider, archive, m, cfg.ESign.DocumentHost)
	contractUsecase := usecases.NewContractUsecase(contractRepo, transitionRepo, uow, coordinator, syncUsecase, m)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware(m))

	applyCORSMiddleware(r, cfg.Server.AllowedOrigins)
	registerHealthRoute(r)
	registerMetricsRoute(r, m.Handler())
	registerAPIV1Routes(r, routeDeps{
		contractHandler: handlers.NewContractHandler(contractUsecase),
		webhookHandler:  handlers.NewESignWebhookHandler(syncUsecase),
		authMiddleware:  middleware.AuthMiddleware(jwtService),
		webhookAuth:     middleware.WebhookSignatureMiddleware(cfg.ESign.WebhookSecret),
	})

	for _, route := range r.Routes() {
		logger.Debug(ctx, "route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}
	return r, nil
}

// unconfiguredProvider answers every provider call when no e-signature
// service is configured
type unconfiguredProvider struct{}

func (unconfiguredProvider) FetchStatus(context.Context, string) (*entities.EnvelopeSnapshot, error) {
	return nil, domainerrors.ProviderRejected("e-signature provider is not configured")
}

func (unconfiguredProvider) DownloadSignedDocument(context.Context, string) (*entities.SignedDocument, error) {
	return nil, domainerrors.ProviderRejected("e-signature provider is not configured")
}
