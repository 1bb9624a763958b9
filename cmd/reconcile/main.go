package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lexmatch.backend/internal/config"
	"lexmatch.backend/internal/infrastructure/datasources/postgres"
	"lexmatch.backend/internal/infrastructure/esign"
	"lexmatch.backend/internal/infrastructure/jobs"
	"lexmatch.backend/internal/infrastructure/metrics"
	"lexmatch.backend/internal/infrastructure/repositories"
	"lexmatch.backend/internal/infrastructure/storage"
	"lexmatch.backend/internal/usecases"
	"lexmatch.backend/pkg/logger"
	"lexmatch.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
		conn, err := postgres.NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		return gorm.Open(gormpostgres.New(gormpostgres.Config{
			Conn:                 conn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{})
	}
	newProvider = func(cfg config.ESignConfig) usecases.EnvelopeProvider {
		return esign.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	}
	newArchive = func(ctx context.Context, cfg config.StorageConfig) (usecases.DocumentArchive, error) {
		return storage.NewS3Archive(ctx, storage.ArchiveConfig(cfg))
	}
)

const pushJobName = "lexmatch_reconcile"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(out)
	interval := fs.Duration("interval", 0, "repeat the sweep at this period; 0 runs once")
	noLock := fs.Bool("no-lock", false, "skip the distributed sweep lock")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_ = loadDotenv()
	cfg := loadCfg()
	initLog(cfg.Server.Env)
	ctx := context.Background()

	if !cfg.ESign.Enabled() {
		return fmt.Errorf("ESIGN_BASE_URL is required to reconcile envelopes")
	}
	if !*noLock {
		if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer redis.Close()
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Sync.PushgatewayURL != "" {
		m = metrics.New()
	}
	job, err := buildJob(ctx, cfg, db, m, !*noLock)
	if err != nil {
		return err
	}

	if *interval > 0 {
		runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger.Info(ctx, "Envelope reconcile loop started", zap.Duration("interval", *interval))
		job.WithInterval(*interval).
			OnSweep(func(ctx context.Context, _ jobs.ReconcileSummary, _ error) {
				pushMetrics(ctx, m, cfg.Sync.PushgatewayURL)
			}).
			Start(runCtx)
		return nil
	}

	summary, err := job.RunOnce(ctx)
	pushMetrics(ctx, m, cfg.Sync.PushgatewayURL)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "scanned=%d changed=%d warnings=%d failed=%d\n",
		summary.Scanned, summary.Changed, summary.Warnings, summary.Failed)
	return nil
}

// buildJob wires the sweep. m may be nil, in which case nothing is counted.
func buildJob(ctx context.Context, cfg *config.Config, db *gorm.DB, m *metrics.Metrics, useLock bool) (*jobs.EnvelopeReconcileJob, error) {
	contractRepo := repositories.NewContractRepository(db)
	transitionRepo := repositories.NewContractTransitionRepository(db)
	uow := repositories.NewUnitOfWork(db)

	var archive usecases.DocumentArchive
	if cfg.Storage.Enabled() {
		a, err := newArchive(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize document archive: %w", err)
		}
		archive = a
	}

	coordinator := usecases.NewSignatureCoordinator(contractRepo, transitionRepo, uow, m)
	syncUsecase := usecases.NewSignatureSyncUsecase(contractRepo, coordinator, newProvider(cfg.ESign), archive, m, cfg.ESign.DocumentHost)

	lockTTL := cfg.Sync.ReconcileLockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return jobs.NewEnvelopeReconcileJob(contractRepo, syncUsecase, cfg.Sync.ReconcileBatchSize, lockTTL, useLock), nil
}

func pushMetrics(ctx context.Context, m *metrics.Metrics, url string) {
	if m == nil {
		return
	}
	if err := m.Push(context.WithoutCancel(ctx), url, pushJobName); err != nil {
		logger.Warn(ctx, "push reconcile metrics failed", zap.Error(err))
	}
}
