package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/FACorreiaa/bank-import/internal/domain/importer"
	"github.com/FACorreiaa/bank-import/internal/domain/protect"
	"github.com/FACorreiaa/bank-import/internal/domain/suggest"
	"github.com/FACorreiaa/bank-import/internal/queue"
	"github.com/FACorreiaa/bank-import/internal/worker"
	"github.com/FACorreiaa/bank-import/pkg/config"
	"github.com/FACorreiaa/bank-import/pkg/cron"
	"github.com/FACorreiaa/bank-import/pkg/db"
	"github.com/FACorreiaa/bank-import/pkg/retry"
	"github.com/FACorreiaa/bank-import/pkg/storage"
)

// Dependencies holds everything the worker process wires together.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	Queue       queue.Queue
	FileStorage storage.Storage
	Keeper      *protect.Keeper

	ImportService  *importer.Service
	SuggestService *suggest.Service

	Registry    *prometheus.Registry
	ImportPool  *worker.Pool
	SuggestPool *worker.Pool
	Sweeper     *cron.Scheduler
}

// InitDependencies connects the database, runs migrations, and builds the
// services and worker pools.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initWorkers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initDatabase(ctx context.Context) error {
	pool, err := db.Connect(ctx, d.Config.Database.DSN())
	if err != nil {
		return err
	}
	d.Pool = pool

	if err := db.Migrate(pool, d.Logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed")
	return nil
}

func (d *Dependencies) initServices() error {
	d.Queue = queue.NewPostgresQueue(d.Pool, d.Config.Worker.QueueLease)

	fileStorage, err := storage.New(&storage.Config{
		Type:      storage.StorageType(d.Config.Storage.Type),
		LocalPath: d.Config.Storage.LocalPath,
		S3Bucket:  d.Config.Storage.S3Bucket,
		S3Region:  d.Config.Storage.S3Region,
	})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	keeper, err := protect.NewKeeper(d.Config.Security.CredentialSecret)
	if err != nil {
		return fmt.Errorf("failed to init credential keeper: %w", err)
	}
	d.Keeper = keeper

	importRepo := importer.NewPostgresRepository(d.Pool)
	d.ImportService = importer.NewService(
		importRepo,
		d.FileStorage,
		d.Queue,
		d.Keeper,
		nil, // no OCR backend configured; image imports degrade gracefully
		nil,
		d.Logger,
		importer.Config{
			StatusTxLimit: d.Config.Import.StatusTxLimit,
			DownloadRetry: retry.Options{
				MaxAttempts:  d.Config.Import.DownloadRetries,
				InitialDelay: d.Config.Import.DownloadBackoff,
				MaxDelay:     d.Config.Import.DownloadBackoffMax,
			},
		},
	)

	engine, err := suggest.NewEngine(suggest.DefaultCatalog())
	if err != nil {
		return fmt.Errorf("failed to init suggestion engine: %w", err)
	}
	d.SuggestService = suggest.NewService(suggest.NewPostgresRepository(d.Pool), engine, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initWorkers() {
	d.Registry = prometheus.NewRegistry()
	metrics := worker.NewMetrics(d.Registry)

	backoff := retry.Options{
		InitialDelay: d.Config.Worker.BackoffInitial,
		MaxDelay:     d.Config.Worker.BackoffMax,
	}

	d.ImportPool = worker.NewPool(worker.Config{
		Topic:        queue.TopicImport,
		Size:         d.Config.Worker.ImportPoolSize,
		MaxAttempts:  d.Config.Worker.MaxAttempts,
		PollInterval: d.Config.Worker.PollInterval,
		Backoff:      backoff,
	}, d.Queue, d.ImportService.HandleImport, d.ImportService.OnImportExhausted, metrics, d.Logger)

	d.SuggestPool = worker.NewPool(worker.Config{
		Topic:        queue.TopicCategorySuggestion,
		Size:         d.Config.Worker.CategoryPoolSize,
		MaxAttempts:  d.Config.Worker.MaxAttempts,
		PollInterval: d.Config.Worker.PollInterval,
		Backoff:      backoff,
	}, d.Queue, d.SuggestService.HandleSuggestion, nil, metrics, d.Logger)

	d.Sweeper = cron.NewScheduler(d.Queue, d.Config.Worker.SweeperSchedule, d.Logger)

	d.Logger.Info("worker pools initialized",
		"import_pool", d.Config.Worker.ImportPoolSize,
		"category_pool", d.Config.Worker.CategoryPoolSize)
}

// Cleanup closes all resources.
func (d *Dependencies) Cleanup() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.Logger.Info("cleanup completed")
}
