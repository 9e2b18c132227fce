package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/aggregate"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/extractor"
	ingesthandler "github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/handler"
	ingestrepo "github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/repository"
	ingestservice "github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/service"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/membership"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/pkg/config"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/pkg/cron"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/pkg/db"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/pkg/metrics"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/pkg/storage"

	"github.com/prometheus/client_golang/prometheus"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	MetricsRepo  ingestrepo.MetricsRepository
	RegistryRepo membership.RegistryRepository

	// Services
	Registry      *membership.Registry
	IngestService *ingestservice.IngestService
	FileStorage   storage.Storage
	Scheduler     *cron.Scheduler

	// Observability
	PromRegistry *prometheus.Registry
	Collectors   *metrics.Collectors

	// Handlers
	IngestHandler *ingesthandler.IngestHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initRepositories() error {
	d.MetricsRepo = ingestrepo.NewPostgresMetricsRepository(d.DB.Pool)
	d.RegistryRepo = membership.NewPostgresRegistryRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initServices() error {
	d.PromRegistry = prometheus.NewRegistry()
	d.Collectors = metrics.New(d.PromRegistry)

	d.Registry = membership.NewRegistry(d.RegistryRepo, d.Logger)

	aggregator := aggregate.New(
		aggregate.WithZeroRevenueRowThreshold(d.Config.Ingest.ZeroRevenueRowThreshold),
	)

	d.IngestService = ingestservice.NewIngestService(
		d.Logger,
		d.MetricsRepo,
		d.Registry,
		ingestservice.WithAggregator(aggregator),
		ingestservice.WithCollectors(d.Collectors),
		ingestservice.WithExtractOptions(extractor.Options{
			SkipTitleRows: d.Config.Ingest.WorkbookSkipRows,
		}),
	)

	fileStorage, err := storage.New(&storage.Config{LocalPath: d.Config.Storage.LocalPath})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.Scheduler = cron.New(d.MetricsRepo, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initHandlers() error {
	d.IngestHandler = ingesthandler.NewIngestHandler(d.IngestService, d.FileStorage, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}
