package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/entelequia/catalog-tracker/internal/domain/catalog/export"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/handler"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/repository"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/search"
	"github.com/entelequia/catalog-tracker/internal/domain/catalog/service"
	"github.com/entelequia/catalog-tracker/pkg/config"
	"github.com/entelequia/catalog-tracker/pkg/cron"
	"github.com/entelequia/catalog-tracker/pkg/db"
	"github.com/entelequia/catalog-tracker/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	CatalogRepo repository.CatalogRepository

	ImportService *service.ImportService
	SearchService *search.Service
	ExportService *export.Service
	Scheduler     *cron.Scheduler

	CatalogHandler *handler.CatalogHandler

	Registry *prometheus.Registry
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	database, err := db.New(db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repo := repository.NewPostgresCatalogRepository(database.Pool)

	registry := prometheus.NewRegistry()
	importMetrics := metrics.New(registry)

	importOpts := service.Options{
		WriteBatchSize:   cfg.Import.WriteBatchSize,
		SnapshotPageSize: cfg.Import.SnapshotPageSize,
		HistoryLimit:     cfg.Import.HistoryLimit,
	}
	importOpts.Parser.SupplierMarker = cfg.Import.SupplierMarker
	importOpts.Parser.SkipRows = cfg.Import.SkipRows
	importOpts.Parser.MinISBNLength = cfg.Import.MinISBNLength

	importSvc := service.NewImportService(repo, logger, importOpts).WithMetrics(importMetrics)
	searchSvc := search.NewService(repo, cfg.Import.SnapshotPageSize)
	exportSvc := export.NewService(repo, cfg.Import.SnapshotPageSize)

	deps := &Dependencies{
		Config:         cfg,
		DB:             database,
		Logger:         logger,
		CatalogRepo:    repo,
		ImportService:  importSvc,
		SearchService:  searchSvc,
		ExportService:  exportSvc,
		Scheduler:      cron.NewScheduler(repo, cfg.Import.HistoryLimit, logger),
		CatalogHandler: handler.NewCatalogHandler(importSvc, searchSvc, exportSvc, logger),
		Registry:       registry,
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// Close releases held resources.
func (d *Dependencies) Close() {
	d.DB.Close()
}
