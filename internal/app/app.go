// Package app provides application-level wiring and dependency injection
// for the metric query server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"metricql/internal/api"
	"metricql/internal/config"
	"metricql/internal/db/repository"
	"metricql/internal/domain"
	"metricql/internal/middleware"
	"metricql/internal/objectstore"
	"metricql/internal/service/export"
	"metricql/internal/service/semantic"
	"metricql/internal/warehouse"
)

// Deps holds the external dependencies that main() must provide.
// Warehouse and Storage are opened from Cfg when nil.
type Deps struct {
	Cfg       *config.Config
	WriteDB   *sql.DB
	ReadDB    *sql.DB
	Warehouse domain.WarehouseClient
	Storage   domain.ObjectStorage
	Logger    *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Semantic   *semantic.Service
	Export     *export.Service
	Sweeper    *export.Sweeper
	Attributes *repository.UserAttributeRepo
	Warehouse  domain.WarehouseClient
	Handler    *api.Handler

	cfg    *config.Config
	logger *slog.Logger
}

// New wires repositories, the warehouse client, object storage and services
// from the provided deps.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// === Repositories ===
	exploreRepo := repository.NewExploreRepo(deps.WriteDB)
	attributeRepo := repository.NewUserAttributeRepo(deps.WriteDB)
	// Attribute lookups during compilation only read.
	attributeReader := repository.NewUserAttributeRepo(deps.ReadDB)

	// === Warehouse ===
	wh := deps.Warehouse
	if wh == nil {
		var err error
		wh, err = warehouse.Open(ctx, warehouse.Config{
			Type:         domain.WarehouseType(cfg.Warehouse.Type),
			DSN:          cfg.Warehouse.DSN,
			MaxOpenConns: cfg.Warehouse.MaxOpenConns,
			QueryTimeout: cfg.Warehouse.QueryTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open warehouse: %w", err)
		}
	}

	// === Object storage ===
	storage := deps.Storage
	if storage == nil {
		var err error
		storage, err = objectstore.New(ctx, objectstore.Config{
			Location:         cfg.ObjectStorage.URL,
			Region:           cfg.ObjectStorage.S3Region,
			Endpoint:         cfg.ObjectStorage.S3Endpoint,
			KeyID:            cfg.ObjectStorage.S3KeyID,
			Secret:           cfg.ObjectStorage.S3Secret,
			URLStyle:         cfg.ObjectStorage.S3URLStyle,
			GCSKeyFile:       cfg.ObjectStorage.GCSKeyFile,
			AzureAccountName: cfg.ObjectStorage.AzureAccountName,
			AzureAccountKey:  cfg.ObjectStorage.AzureAccountKey,
			URLExpiry:        cfg.ObjectStorage.URLExpiry,
		})
		if err != nil {
			_ = wh.Close()
			return nil, fmt.Errorf("object storage: %w", err)
		}
	}
	if storage.IsEnabled() {
		logger.Info("csv uploads enabled", "location", cfg.ObjectStorage.URL)
	}

	// === Services ===
	semanticSvc := semantic.NewService(exploreRepo, attributeReader, logger)
	semanticSvc.SetWarehouse(wh)

	exportCfg := export.Config{
		LocalDir:          cfg.Export.LocalDir,
		CellsLimit:        cfg.Export.CellsLimit,
		ChunkSize:         cfg.Export.ChunkSize,
		WorkerThreshold:   cfg.Export.WorkerThreshold,
		WorkerConcurrency: cfg.Export.WorkerConcurrency,
		LocalFileTTL:      cfg.Export.LocalFileTTL,
	}
	exportSvc := export.NewService(exportCfg, storage, logger)

	maxAge := cfg.Export.LocalFileTTL
	if maxAge <= 0 {
		maxAge = export.DefaultLocalFileTTL
	}
	sweeper := export.NewSweeper(exportSvc.LocalDir(), maxAge, logger)

	handler := api.NewHandler(semanticSvc, exportSvc, attributeRepo, wh, logger)

	return &App{
		Semantic:   semanticSvc,
		Export:     exportSvc,
		Sweeper:    sweeper,
		Attributes: attributeRepo,
		Warehouse:  wh,
		Handler:    handler,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Router builds the HTTP router. ctx bounds background middleware state.
func (a *App) Router(ctx context.Context) http.Handler {
	return api.NewRouter(ctx, a.Handler, api.RouterConfig{
		UserIDHeader:       a.cfg.UserIDHeader,
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimitRPS,
			Burst:             a.cfg.RateLimitBurst,
		},
		RequestLogging: !a.cfg.IsProduction(),
	})
}

// Start launches background jobs.
func (a *App) Start() error {
	schedule := a.cfg.Export.SweepSchedule
	if schedule == "" {
		schedule = export.DefaultSweepSchedule
	}
	if err := a.Sweeper.Start(schedule); err != nil {
		return fmt.Errorf("start csv sweeper: %w", err)
	}
	return nil
}

// Close stops background jobs, waits for in-flight exports and closes the
// warehouse connection.
func (a *App) Close() error {
	a.Sweeper.Stop()
	a.Export.Close()
	if err := a.Warehouse.Close(); err != nil {
		return fmt.Errorf("close warehouse: %w", err)
	}
	return nil
}
