// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sellermetrics/position-tracker/internal/api"
	"github.com/sellermetrics/position-tracker/internal/archive"
	"github.com/sellermetrics/position-tracker/internal/catalog"
	"github.com/sellermetrics/position-tracker/internal/combinator"
	"github.com/sellermetrics/position-tracker/internal/config"
	"github.com/sellermetrics/position-tracker/internal/fetcher/catalogapi"
	"github.com/sellermetrics/position-tracker/internal/logging"
	"github.com/sellermetrics/position-tracker/internal/metrics"
	"github.com/sellermetrics/position-tracker/internal/publisher/memory"
	"github.com/sellermetrics/position-tracker/internal/publisher/pubsub"
	"github.com/sellermetrics/position-tracker/internal/report"
	"github.com/sellermetrics/position-tracker/internal/report/sheets"
	"github.com/sellermetrics/position-tracker/internal/scheduler"
	"github.com/sellermetrics/position-tracker/internal/storage/postgres"
)

// App holds all the shared, long-lived services for the tracking service.
// It is initialized once at startup and passed to the components that need
// it; every provider degrades to a no-op when its backend is not
// configured, so a bare `serve` works without cloud credentials.
type App struct {
	Cfg       config.Config
	Logger    *zap.Logger
	Server    *api.Server
	Scheduler *scheduler.Service

	pool      *pgxpool.Pool
	archiver  archive.Provider
	publisher catalog.Publisher
}

// New builds the full service graph from configuration. It fails fast when
// a configured backend cannot be reached.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	a := &App{Cfg: cfg, Logger: logger}

	// Raw response archive; disabled unless a bucket is configured.
	if cfg.Archive.GCSBucket != "" {
		gcs, err := archive.NewGCSProvider(ctx, cfg.Archive.GCSBucket, cfg.Archive.Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("init archive: %w", err)
		}
		a.archiver = gcs
		logger.Info("raw response archive enabled", zap.String("bucket", cfg.Archive.GCSBucket))
	} else {
		a.archiver = &archive.NoOpProvider{}
	}

	fetcher := catalogapi.New(catalogapi.Config{
		BaseURL:   cfg.Catalog.BaseURL,
		UserAgent: cfg.Catalog.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	}, a.archiver, nil, logger)

	retry := catalog.RetryPolicy{
		MaxRetries:     cfg.Retry.MaxRetries,
		BaseDelay:      time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		RequestTimeout: cfg.RequestTimeout(),
	}
	pagerCfg := catalog.PagerConfig{
		MaxConcurrentPages: cfg.Pager.MaxConcurrentPages,
		PageCeiling:        cfg.Pager.PageCeiling,
		InterBatchDelay:    time.Duration(cfg.Pager.InterBatchDelayMs) * time.Millisecond,
	}
	engine := catalog.NewEngine(catalog.NewPager(fetcher, retry, pagerCfg, nil, logger))

	var (
		queries   catalog.QueryStore
		snapshots catalog.SnapshotStore
		users     catalog.UserStore
	)
	if cfg.DB.DSN != "" {
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetimeMin) * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.pool = pool
		if queries, err = postgres.NewQueryStore(pool); err != nil {
			return nil, fmt.Errorf("init query store: %w", err)
		}
		if snapshots, err = postgres.NewSnapshotStore(pool); err != nil {
			return nil, fmt.Errorf("init snapshot store: %w", err)
		}
		if users, err = postgres.NewUserStore(pool); err != nil {
			return nil, fmt.Errorf("init user store: %w", err)
		}
	} else {
		return nil, fmt.Errorf("db.dsn is required")
	}

	var sink report.Sink = report.NoOpSink{}
	if cfg.Report.Enabled {
		sheetSink, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.Report.SpreadsheetID,
			CredentialsFile: cfg.Report.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("init report sink: %w", err)
		}
		sink = sheetSink
		logger.Info("report sink enabled", zap.String("spreadsheet", cfg.Report.SpreadsheetID))
	}
	exporter := report.NewExporter(sink, cfg.Report.RatePerSecond, cfg.Report.RateBurst, logger)

	if cfg.PubSub.ProjectID != "" {
		pub, err := pubsub.New(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.publisher = pub
		logger.Info("snapshot events enabled", zap.String("topic", cfg.PubSub.TopicName))
	} else {
		a.publisher = memory.New()
	}

	a.Scheduler = scheduler.New(
		scheduler.Config{
			CronSpec:        cfg.Scheduler.CronSpec,
			BatchSize:       cfg.Scheduler.BatchSize,
			InterBatchDelay: time.Duration(cfg.Scheduler.InterBatchDelaySec) * time.Second,
			EventTopic:      cfg.PubSub.TopicName,
		},
		engine,
		combinator.New(queries),
		users,
		snapshots,
		exporter,
		a.publisher,
		nil,
		logger,
	)
	a.Server = api.NewServer(a.Scheduler, snapshots, cfg, logger)

	logger.Info("application services initialized")
	return a, nil
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if closer, ok := a.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn("error closing publisher", zap.Error(err))
		}
	}
	if closer, ok := a.archiver.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn("error closing archive client", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
