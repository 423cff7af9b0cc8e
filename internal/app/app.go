// Package app wires the catalog, pipeline and query surfaces from a Config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ganot/simcatalog/internal/config"
	"github.com/ganot/simcatalog/internal/converter"
	"github.com/ganot/simcatalog/internal/dataset"
	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/mcp"
	"github.com/ganot/simcatalog/internal/notify"
	"github.com/ganot/simcatalog/internal/objectstore"
	"github.com/ganot/simcatalog/internal/postgres"
	"github.com/ganot/simcatalog/internal/query"
	"github.com/ganot/simcatalog/internal/sqlite"
	"github.com/ganot/simcatalog/internal/transport"
	"github.com/ganot/simcatalog/internal/watcher"
)

// Version is reported by the MCP server.
const Version = "0.1.0"

// App holds every long-lived component of a running catalog.
type App struct {
	Config     config.Config
	Catalog    *simulation.Service
	Events     *notify.EventLog
	Dispatcher *notify.Dispatcher
	Store      *dataset.Store
	Converter  *converter.Converter
	Queries    *query.Engine
	Watcher    *watcher.Watcher
	Handler    http.Handler

	logger  *slog.Logger
	closers []func()
}

// Catalog is the storage half of the app: the record service and event log
// over one database.
type Catalog struct {
	Simulations *simulation.Service
	Events      *notify.EventLog
	Close       func() error
}

// OpenCatalog opens and migrates the configured catalog database.
func OpenCatalog(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*Catalog, error) {
	var (
		simRepo   simulation.Repository
		eventRepo notify.Repository
		closeFn   func() error
	)
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, postgres.DefaultConfig(cfg.URL))
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		simRepo = postgres.NewSimulationRepository(db)
		eventRepo = postgres.NewEventRepository(db)
		closeFn = db.Close
	default:
		if err := ensureDBDir(cfg.Path); err != nil {
			return nil, fmt.Errorf("prepare database path: %w", err)
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.RunMigrations(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		simRepo = sqlite.NewSimulationRepository(db)
		eventRepo = sqlite.NewEventRepository(db)
		closeFn = db.Close
	}
	return &Catalog{
		Simulations: simulation.NewService(simRepo, logger),
		Events:      notify.NewEventLog(eventRepo, logger),
		Close:       closeFn,
	}, nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// New builds the full stack. The notifier is started; call Close to drain it
// and release the database.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &App{Config: cfg, logger: logger}

	catalog, err := OpenCatalog(ctx, cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := catalog.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			logger.Warn("closing catalog", "error", err)
		}
	})
	a.Catalog = catalog.Simulations
	a.Events = catalog.Events

	sinks, err := a.sinks(cfg.Notify)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dispatcher = notify.NewDispatcher(logger, cfg.Notify.BufferSize, sinks...)
	a.Dispatcher.Start()
	// Drain events before the database closes.
	a.closers = append([]func(){a.Dispatcher.Close}, a.closers...)

	a.Store = dataset.NewStore(cfg.Watcher.ProcessedDir)
	a.Converter = converter.New(a.Store, logger, converter.Options{MinSizeBytes: cfg.Watcher.MinSizeBytes})
	a.Queries = query.NewEngine(a.Catalog, a.Store, cfg.Query.Timeout, logger)

	opts := []watcher.Option{watcher.WithNotifier(a.Dispatcher)}
	if cfg.ObjectStore.Enabled {
		mirror, err := newMirror(ctx, cfg.ObjectStore, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, watcher.WithMirror(mirror))
	}
	a.Watcher, err = watcher.New(WatcherConfig(cfg.Watcher), a.Converter, a.Catalog, logger, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	mcpServer := mcp.NewServer(mcp.Config{Queries: a.Queries, Version: Version, Logger: logger})
	a.Handler = transport.NewServer(transport.Deps{
		Queries:  a.Queries,
		Catalog:  a.Catalog,
		Events:   a.Events,
		Pipeline: a.Watcher,
		MCP:      mcp.NewHTTPHandler(mcpServer),
		Logger:   logger,
	})
	return a, nil
}

func (a *App) sinks(cfg config.NotifyConfig) ([]notify.Sink, error) {
	sinks := []notify.Sink{
		notify.NewLogSink(a.logger),
		notify.NewStoreSink(a.Events),
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.WebhookURL, cfg.WebhookTimeout))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		sinks = append(sinks, kafka)
		a.closers = append(a.closers, kafka.Close)
	}
	return sinks, nil
}

func newMirror(ctx context.Context, cfg config.ObjectStoreConfig, logger *slog.Logger) (*objectstore.Mirror, error) {
	osCfg := objectstore.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Prefix:    cfg.Prefix,
	}
	client, err := objectstore.NewMinIOClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}
	if err := objectstore.EnsureBucket(ctx, client, osCfg); err != nil {
		return nil, fmt.Errorf("object store bucket: %w", err)
	}
	return objectstore.NewMirror(client, osCfg, logger)
}

// WatcherConfig converts the file configuration to watcher settings.
func WatcherConfig(c config.WatcherConfig) watcher.Config {
	return watcher.Config{
		InputDir:       c.InputDir,
		QuarantineDir:  c.QuarantineDir,
		Debounce:       c.Debounce,
		RescanInterval: c.RescanInterval,
		Workers:        c.Workers,
		QueueSize:      c.QueueSize,
		ConvertTimeout: c.ConvertTimeout,
		MaxAttempts:    c.MaxAttempts,
		BackoffBase:    c.BackoffBase,
		BackoffMax:     c.BackoffMax,
	}
}

// Run runs the ingestion pipeline until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.Watcher.Run(ctx)
}

// Close drains the notifier and releases resources in order.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}
