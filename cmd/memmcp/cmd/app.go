package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/memmcp/memmcp/internal/chunk"
	"github.com/memmcp/memmcp/internal/config"
	"github.com/memmcp/memmcp/internal/embed"
	"github.com/memmcp/memmcp/internal/errors"
	"github.com/memmcp/memmcp/internal/files"
	"github.com/memmcp/memmcp/internal/logging"
	"github.com/memmcp/memmcp/internal/markdown"
	"github.com/memmcp/memmcp/internal/memory"
	"github.com/memmcp/memmcp/internal/search"
	"github.com/memmcp/memmcp/internal/store"
	filesync "github.com/memmcp/memmcp/internal/sync"
	"github.com/memmcp/memmcp/internal/watcher"
)

// app holds the wired service components. File-only mode leaves db,
// embedder, service, and watch nil; engine and syncer are then the
// unavailable/noop fallbacks.
type app struct {
	cfg     *config.Config
	files   *files.Store
	index   *files.Index
	manager *memory.Manager
	engine  search.SearchEngine
	syncer  filesync.Syncer

	db       *store.Postgres
	embedder embed.Embedder
	service  *filesync.Service
	watch    *watcher.Watcher

	logClose func()
}

// buildOptions controls which optional pieces buildApp starts.
type buildOptions struct {
	// startSync launches the sync worker pool and, when configured, the
	// file watcher. One-shot commands leave it off.
	startSync bool

	// skipDatabase forces file-only wiring even when the configuration
	// enables the database. The status command uses it so an
	// unreachable database is reported instead of failing the command.
	skipDatabase bool
}

// buildApp wires the service from configuration: markdown store and
// JSON index always, plus the Postgres index, embedder, search engine,
// and sync service in indexed mode.
func buildApp(ctx context.Context, opts buildOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logClose, err := logging.SetupDefault(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		WriteToStderr: true,
	})
	if err != nil {
		return nil, err
	}

	fs, err := files.NewStore(cfg.MemoryPath())
	if err != nil {
		logClose()
		return nil, err
	}
	index := files.NewIndex(fs.Root())

	a := &app{
		cfg:      cfg,
		files:    fs,
		index:    index,
		engine:   search.Unavailable{},
		syncer:   filesync.Noop{},
		logClose: logClose,
	}

	if cfg.Database.Enabled && !opts.skipDatabase {
		if err := a.wireIndexed(ctx); err != nil {
			logClose()
			return nil, err
		}
	}

	var truncater memory.Truncater
	if a.db != nil {
		truncater = a.db
	}
	a.manager = memory.NewManager(fs, index, markdown.NewMainIndex(fs), a.syncer, truncater)

	if opts.startSync && a.service != nil {
		a.service.Start(ctx)
		if cfg.Files.WatchEnabled {
			if err := a.startWatcher(ctx); err != nil {
				slog.Warn("file watcher unavailable", "error", err)
			}
		}
	}

	return a, nil
}

// wireIndexed connects the Postgres store and builds the embedder,
// search engine, and sync service on top of it.
func (a *app) wireIndexed(ctx context.Context) error {
	cfg := a.cfg

	db, err := store.New(ctx, cfg.DatabaseURL(), cfg.Database.PoolMin, cfg.Database.PoolMax)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	// embed.New already wraps the provider in the LRU cache when
	// CacheSize allows it.
	embedder, err := embed.New(cfg.Embedding)
	if err != nil {
		db.Close()
		return fmt.Errorf("create embedder: %w", err)
	}

	if err := db.EnsureSchema(ctx, embedder.Dimensions()); err != nil {
		db.Close()
		return fmt.Errorf("ensure schema: %w", err)
	}

	chunker, err := chunk.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		db.Close()
		return err
	}

	engine, err := search.NewEngine(db, embedder, search.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		RRFConstant:  cfg.Search.RRFK,
	})
	if err != nil {
		db.Close()
		return err
	}

	service := filesync.NewService(db, embedder, chunker, a.files, a.index, filesync.Config{
		Workers:   cfg.Sync.Workers,
		QueueSize: cfg.Sync.QueueSize,
		Interval:  time.Duration(cfg.Sync.IntervalSeconds) * time.Second,
		Retry: errors.RetryConfig{
			MaxRetries:   cfg.Sync.MaxRetries,
			InitialDelay: time.Second,
			MaxDelay:     16 * time.Second,
			Multiplier:   cfg.Sync.BackoffFactor,
			Jitter:       true,
		},
	})

	a.db = db
	a.embedder = embedder
	a.engine = engine
	a.service = service
	a.syncer = service
	return nil
}

// startWatcher begins routing external file edits into the sync
// service.
func (a *app) startWatcher(ctx context.Context) error {
	w, err := watcher.New(a.files.Root(), a.syncer, watcher.Options{})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	a.watch = w
	return nil
}

// Close shuts components down in reverse wiring order.
func (a *app) Close() {
	if a.watch != nil {
		a.watch.Stop()
	}
	if a.service != nil {
		a.service.Stop()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.logClose != nil {
		a.logClose()
	}
}
