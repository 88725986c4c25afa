package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/ai"
	"github.com/applypilot/applypilot/internal/config"
	"github.com/applypilot/applypilot/internal/database"
	"github.com/applypilot/applypilot/internal/pipeline"
	"github.com/applypilot/applypilot/internal/preparer"
	"github.com/applypilot/applypilot/internal/queue"
	"github.com/applypilot/applypilot/internal/scheduler"
	"github.com/applypilot/applypilot/internal/source"
)

// App wires every component together and owns their lifetimes. Commands
// receive an *App and pick the collaborators they need.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *database.Store
	Generator ai.Generator
	Sources   []source.Source
	Preparer  *preparer.Preparer
	Worker    *pipeline.Worker
	Scheduler *scheduler.Scheduler
	Queue     *queue.Service
}

// New loads configuration, opens the database, and constructs the full
// component graph.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dataDir, err := dataDir()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := database.NewStore(db, logger)

	// Runs left unfinished by a previous process would wedge their profiles
	// behind the overlap guard. At startup no cycle can still be live.
	if n, err := store.FailStaleRuns(context.Background(), time.Now().UTC()); err != nil {
		logger.Warn("stale run reconciliation failed", zap.Error(err))
	} else if n > 0 {
		logger.Warn("failed runs abandoned by a previous process", zap.Int("count", n))
	}

	generator := ai.NewClient(cfg)
	sources := []source.Source{
		source.WithRetry(source.NewBoardScraper(logger), logger),
		source.WithRetry(source.NewGlassdoorScraper(logger), logger),
	}

	prep := preparer.New(store, generator, logger)
	worker := pipeline.NewWorker(store, sources, prep, cfg, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Generator: generator,
		Sources:   sources,
		Preparer:  prep,
		Worker:    worker,
		Scheduler: scheduler.New(worker, store, cfg, logger),
		Queue:     queue.NewService(store, logger),
	}, nil
}

// Close flushes the logger and releases the database handle.
func (a *App) Close() error {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	if a.Store != nil {
		return a.Store.DB().Close()
	}
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	return zcfg.Build()
}

func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".applypilot")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}
