package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FrontierDigest/internal/config"
	"FrontierDigest/internal/infrastructure/feed"
	"FrontierDigest/internal/infrastructure/llm"
	"FrontierDigest/internal/infrastructure/render"
	"FrontierDigest/internal/infrastructure/scheduler"
	"FrontierDigest/internal/infrastructure/storage"
	"FrontierDigest/internal/logging"
	"FrontierDigest/internal/usecase"
)

// Application wires config to adapters, the pipeline, and its scheduler.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.SQLiteStore
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
}

// New builds a runnable application instance. The curator is mandatory:
// without an API key a run could never publish, so we fail fast here.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.File)
	}

	if cfg.AI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not configured")
	}

	store, err := storage.Open(cfg.Store.Path, baseLogger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("open day store: %w", err)
	}

	renderer, err := render.NewRenderer(cfg.Site, baseLogger.With("component", "render"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	source := feed.NewReader(cfg.Feeds, cfg.Limits, nil, baseLogger.With("component", "feed"))
	curator := llm.NewCurator(cfg.AI, nil, baseLogger.With("component", "curator"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:        source,
		Curator:       curator,
		Store:         store,
		Renderer:      renderer,
		SeenRetention: time.Duration(cfg.Store.SeenRetentionDays) * 24 * time.Hour,
		HistoryDays:   cfg.Site.HistoryDays,
		Logger:        baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewDailyScheduler(cfg.Scheduler.RunTime, cfg.Scheduler.Location())

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline, baseLogger.With("component", "scheduler")),
	}, nil
}

// RunOnce executes a single pipeline run for today in the configured zone.
func (a *Application) RunOnce(ctx context.Context) error {
	now := time.Now().In(a.cfg.Scheduler.Location())
	return a.pipeline.RunOnce(ctx, now)
}

// RunScheduled blocks running the daily schedule until ctx is canceled.
func (a *Application) RunScheduled(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.logger.Info("scheduler started",
		"run_time", a.cfg.Scheduler.RunTime,
		"timezone", a.cfg.Scheduler.Timezone)

	<-ctx.Done()
	return a.scheduler.Stop(context.Background())
}

// Close releases the application's persistent resources.
func (a *Application) Close() error {
	return a.store.Close()
}
