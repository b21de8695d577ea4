package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FrontierDigest/internal/dedup"
	"FrontierDigest/internal/domain"
	"FrontierDigest/internal/ports"
)

// PipelineDeps wires all driven adapters into the daily digest pipeline.
type PipelineDeps struct {
	Source        ports.FeedSource
	Curator       ports.Curator
	Store         ports.DayStore
	Renderer      ports.Renderer
	SeenRetention time.Duration
	HistoryDays   int
	Logger        *slog.Logger
	Now           func() time.Time
}

// Pipeline implements the fetch → dedupe → curate → commit → render run.
type Pipeline struct {
	source        ports.FeedSource
	curator       ports.Curator
	store         ports.DayStore
	renderer      ports.Renderer
	seenRetention time.Duration
	historyDays   int
	logger        *slog.Logger
	now           func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	historyDays := deps.HistoryDays
	if historyDays <= 0 {
		historyDays = 7
	}
	return &Pipeline{
		source:        deps.Source,
		curator:       deps.Curator,
		store:         deps.Store,
		renderer:      deps.Renderer,
		seenRetention: deps.SeenRetention,
		historyDays:   historyDays,
		logger:        deps.Logger,
		now:           now,
	}
}

// RunOnce executes one full pipeline run for the given day. A curator or
// commit failure aborts before any persistent state changes, so the run
// can be retried with the same unseen candidate set. Failures of
// individual feeds and of the renderer degrade gracefully.
func (p *Pipeline) RunOnce(ctx context.Context, day time.Time) error {
	switch {
	case p.source == nil:
		return fmt.Errorf("feed source is not configured")
	case p.curator == nil:
		return fmt.Errorf("curator is not configured")
	case p.store == nil:
		return fmt.Errorf("day store is not configured")
	}

	date := domain.DateKey(day)
	p.info("run started", "date", date)

	report, err := p.source.FetchAll(ctx, day)
	if err != nil {
		return fmt.Errorf("fetch feeds: %w", err)
	}

	ids := make([]string, len(report.Articles))
	for i, article := range report.Articles {
		ids[i] = article.ID
	}

	seen, err := p.store.Seen(ctx, ids)
	if err != nil {
		return fmt.Errorf("load seen index: %w", err)
	}

	candidates := dedup.Filter(report.Articles, seen)
	p.info("candidates ready",
		"fetched", len(report.Articles),
		"unseen", len(candidates),
		"failed_sources", len(report.FailedSources))

	items, err := p.curator.Curate(ctx, candidates)
	if err != nil {
		return fmt.Errorf("curate %s: %w", date, err)
	}

	rec := domain.DayRecord{
		Date:          date,
		Items:         items,
		GeneratedAt:   p.now(),
		SourceCount:   report.SourceCount,
		FailedSources: report.FailedSources,
	}

	if err := p.store.Commit(ctx, rec); err != nil {
		return fmt.Errorf("commit %s: %w", date, err)
	}

	if p.seenRetention > 0 {
		if err := p.store.PruneSeen(ctx, rec.GeneratedAt.Add(-p.seenRetention)); err != nil {
			p.warn("prune seen index", "error", err)
		}
	}

	p.render(ctx, rec)

	p.info("run finished", "date", date, "selected", len(items))
	return nil
}

// render publishes the static pages. The digest is already durable at
// this point, so renderer problems are logged rather than failing the run.
func (p *Pipeline) render(ctx context.Context, rec domain.DayRecord) {
	if p.renderer == nil {
		return
	}

	history, err := p.store.History(ctx, p.historyDays)
	if err != nil {
		p.warn("load history", "error", err)
		history = []domain.DayRecord{rec}
	}

	if err := p.renderer.Render(ctx, rec, history); err != nil {
		p.warn("render site", "error", err)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
