package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FrontierDigest/internal/domain"
)

type fakeSource struct {
	report domain.FetchReport
	err    error
}

func (f *fakeSource) FetchAll(ctx context.Context, now time.Time) (domain.FetchReport, error) {
	return f.report, f.err
}

type fakeCurator struct {
	items      []domain.CuratedItem
	err        error
	candidates []domain.Article
}

func (f *fakeCurator) Curate(ctx context.Context, candidates []domain.Article) ([]domain.CuratedItem, error) {
	f.candidates = candidates
	return f.items, f.err
}

type fakeStore struct {
	seen       map[string]bool
	seenErr    error
	commitErr  error
	committed  []domain.DayRecord
	history    []domain.DayRecord
	historyErr error
	pruned     []time.Time
	pruneErr   error
}

func (f *fakeStore) Seen(ctx context.Context, ids []string) (map[string]bool, error) {
	if f.seenErr != nil {
		return nil, f.seenErr
	}
	result := make(map[string]bool)
	for _, id := range ids {
		if f.seen[id] {
			result[id] = true
		}
	}
	return result, nil
}

func (f *fakeStore) Commit(ctx context.Context, rec domain.DayRecord) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, rec)
	return nil
}

func (f *fakeStore) History(ctx context.Context, n int) ([]domain.DayRecord, error) {
	return f.history, f.historyErr
}

func (f *fakeStore) PruneSeen(ctx context.Context, olderThan time.Time) error {
	f.pruned = append(f.pruned, olderThan)
	return f.pruneErr
}

type fakeRenderer struct {
	err      error
	today    domain.DayRecord
	history  []domain.DayRecord
	rendered int
}

func (f *fakeRenderer) Render(ctx context.Context, today domain.DayRecord, history []domain.DayRecord) error {
	f.rendered++
	f.today = today
	f.history = history
	return f.err
}

func articles(ids ...string) []domain.Article {
	out := make([]domain.Article, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Article{ID: id, Title: "Title " + id})
	}
	return out
}

func runDay() time.Time {
	return time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC)
}

func TestRunOnceHappyPath(t *testing.T) {
	t.Parallel()

	source := &fakeSource{report: domain.FetchReport{
		Articles:    articles("a", "b", "c"),
		SourceCount: 2,
	}}
	curator := &fakeCurator{items: []domain.CuratedItem{{ArticleID: "b", Title: "Title b"}}}
	store := &fakeStore{seen: map[string]bool{"a": true}}
	renderer := &fakeRenderer{}

	pipeline := NewPipeline(PipelineDeps{
		Source:   source,
		Curator:  curator,
		Store:    store,
		Renderer: renderer,
		Now:      runDay,
	})

	if err := pipeline.RunOnce(context.Background(), runDay()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	// Seen articles never reach the curator.
	if len(curator.candidates) != 2 || curator.candidates[0].ID != "b" {
		t.Fatalf("unexpected candidates: %+v", curator.candidates)
	}

	if len(store.committed) != 1 {
		t.Fatalf("expected one commit, got %d", len(store.committed))
	}
	rec := store.committed[0]
	if rec.Date != "2026-09-01" || rec.SourceCount != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Items) != 1 || rec.Items[0].ArticleID != "b" {
		t.Fatalf("unexpected items: %+v", rec.Items)
	}

	if renderer.rendered != 1 || renderer.today.Date != "2026-09-01" {
		t.Fatalf("renderer not invoked with today's record: %+v", renderer.today)
	}
}

func TestRunOnceCuratorFailureCommitsNothing(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("model unreachable")
	source := &fakeSource{report: domain.FetchReport{Articles: articles("a")}}
	store := &fakeStore{}
	renderer := &fakeRenderer{}

	pipeline := NewPipeline(PipelineDeps{
		Source:   source,
		Curator:  &fakeCurator{err: wantErr},
		Store:    store,
		Renderer: renderer,
		Now:      runDay,
	})

	err := pipeline.RunOnce(context.Background(), runDay())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected curator error, got %v", err)
	}
	if len(store.committed) != 0 {
		t.Fatal("commit must not happen after a curator failure")
	}
	if renderer.rendered != 0 {
		t.Fatal("render must not happen after a curator failure")
	}
}

func TestRunOnceCommitFailureSkipsRender(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("disk full")
	source := &fakeSource{report: domain.FetchReport{Articles: articles("a")}}
	renderer := &fakeRenderer{}

	pipeline := NewPipeline(PipelineDeps{
		Source:   source,
		Curator:  &fakeCurator{},
		Store:    &fakeStore{commitErr: wantErr},
		Renderer: renderer,
		Now:      runDay,
	})

	err := pipeline.RunOnce(context.Background(), runDay())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if renderer.rendered != 0 {
		t.Fatal("render must not happen after a commit failure")
	}
}

func TestRunOnceEmptySelectionStillCommits(t *testing.T) {
	t.Parallel()

	source := &fakeSource{report: domain.FetchReport{
		Articles:      articles("a"),
		SourceCount:   1,
		FailedSources: []string{"Broken"},
	}}
	store := &fakeStore{seen: map[string]bool{"a": true}}
	curator := &fakeCurator{}

	pipeline := NewPipeline(PipelineDeps{
		Source:  source,
		Curator: curator,
		Store:   store,
		Now:     runDay,
	})

	if err := pipeline.RunOnce(context.Background(), runDay()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	if len(curator.candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(curator.candidates))
	}
	if len(store.committed) != 1 || len(store.committed[0].Items) != 0 {
		t.Fatalf("expected an empty committed record, got %+v", store.committed)
	}
	if got := store.committed[0].FailedSources; len(got) != 1 || got[0] != "Broken" {
		t.Fatalf("failed sources not recorded: %v", got)
	}
}

func TestRunOnceRenderFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	source := &fakeSource{report: domain.FetchReport{Articles: articles("a")}}
	store := &fakeStore{}
	renderer := &fakeRenderer{err: errors.New("template broken")}

	pipeline := NewPipeline(PipelineDeps{
		Source:   source,
		Curator:  &fakeCurator{items: []domain.CuratedItem{{ArticleID: "a"}}},
		Store:    store,
		Renderer: renderer,
		Now:      runDay,
	})

	if err := pipeline.RunOnce(context.Background(), runDay()); err != nil {
		t.Fatalf("run must survive a render failure, got %v", err)
	}
	if len(store.committed) != 1 {
		t.Fatal("commit missing despite render failure")
	}
}

func TestRunOnceHistoryFailureFallsBackToToday(t *testing.T) {
	t.Parallel()

	source := &fakeSource{report: domain.FetchReport{Articles: articles("a")}}
	store := &fakeStore{historyErr: errors.New("corrupt index")}
	renderer := &fakeRenderer{}

	pipeline := NewPipeline(PipelineDeps{
		Source:   source,
		Curator:  &fakeCurator{items: []domain.CuratedItem{{ArticleID: "a"}}},
		Store:    store,
		Renderer: renderer,
		Now:      runDay,
	})

	if err := pipeline.RunOnce(context.Background(), runDay()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if renderer.rendered != 1 {
		t.Fatal("renderer not invoked")
	}
	if len(renderer.history) != 1 || renderer.history[0].Date != "2026-09-01" {
		t.Fatalf("expected today-only fallback history, got %+v", renderer.history)
	}
}

func TestRunOnceFetchFailureAborts(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("network down")
	store := &fakeStore{}

	pipeline := NewPipeline(PipelineDeps{
		Source:  &fakeSource{err: wantErr},
		Curator: &fakeCurator{},
		Store:   store,
		Now:     runDay,
	})

	err := pipeline.RunOnce(context.Background(), runDay())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(store.committed) != 0 {
		t.Fatal("commit must not happen after a fetch failure")
	}
}

func TestRunOncePrunesSeenAfterCommit(t *testing.T) {
	t.Parallel()

	source := &fakeSource{report: domain.FetchReport{Articles: articles("a")}}
	store := &fakeStore{}

	pipeline := NewPipeline(PipelineDeps{
		Source:        source,
		Curator:       &fakeCurator{},
		Store:         store,
		SeenRetention: 90 * 24 * time.Hour,
		Now:           runDay,
	})

	if err := pipeline.RunOnce(context.Background(), runDay()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if len(store.pruned) != 1 {
		t.Fatalf("expected one prune call, got %d", len(store.pruned))
	}
	want := runDay().Add(-90 * 24 * time.Hour)
	if !store.pruned[0].Equal(want) {
		t.Fatalf("prune cutoff = %s, want %s", store.pruned[0], want)
	}
}

func TestRunOnceRequiresCoreDeps(t *testing.T) {
	t.Parallel()

	pipeline := NewPipeline(PipelineDeps{Curator: &fakeCurator{}, Store: &fakeStore{}})
	if err := pipeline.RunOnce(context.Background(), runDay()); err == nil {
		t.Fatal("expected error without a feed source")
	}

	pipeline = NewPipeline(PipelineDeps{Source: &fakeSource{}, Store: &fakeStore{}})
	if err := pipeline.RunOnce(context.Background(), runDay()); err == nil {
		t.Fatal("expected error without a curator")
	}

	pipeline = NewPipeline(PipelineDeps{Source: &fakeSource{}, Curator: &fakeCurator{}})
	if err := pipeline.RunOnce(context.Background(), runDay()); err == nil {
		t.Fatal("expected error without a day store")
	}
}
