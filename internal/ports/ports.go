package ports

import (
	"context"
	"time"

	"FrontierDigest/internal/domain"
)

// FeedSource pulls fresh articles from every configured feed. One feed's
// failure never aborts the rest; failed sources are reported, not returned
// as an error.
type FeedSource interface {
	FetchAll(ctx context.Context, now time.Time) (domain.FetchReport, error)
}

// SeenIndex tracks article ids already surfaced by a prior digest.
type SeenIndex interface {
	Seen(ctx context.Context, ids []string) (map[string]bool, error)
}

// Curator selects and summarizes the day's most valuable articles.
type Curator interface {
	Curate(ctx context.Context, candidates []domain.Article) ([]domain.CuratedItem, error)
}

// DayStore persists one DayRecord per calendar date and atomically extends
// the seen index with the committed item ids.
type DayStore interface {
	SeenIndex
	Commit(ctx context.Context, rec domain.DayRecord) error
	History(ctx context.Context, n int) ([]domain.DayRecord, error)
	PruneSeen(ctx context.Context, olderThan time.Time) error
}

// Renderer publishes the day's record plus a history window as static pages.
type Renderer interface {
	Render(ctx context.Context, today domain.DayRecord, history []domain.DayRecord) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
