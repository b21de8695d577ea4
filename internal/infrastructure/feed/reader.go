package feed

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"FrontierDigest/internal/config"
	"FrontierDigest/internal/domain"
	"FrontierDigest/internal/ports"
)

const excerptRunes = 300

// Reader fetches and parses every configured feed into normalized articles.
// A single failing feed is recorded in the report, never escalated.
type Reader struct {
	feeds  []config.FeedConfig
	limits config.LimitsConfig
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ ports.FeedSource = (*Reader)(nil)

// NewReader wires the configured feed list; client may be nil.
func NewReader(feeds []config.FeedConfig, limits config.LimitsConfig, client *http.Client, logger *slog.Logger) *Reader {
	if client == nil {
		client = &http.Client{Timeout: limits.Timeout()}
	}

	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "FrontierDigest/1.0"

	return &Reader{
		feeds:  feeds,
		limits: limits,
		parser: parser,
		logger: logger,
	}
}

// FetchAll reads every feed with a bounded worker pool. The merged result
// preserves the configured feed order so downstream dedup stays
// deterministic regardless of fetch timing.
func (r *Reader) FetchAll(ctx context.Context, now time.Time) (domain.FetchReport, error) {
	type outcome struct {
		articles []domain.Article
		err      error
	}

	workers := r.limits.FetchWorkers
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	outcomes := make([]outcome, len(r.feeds))

	for i, fc := range r.feeds {
		wg.Add(1)
		go func(slot int, fc config.FeedConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			articles, err := r.fetchOne(ctx, fc, now)
			outcomes[slot] = outcome{articles: articles, err: err}
		}(i, fc)
	}
	wg.Wait()

	report := domain.FetchReport{}
	for i, fc := range r.feeds {
		if outcomes[i].err != nil {
			r.warn("feed failed", "feed", fc.Name, "error", outcomes[i].err)
			report.FailedSources = append(report.FailedSources, fc.Name)
			continue
		}
		report.SourceCount++
		report.Articles = append(report.Articles, outcomes[i].articles...)
	}

	r.debug("fetch all done",
		"feeds", len(r.feeds),
		"fetched", report.SourceCount,
		"failed", len(report.FailedSources),
		"articles", len(report.Articles))

	return report, nil
}

func (r *Reader) fetchOne(ctx context.Context, fc config.FeedConfig, now time.Time) ([]domain.Article, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.limits.Timeout())
	defer cancel()

	parsed, err := r.parser.ParseURLWithContext(fc.URL, fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", fc.URL, err)
	}

	maxEntries := r.limits.MaxPerFeed
	if maxEntries <= 0 {
		maxEntries = len(parsed.Items)
	}
	cutoff := now.Add(-r.limits.Freshness())

	articles := make([]domain.Article, 0, maxEntries)
	for _, item := range parsed.Items {
		if len(articles) >= maxEntries {
			break
		}
		if item == nil || item.Title == "" || item.Link == "" {
			continue
		}

		published := now
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		if published.Before(cutoff) {
			continue
		}

		raw := item.Content
		if raw == "" {
			raw = item.Description
		}

		articles = append(articles, domain.Article{
			ID:          articleID(fc.Name, item),
			Source:      fc.Name,
			Title:       strings.TrimSpace(item.Title),
			URL:         item.Link,
			SummaryRaw:  truncate(extractText(raw), excerptRunes),
			PublishedAt: published,
		})
	}

	r.debug("feed fetched", "feed", fc.Name, "entries", len(parsed.Items), "kept", len(articles))
	return articles, nil
}

// articleID derives a stable identity from the feed name and the entry
// GUID, falling back to the link when the feed provides none.
func articleID(source string, item *gofeed.Item) string {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	h := sha256.Sum256([]byte(source + "|" + key))
	return fmt.Sprintf("%x", h[:16])
}

func extractText(raw string) string {
	if raw == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func (r *Reader) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Reader) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
