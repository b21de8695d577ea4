package render

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FrontierDigest/internal/config"
	"FrontierDigest/internal/domain"
)

func testSite(t *testing.T) config.SiteConfig {
	t.Helper()
	return config.SiteConfig{
		Title:       "AI Frontier Digest",
		OutputDir:   t.TempDir(),
		HistoryDays: 7,
	}
}

func testRecord(date string) domain.DayRecord {
	return domain.DayRecord{
		Date:        date,
		GeneratedAt: time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC),
		SourceCount: 5,
		Items: []domain.CuratedItem{
			{
				ArticleID:    "a1",
				Source:       "Feed",
				Title:        "A <Bold> Launch",
				URL:          "https://example.org/launch",
				Summary:      "A model launched.",
				Reasons:      []domain.ReasonTag{domain.ReasonNew, domain.ReasonDeep},
				CoreContent:  "Core.",
				WhatYouLearn: "Lesson.",
				ActionAdvice: "Try it.",
			},
		},
	}
}

func TestRenderWritesSite(t *testing.T) {
	t.Parallel()

	site := testSite(t)
	renderer, err := NewRenderer(site, nil)
	if err != nil {
		t.Fatalf("NewRenderer error: %v", err)
	}

	rec := testRecord("2026-09-01")
	if err := renderer.Render(context.Background(), rec, []domain.DayRecord{rec}); err != nil {
		t.Fatalf("Render error: %v", err)
	}

	page, err := os.ReadFile(filepath.Join(site.OutputDir, "daily", "2026-09-01", "index.html"))
	if err != nil {
		t.Fatalf("daily page missing: %v", err)
	}
	if !strings.Contains(string(page), "A &lt;Bold&gt; Launch") {
		t.Fatal("daily page does not escape the item title")
	}
	if !strings.Contains(string(page), "https://example.org/launch") {
		t.Fatal("daily page misses the item link")
	}

	index, err := os.ReadFile(filepath.Join(site.OutputDir, "index.html"))
	if err != nil {
		t.Fatalf("root index missing: %v", err)
	}
	if !strings.Contains(string(index), "url=daily/2026-09-01/") {
		t.Fatal("root index does not redirect to today")
	}
}

func TestRenderWritesDayData(t *testing.T) {
	t.Parallel()

	site := testSite(t)
	renderer, err := NewRenderer(site, nil)
	if err != nil {
		t.Fatalf("NewRenderer error: %v", err)
	}

	rec := testRecord("2026-09-01")
	rec.FailedSources = nil
	if err := renderer.Render(context.Background(), rec, nil); err != nil {
		t.Fatalf("Render error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(site.OutputDir, "data", "2026-09-01.json"))
	if err != nil {
		t.Fatalf("data file missing: %v", err)
	}

	var decoded struct {
		Date          string   `json:"date"`
		GeneratedAt   string   `json:"generated_at"`
		FailedSources []string `json:"failed_sources"`
		Items         []struct {
			ArticleID string   `json:"article_id"`
			Reasons   []string `json:"reasons"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("data file is not JSON: %v", err)
	}

	if decoded.Date != "2026-09-01" {
		t.Fatalf("unexpected date: %s", decoded.Date)
	}
	if decoded.FailedSources == nil {
		t.Fatal("failed_sources must encode as an empty array, not null")
	}
	if len(decoded.Items) != 1 || decoded.Items[0].ArticleID != "a1" {
		t.Fatalf("unexpected items: %+v", decoded.Items)
	}
	if len(decoded.Items[0].Reasons) != 2 {
		t.Fatalf("unexpected reasons: %v", decoded.Items[0].Reasons)
	}
}

func TestRenderPrunesStaleOutputs(t *testing.T) {
	t.Parallel()

	site := testSite(t)
	renderer, err := NewRenderer(site, nil)
	if err != nil {
		t.Fatalf("NewRenderer error: %v", err)
	}
	ctx := context.Background()

	stale := testRecord("2026-08-01")
	if err := renderer.Render(ctx, stale, nil); err != nil {
		t.Fatalf("render stale day: %v", err)
	}

	today := testRecord("2026-09-01")
	if err := renderer.Render(ctx, today, nil); err != nil {
		t.Fatalf("render today: %v", err)
	}

	if _, err := os.Stat(filepath.Join(site.OutputDir, "daily", "2026-08-01")); !os.IsNotExist(err) {
		t.Fatal("stale daily page survived pruning")
	}
	if _, err := os.Stat(filepath.Join(site.OutputDir, "data", "2026-08-01.json")); !os.IsNotExist(err) {
		t.Fatal("stale data file survived pruning")
	}
	if _, err := os.Stat(filepath.Join(site.OutputDir, "daily", "2026-09-01", "index.html")); err != nil {
		t.Fatalf("today's page missing after pruning: %v", err)
	}
}

func TestRenderKeepsHistoryWindow(t *testing.T) {
	t.Parallel()

	site := testSite(t)
	renderer, err := NewRenderer(site, nil)
	if err != nil {
		t.Fatalf("NewRenderer error: %v", err)
	}
	ctx := context.Background()

	// The window edge itself is kept, one day earlier is pruned.
	dropped := testRecord("2026-08-24")
	edge := testRecord("2026-08-25")
	for _, rec := range []domain.DayRecord{dropped, edge} {
		if err := renderer.Render(ctx, rec, nil); err != nil {
			t.Fatalf("render %s: %v", rec.Date, err)
		}
	}

	if err := renderer.Render(ctx, testRecord("2026-09-01"), nil); err != nil {
		t.Fatalf("render today: %v", err)
	}

	if _, err := os.Stat(filepath.Join(site.OutputDir, "daily", "2026-08-25")); err != nil {
		t.Fatalf("window-edge page pruned: %v", err)
	}
	if _, err := os.Stat(filepath.Join(site.OutputDir, "daily", "2026-08-24")); !os.IsNotExist(err) {
		t.Fatal("out-of-window page survived pruning")
	}
}
