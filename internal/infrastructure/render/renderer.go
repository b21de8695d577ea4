package render

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"FrontierDigest/internal/config"
	"FrontierDigest/internal/domain"
	"FrontierDigest/internal/ports"
)

//go:embed templates/daily.html.tmpl
var templateFS embed.FS

// Renderer writes the static site: one page per day, a machine-readable
// data file per day, and a root index redirecting to today.
type Renderer struct {
	site   config.SiteConfig
	tmpl   *template.Template
	logger *slog.Logger
}

var _ ports.Renderer = (*Renderer)(nil)

// NewRenderer parses the embedded page template.
func NewRenderer(site config.SiteConfig, logger *slog.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/daily.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return &Renderer{site: site, tmpl: tmpl, logger: logger}, nil
}

type pageData struct {
	Site    config.SiteConfig
	Record  domain.DayRecord
	History []domain.DayRecord
}

// Render publishes today's record plus the history window and prunes
// outputs that fell out of it.
func (r *Renderer) Render(ctx context.Context, today domain.DayRecord, history []domain.DayRecord) error {
	if err := r.writeData(today); err != nil {
		return err
	}

	if err := r.writeDailyPage(today, history); err != nil {
		return err
	}

	if err := r.writeIndex(today.Date); err != nil {
		return err
	}

	r.pruneOld(today.Date)

	r.debug("site rendered", "date", today.Date, "items", len(today.Items))
	return nil
}

func (r *Renderer) writeData(rec domain.DayRecord) error {
	dir := filepath.Join(r.site.OutputDir, "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	raw, err := json.MarshalIndent(recordJSON(rec), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal day data: %w", err)
	}

	path := filepath.Join(dir, rec.Date+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write day data: %w", err)
	}
	return nil
}

func (r *Renderer) writeDailyPage(rec domain.DayRecord, history []domain.DayRecord) error {
	dir := filepath.Join(r.site.OutputDir, "daily", rec.Date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create daily dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "index.html"))
	if err != nil {
		return fmt.Errorf("create daily page: %w", err)
	}
	defer f.Close()

	data := pageData{Site: r.site, Record: rec, History: history}
	if err := r.tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("render daily page: %w", err)
	}
	return nil
}

func (r *Renderer) writeIndex(date string) error {
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta http-equiv="refresh" content="0;url=daily/%s/">
    <title>%s</title>
</head>
<body>
    <p>Redirecting to today's digest...</p>
    <p>If nothing happens, <a href="daily/%s/">click here</a>.</p>
</body>
</html>
`, date, template.HTMLEscapeString(r.site.Title), date)

	path := filepath.Join(r.site.OutputDir, "index.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// pruneOld drops data files and daily pages older than the history window.
// Best-effort: a failed removal only logs.
func (r *Renderer) pruneOld(today string) {
	days := r.site.HistoryDays
	if days <= 0 {
		return
	}

	todayDate, err := time.Parse("2006-01-02", today)
	if err != nil {
		return
	}
	cutoff := todayDate.AddDate(0, 0, -days)

	dataDir := filepath.Join(r.site.OutputDir, "data")
	entries, _ := os.ReadDir(dataDir)
	for _, entry := range entries {
		name := entry.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		r.removeIfStale(filepath.Join(dataDir, name), name[:len(name)-len(".json")], cutoff)
	}

	dailyDir := filepath.Join(r.site.OutputDir, "daily")
	entries, _ = os.ReadDir(dailyDir)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r.removeIfStale(filepath.Join(dailyDir, entry.Name()), entry.Name(), cutoff)
	}
}

func (r *Renderer) removeIfStale(path, dateName string, cutoff time.Time) {
	date, err := time.Parse("2006-01-02", dateName)
	if err != nil || !date.Before(cutoff) {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		r.warn("cannot prune output", "path", path, "error", err)
		return
	}
	r.debug("pruned stale output", "path", path)
}

type itemJSON struct {
	ArticleID    string   `json:"article_id"`
	Source       string   `json:"source"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Summary      string   `json:"summary"`
	Reasons      []string `json:"reasons"`
	CoreContent  string   `json:"core_content,omitempty"`
	WhatYouLearn string   `json:"what_you_learn,omitempty"`
	ActionAdvice string   `json:"action_advice,omitempty"`
}

type dayJSON struct {
	Date          string     `json:"date"`
	GeneratedAt   string     `json:"generated_at"`
	SourceCount   int        `json:"source_count"`
	FailedSources []string   `json:"failed_sources"`
	Items         []itemJSON `json:"items"`
}

func recordJSON(rec domain.DayRecord) dayJSON {
	out := dayJSON{
		Date:          rec.Date,
		GeneratedAt:   rec.GeneratedAt.UTC().Format(time.RFC3339),
		SourceCount:   rec.SourceCount,
		FailedSources: rec.FailedSources,
		Items:         make([]itemJSON, 0, len(rec.Items)),
	}
	if out.FailedSources == nil {
		out.FailedSources = []string{}
	}

	for _, item := range rec.Items {
		reasons := make([]string, len(item.Reasons))
		for i, tag := range item.Reasons {
			reasons[i] = string(tag)
		}
		out.Items = append(out.Items, itemJSON{
			ArticleID:    item.ArticleID,
			Source:       item.Source,
			Title:        item.Title,
			URL:          item.URL,
			Summary:      item.Summary,
			Reasons:      reasons,
			CoreContent:  item.CoreContent,
			WhatYouLearn: item.WhatYouLearn,
			ActionAdvice: item.ActionAdvice,
		})
	}

	return out
}

func (r *Renderer) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Renderer) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
