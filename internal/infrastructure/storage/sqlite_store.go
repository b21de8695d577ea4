package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"FrontierDigest/internal/domain"
	"FrontierDigest/internal/ports"
)

// SQLiteStore persists day records and the seen-article index in one
// database file, so a commit can extend both inside a single transaction.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.DayStore = (*SQLiteStore)(nil)

// Open creates the database file (and parent directory) if needed and
// ensures the schema exists.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS day_records (
			date           TEXT PRIMARY KEY,
			generated_at   TEXT NOT NULL,
			source_count   INTEGER NOT NULL,
			failed_sources TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS day_items (
			date           TEXT NOT NULL,
			position       INTEGER NOT NULL,
			article_id     TEXT NOT NULL,
			source         TEXT NOT NULL,
			title          TEXT NOT NULL,
			url            TEXT NOT NULL,
			summary        TEXT NOT NULL,
			reasons        TEXT NOT NULL,
			core_content   TEXT NOT NULL DEFAULT '',
			what_you_learn TEXT NOT NULL DEFAULT '',
			action_advice  TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (date, position)
		);

		CREATE TABLE IF NOT EXISTS seen_articles (
			article_id   TEXT PRIMARY KEY,
			committed_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Seen returns a map with the ids already surfaced by a prior digest.
func (s *SQLiteStore) Seen(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sq.Select("article_id").
		From("seen_articles").
		Where(sq.Eq{"article_id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build seen query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seen rows: %w", err)
	}

	return result, nil
}

// Commit overwrites the record for rec.Date and extends the seen index
// with the committed item ids. Both effects happen in one transaction:
// an id is never marked seen without its digest entry being durable.
func (s *SQLiteStore) Commit(ctx context.Context, rec domain.DayRecord) error {
	failed, err := json.Marshal(emptyIfNil(rec.FailedSources))
	if err != nil {
		return fmt.Errorf("marshal failed sources: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"day_items", "day_records"} {
		query, args, err := sq.Delete(table).Where(sq.Eq{"date": rec.Date}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s for %s: %w", table, rec.Date, err)
		}
	}

	query, args, err := sq.Insert("day_records").
		Columns("date", "generated_at", "source_count", "failed_sources").
		Values(rec.Date, rec.GeneratedAt.UTC().Format(time.RFC3339), rec.SourceCount, string(failed)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record %s: %w", rec.Date, err)
	}

	for pos, item := range rec.Items {
		query, args, err := sq.Insert("day_items").
			Columns("date", "position", "article_id", "source", "title", "url",
				"summary", "reasons", "core_content", "what_you_learn", "action_advice").
			Values(rec.Date, pos, item.ArticleID, item.Source, item.Title, item.URL,
				item.Summary, joinReasons(item.Reasons), item.CoreContent, item.WhatYouLearn, item.ActionAdvice).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert item %s: %w", item.ArticleID, err)
		}

		query, args, err = sq.Insert("seen_articles").
			Columns("article_id", "committed_at").
			Values(item.ArticleID, rec.GeneratedAt.UTC().Format(time.RFC3339)).
			Suffix("ON CONFLICT(article_id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert seen: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("mark seen %s: %w", item.ArticleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", rec.Date, err)
	}

	s.debug("day committed", "date", rec.Date, "items", len(rec.Items))
	return nil
}

// History returns the most recent n day records, newest first. Dates with
// no committed record are simply absent.
func (s *SQLiteStore) History(ctx context.Context, n int) ([]domain.DayRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	query, args, err := sq.Select("date", "generated_at", "source_count", "failed_sources").
		From("day_records").
		OrderBy("date DESC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []domain.DayRecord
	for rows.Next() {
		var (
			rec       domain.DayRecord
			generated string
			failed    string
		)
		if err := rows.Scan(&rec.Date, &generated, &rec.SourceCount, &failed); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		rec.GeneratedAt, err = time.Parse(time.RFC3339, generated)
		if err != nil {
			return nil, fmt.Errorf("parse generated_at for %s: %w", rec.Date, err)
		}
		if err := json.Unmarshal([]byte(failed), &rec.FailedSources); err != nil {
			return nil, fmt.Errorf("parse failed_sources for %s: %w", rec.Date, err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}

	for i := range records {
		items, err := s.loadItems(ctx, records[i].Date)
		if err != nil {
			return nil, err
		}
		records[i].Items = items
	}

	return records, nil
}

func (s *SQLiteStore) loadItems(ctx context.Context, date string) ([]domain.CuratedItem, error) {
	query, args, err := sq.Select("article_id", "source", "title", "url",
		"summary", "reasons", "core_content", "what_you_learn", "action_advice").
		From("day_items").
		Where(sq.Eq{"date": date}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items for %s: %w", date, err)
	}
	defer rows.Close()

	var items []domain.CuratedItem
	for rows.Next() {
		var (
			item    domain.CuratedItem
			reasons string
		)
		if err := rows.Scan(&item.ArticleID, &item.Source, &item.Title, &item.URL,
			&item.Summary, &reasons, &item.CoreContent, &item.WhatYouLearn, &item.ActionAdvice); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Reasons = splitReasons(reasons)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("item rows for %s: %w", date, err)
	}

	return items, nil
}

// PruneSeen drops seen ids committed before the cutoff. With feeds that
// only publish forward this keeps the index bounded without risking
// near-term re-selection.
func (s *SQLiteStore) PruneSeen(ctx context.Context, olderThan time.Time) error {
	query, args, err := sq.Delete("seen_articles").
		Where(sq.Lt{"committed_at": olderThan.UTC().Format(time.RFC3339)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build prune query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("prune seen: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.debug("seen index pruned", "dropped", n)
	}
	return nil
}

func joinReasons(reasons []domain.ReasonTag) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func splitReasons(raw string) []domain.ReasonTag {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	reasons := make([]domain.ReasonTag, 0, len(parts))
	for _, p := range parts {
		if tag := domain.ReasonTag(p); domain.ValidReason(tag) {
			reasons = append(reasons, tag)
		}
	}
	return reasons
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (s *SQLiteStore) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
