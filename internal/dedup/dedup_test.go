package dedup

import (
	"testing"

	"FrontierDigest/internal/domain"
)

func TestFilterDropsSeen(t *testing.T) {
	t.Parallel()

	articles := []domain.Article{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
		{ID: "c", Title: "C"},
	}
	seen := map[string]bool{"a": true}

	got := Filter(articles, seen)
	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestFilterKeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	articles := []domain.Article{
		{ID: "x", Source: "first"},
		{ID: "y", Source: "first"},
		{ID: "x", Source: "second"},
	}

	got := Filter(articles, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	if got[0].Source != "first" {
		t.Fatalf("expected first occurrence to win, got source %s", got[0].Source)
	}
}

func TestFilterEmptyInput(t *testing.T) {
	t.Parallel()

	got := Filter(nil, map[string]bool{"a": true})
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}
