package dedup

import "FrontierDigest/internal/domain"

// Filter returns the articles whose id is absent from the seen set. When
// the same id occurs more than once in a run (a feed re-emitting an entry),
// only the first occurrence survives, preserving input order.
func Filter(articles []domain.Article, seen map[string]bool) []domain.Article {
	kept := make([]domain.Article, 0, len(articles))
	inRun := make(map[string]struct{}, len(articles))

	for _, article := range articles {
		if seen[article.ID] {
			continue
		}
		if _, ok := inRun[article.ID]; ok {
			continue
		}
		inRun[article.ID] = struct{}{}
		kept = append(kept, article)
	}

	return kept
}
