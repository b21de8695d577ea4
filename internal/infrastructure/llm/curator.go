package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"FrontierDigest/internal/config"
	"FrontierDigest/internal/domain"
	"FrontierDigest/internal/ports"
)

// ErrBadResponse marks a model reply that violates the expected schema.
// Callers treat it as a run-level failure: nothing is persisted and the
// run stays retryable.
var ErrBadResponse = errors.New("model response violates selection schema")

const systemPrompt = `You are an editor for a daily AI-frontier digest. From the candidate articles you receive, select the 3-5 most valuable ones. An article qualifies only when it satisfies AT LEAST TWO of these criteria:
- "new": it announces a new model, tool, method, or research result, not recycled news
- "practical": reading it changes how a practitioner works (a technique, a tool usage, a workflow)
- "deep": the original is substantive enough to be worth a full read, not a one-paragraph notice

Rank selections most valuable first. For each selection produce a one-sentence distilled summary, the list of satisfied criteria, and a deep dive: 2-3 sentences of core content, 1-2 sentences on what the reader learns, and one actionable suggestion.

Respond with a single JSON object and nothing else, in exactly this shape:
{"selections":[{"id":"<candidate id>","summary":"...","reasons":["new","practical"],"core_content":"...","what_you_learn":"...","action_advice":"..."}]}

Use only ids that appear in the candidate list. If no candidate qualifies, respond {"selections":[]}.`

// Curator asks an OpenAI-compatible chat API to select and summarize the
// day's digest in a single structured request.
type Curator struct {
	cfg    config.AIConfig
	client *http.Client
	logger *slog.Logger
}

var _ ports.Curator = (*Curator)(nil)

// NewCurator builds a curator from configuration; client may be nil.
func NewCurator(cfg config.AIConfig, client *http.Client, logger *slog.Logger) *Curator {
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout()}
	}
	return &Curator{cfg: cfg, client: client, logger: logger}
}

// Curate submits the candidate set and decodes the model's ranked
// selections. Selections referencing unknown candidates are dropped;
// a reply that yields no valid selection out of a non-empty one fails
// the whole call.
func (c *Curator) Curate(ctx context.Context, candidates []domain.Article) ([]domain.CuratedItem, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	shortlist := c.shortlist(candidates)
	content, err := c.complete(ctx, shortlist)
	if err != nil {
		return nil, err
	}

	doc, err := decodeSelections(content)
	if err != nil {
		return nil, err
	}

	items := c.validate(doc.Selections, shortlist)
	if len(doc.Selections) > 0 && len(items) == 0 {
		return nil, fmt.Errorf("all %d selections invalid: %w", len(doc.Selections), ErrBadResponse)
	}

	return items, nil
}

// shortlist bounds the submission to MaxCandidates, preferring candidates
// that carry a feed excerpt and, within each group, the most recent.
func (c *Curator) shortlist(candidates []domain.Article) []domain.Article {
	max := c.cfg.MaxCandidates
	if max <= 0 || len(candidates) <= max {
		ordered := make([]domain.Article, len(candidates))
		copy(ordered, candidates)
		return ordered
	}

	ordered := make([]domain.Article, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		iHas := ordered[i].SummaryRaw != ""
		jHas := ordered[j].SummaryRaw != ""
		if iHas != jHas {
			return iHas
		}
		return ordered[i].PublishedAt.After(ordered[j].PublishedAt)
	})

	c.debug("candidate set truncated", "from", len(candidates), "to", max)
	return ordered[:max]
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Curator) complete(ctx context.Context, shortlist []domain.Article) (string, error) {
	if c.cfg.APIKey == "" || c.cfg.Endpoint == "" || c.cfg.Model == "" {
		return "", fmt.Errorf("curator misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: c.userPrompt(shortlist)},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("model error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty chat response: %w", ErrBadResponse)
	}

	return cr.Choices[0].Message.Content, nil
}

func (c *Curator) userPrompt(shortlist []domain.Article) string {
	type candidate struct {
		ID        string `json:"id"`
		Source    string `json:"source"`
		Title     string `json:"title"`
		Summary   string `json:"summary"`
		Published string `json:"published"`
	}

	limit := c.cfg.ExcerptRunes
	if limit <= 0 {
		limit = 300
	}

	payload := make([]candidate, 0, len(shortlist))
	for _, a := range shortlist {
		summary := a.SummaryRaw
		if runes := []rune(summary); len(runes) > limit {
			summary = string(runes[:limit])
		}
		payload = append(payload, candidate{
			ID:        a.ID,
			Source:    a.Source,
			Title:     a.Title,
			Summary:   summary,
			Published: a.PublishedAt.Format("2006-01-02"),
		})
	}

	raw, _ := json.Marshal(payload)
	return fmt.Sprintf("Candidates (%d):\n%s", len(payload), raw)
}

type selectionDoc struct {
	Selections []selection `json:"selections"`
}

type selection struct {
	ID           string   `json:"id"`
	Summary      string   `json:"summary"`
	Reasons      []string `json:"reasons"`
	CoreContent  string   `json:"core_content"`
	WhatYouLearn string   `json:"what_you_learn"`
	ActionAdvice string   `json:"action_advice"`
}

// decodeSelections performs a strict schema decode: unknown fields or a
// non-JSON body both surface ErrBadResponse, never a silent coercion.
func decodeSelections(content string) (selectionDoc, error) {
	trimmed := stripFences(content)

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var doc selectionDoc
	if err := dec.Decode(&doc); err != nil {
		return selectionDoc{}, fmt.Errorf("decode selections: %v: %w", err, ErrBadResponse)
	}
	if dec.More() {
		return selectionDoc{}, fmt.Errorf("trailing data after selections: %w", ErrBadResponse)
	}

	return doc, nil
}

// stripFences removes a markdown code fence some models wrap around JSON.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// validate turns raw selections into curated items, dropping hallucinated
// ids, repeated ids, and unknown reason tags. Order is the model's ranking.
func (c *Curator) validate(selections []selection, shortlist []domain.Article) []domain.CuratedItem {
	byID := make(map[string]domain.Article, len(shortlist))
	for _, a := range shortlist {
		byID[a.ID] = a
	}

	max := c.cfg.MaxSelected
	if max <= 0 {
		max = 5
	}

	used := make(map[string]struct{}, max)
	items := make([]domain.CuratedItem, 0, max)
	for _, sel := range selections {
		if len(items) >= max {
			c.debug("selection limit reached, dropping remainder", "max", max)
			break
		}

		article, ok := byID[sel.ID]
		if !ok {
			c.warn("dropping selection with unknown id", "id", sel.ID)
			continue
		}
		if _, dup := used[sel.ID]; dup {
			c.warn("dropping repeated selection", "id", sel.ID)
			continue
		}

		var reasons []domain.ReasonTag
		for _, r := range sel.Reasons {
			tag := domain.ReasonTag(strings.ToLower(strings.TrimSpace(r)))
			if domain.ValidReason(tag) {
				reasons = append(reasons, tag)
			}
		}
		if len(reasons) == 0 {
			c.warn("dropping selection without valid reasons", "id", sel.ID)
			continue
		}

		used[sel.ID] = struct{}{}
		items = append(items, domain.CuratedItem{
			ArticleID:    article.ID,
			Source:       article.Source,
			Title:        article.Title,
			URL:          article.URL,
			Summary:      strings.TrimSpace(sel.Summary),
			Reasons:      reasons,
			CoreContent:  strings.TrimSpace(sel.CoreContent),
			WhatYouLearn: strings.TrimSpace(sel.WhatYouLearn),
			ActionAdvice: strings.TrimSpace(sel.ActionAdvice),
		})
	}

	return items
}

func (c *Curator) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Curator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
