package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/leadscout/cleaner"
	"github.com/use-agent/leadscout/llm"
	"github.com/use-agent/leadscout/models"
)

// maxSnippetChars bounds each snippet in the scoring prompt.
const maxSnippetChars = 300

// Scorer rates deduplicated listings with one batched completion.
type Scorer struct {
	llm       llm.Completer
	maxTokens int
}

// NewScorer creates a Scorer.
func NewScorer(c llm.Completer, maxTokens int) *Scorer {
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	return &Scorer{llm: c, maxTokens: maxTokens}
}

type scoreItem struct {
	Index      int              `json:"index"`
	Score      models.LeadScore `json:"score"`
	Reason     string           `json:"reason"`
	DeepScrape *bool            `json:"deepScrape"`
	DeepAlt    *bool            `json:"deep_scrape"`
}

// Score asks for a verdict on every listing. The prompt numbers listings
// from 1; returned indices are converted to positions in unique and
// out-of-range or repeated ones are dropped. On a failed call or an
// unparseable reply Score returns an empty slice and the error, so the
// caller can fall back to heuristics.
func (s *Scorer) Score(ctx context.Context, campaign models.Campaign, unique []models.SearchResult) ([]models.ScoredResult, error) {
	if len(unique) == 0 {
		return []models.ScoredResult{}, nil
	}

	prompt := buildScorePrompt(campaign, unique)
	slog.Info("aggregate: scoring results", "count", len(unique), "prompt_tokens_est", cleaner.EstimateTokens(prompt))

	raw, err := s.llm.Complete(ctx, prompt, llm.Options{MaxTokens: s.maxTokens, Temperature: 0.3})
	if err != nil {
		slog.Warn("aggregate: scoring call failed", "error", err)
		return []models.ScoredResult{}, err
	}

	var items []scoreItem
	if err := llm.DecodeJSON(raw, &items, "score response"); err != nil {
		return []models.ScoredResult{}, err
	}

	out := make([]models.ScoredResult, 0, len(items))
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		idx := it.Index - 1
		if idx < 0 || idx >= len(unique) {
			slog.Debug("aggregate: dropping out-of-range index", "index", it.Index)
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		deep := false
		switch {
		case it.DeepScrape != nil:
			deep = *it.DeepScrape
		case it.DeepAlt != nil:
			deep = *it.DeepAlt
		}
		out = append(out, models.ScoredResult{
			Index:      idx,
			Score:      float64(it.Score),
			Reason:     it.Reason,
			DeepScrape: deep,
		})
	}
	return out, nil
}

func buildScorePrompt(c models.Campaign, unique []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("You are an expert lead qualifier. Score the search results below for how likely each is to yield qualified leads.\n\n")
	writeCampaign(&b, c)
	b.WriteString("\nSearch Results:\n")
	for i, r := range unique {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. TITLE: %s\nURL: %s\nSNIPPET: %s\n", i+1, r.Title, r.URL, cleaner.Truncate(r.Snippet, maxSnippetChars))
	}
	b.WriteString(`
For each result decide:
1. Relevance score (0-10): how likely is this page to contain qualified leads?
2. Whether it is worth a deep scrape (true/false).

Favour company pages with contact potential, decision-maker profiles, discussions showing business needs,
service-provider searches, funding or growth announcements and job postings that signal budget.
Prefer a diverse mix of platforms.

Return a JSON array of objects: { "index": number, "score": number, "reason": "string", "deepScrape": boolean }.
Use the numbers shown above as "index". Return only valid JSON.`)
	return b.String()
}

func writeCampaign(b *strings.Builder, c models.Campaign) {
	fmt.Fprintf(b, "Business: %s\nServices: %s\nTarget Audience: %s\nBudget: %s\nGeography: %s\n",
		c.Business, c.Services, c.Audience, c.Budget, c.Geography)
}
