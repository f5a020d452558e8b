// Package aggregate merges harvested listings, scores them in one batched
// completion and picks what gets deep-scraped.
package aggregate

import (
	"strings"

	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/models"
)

// FallbackReason is recorded on entries added by the volume top-up.
const FallbackReason = "Fallback selection - potential company/profile page detected"

// fallbackKeywords mark titles worth a visit even without a good score.
var fallbackKeywords = []string{
	"ceo", "founder", "director", "manager", "company",
	"startup", "business", "review", "profile",
}

// Deduplicate keeps the first occurrence of every URL, preserving order.
func Deduplicate(results []models.SearchResult) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		key := strings.TrimSpace(r.URL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Select returns the primary picks (score >= MinScore and deep-scrape
// eligible, in scorer order) topped up with fallback entries until
// FallbackFloor is reached or no candidate is left. No index appears twice.
func Select(scored []models.ScoredResult, unique []models.SearchResult, platforms []string, cfg config.AggregateConfig) []models.ScoredResult {
	selected := make([]models.ScoredResult, 0, max(len(scored), cfg.FallbackFloor))
	used := make(map[int]struct{}, len(scored))

	for _, s := range scored {
		if s.Index < 0 || s.Index >= len(unique) {
			continue
		}
		if _, dup := used[s.Index]; dup {
			continue
		}
		if s.Score >= cfg.MinScore && s.DeepScrape {
			used[s.Index] = struct{}{}
			selected = append(selected, s)
		}
	}

	if len(selected) >= cfg.FallbackFloor {
		return selected
	}
	if len(platforms) == 0 {
		platforms = cfg.DefaultPlatforms
	}

	for i, r := range unique {
		if len(selected) >= cfg.FallbackFloor {
			break
		}
		if _, ok := used[i]; ok {
			continue
		}
		if !FallbackCandidate(r, platforms) {
			continue
		}
		used[i] = struct{}{}
		selected = append(selected, models.ScoredResult{
			Index:      i,
			Score:      cfg.FallbackScore,
			Reason:     FallbackReason,
			DeepScrape: true,
			Fallback:   true,
		})
	}
	return selected
}

// FallbackCandidate reports whether r's URL names a high-value platform and
// its title carries a role, company or stage keyword.
func FallbackCandidate(r models.SearchResult, platforms []string) bool {
	u := strings.ToLower(r.URL)
	onPlatform := false
	for _, p := range platforms {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && strings.Contains(u, p) {
			onPlatform = true
			break
		}
	}
	if !onPlatform {
		return false
	}
	title := strings.ToLower(r.Title)
	for _, k := range fallbackKeywords {
		if strings.Contains(title, k) {
			return true
		}
	}
	return false
}
