package leads

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/use-agent/leadscout/llm"
	"github.com/use-agent/leadscout/models"
)

// profileResultsPerQuery is the results-per-page for profile lookups.
const profileResultsPerQuery = 10

type profileVerdict struct {
	URL    string           `json:"url"`
	Score  models.LeadScore `json:"score"`
	Reason string           `json:"reason"`
}

// resolveProfiles finds up to MaxProfiles profile URLs for person. Every
// failure degrades to fewer or no profiles; nothing is returned as an error.
func (e *Extractor) resolveProfiles(ctx context.Context, slot int, person models.Person, company string, c models.Campaign) []string {
	queries := e.profileQueries(ctx, person, company, c)
	slog.Info("leads: searching profiles", "name", person.Name, "queries", len(queries))

	var found []models.SearchResult
	seen := make(map[string]struct{})
	for _, q := range queries {
		results, err := e.searcher.Lookup(ctx, slot, q, profileResultsPerQuery, e.isProfileURL)
		if err != nil {
			slog.Warn("leads: profile lookup failed", "name", person.Name, "query", q, "error", err)
			continue
		}
		for _, r := range results {
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			found = append(found, r)
		}
	}
	if len(found) == 0 {
		return nil
	}

	raw, err := e.llm.Complete(ctx, buildFilterPrompt(person, company, c, found), llm.Options{MaxTokens: 500, Temperature: 0.3})
	if err != nil {
		slog.Warn("leads: profile filter call failed", "name", person.Name, "error", err)
		return nil
	}
	var verdicts []profileVerdict
	if err := llm.DecodeJSON(raw, &verdicts, "profile filter response"); err != nil {
		return nil
	}

	kept := verdicts[:0]
	for _, v := range verdicts {
		if _, ok := seen[v.URL]; !ok {
			continue
		}
		if float64(v.Score) >= e.cfg.ProfileThreshold {
			kept = append(kept, v)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	out := make([]string, 0, e.cfg.MaxProfiles)
	for _, v := range kept {
		if len(out) >= e.cfg.MaxProfiles {
			break
		}
		out = append(out, v.URL)
	}
	slog.Info("leads: profiles resolved", "name", person.Name, "found", len(out))
	return out
}

// profileQueries asks for 2-3 queries and falls back to a single quoted
// query when the reply is unusable.
func (e *Extractor) profileQueries(ctx context.Context, person models.Person, company string, c models.Campaign) []string {
	fallback := []string{fallbackProfileQuery(person, company)}

	raw, err := e.llm.Complete(ctx, buildQueryPrompt(person, company, c), llm.Options{MaxTokens: 150, Temperature: 0.5})
	if err != nil {
		slog.Warn("leads: profile query call failed", "name", person.Name, "error", err)
		return fallback
	}
	var queries []string
	if err := llm.DecodeJSON(raw, &queries, "profile queries"); err != nil {
		return fallback
	}

	out := make([]string, 0, 3)
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
		if len(out) == 3 {
			break
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func (e *Extractor) isProfileURL(u string) bool {
	for _, p := range e.cfg.ProfilePatterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

func fallbackProfileQuery(p models.Person, company string) string {
	q := fmt.Sprintf(`site:linkedin.com/in/ "%s"`, p.Name)
	if company != "" {
		q += fmt.Sprintf(` "%s"`, company)
	}
	if p.Role != "" {
		q += " " + p.Role
	}
	return q
}

func writePerson(b *strings.Builder, p models.Person, company string, c models.Campaign) {
	fmt.Fprintf(b, "Person Name: %s\nCompany: %s\nRole: %s\nGeography: %s\nBusiness Context: %s, targeting %s\n",
		p.Name, orNA(company), orNA(p.Role), orNA(c.Geography), orNA(c.Business), orNA(c.Audience))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func buildQueryPrompt(p models.Person, company string, c models.Campaign) string {
	var b strings.Builder
	b.WriteString("You are an expert in generating search queries for LinkedIn profiles. Based on the provided information, generate 2-3 precise Google search queries to find the correct LinkedIn profile.\n\n")
	writePerson(&b, p, company, c)
	b.WriteString(`
Generate queries that:
- Use site:linkedin.com/in/ to target individual LinkedIn profiles
- Handle variations of the name (full name, initials, common misspellings)
- Incorporate the company name or aliases if available
- Include the role or synonyms
- Add geography if relevant

Return a JSON array of 2-3 query strings. Return only valid JSON.`)
	return b.String()
}

func buildFilterPrompt(p models.Person, company string, c models.Campaign, results []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("You are an expert in identifying relevant LinkedIn profiles. Given a list of Google search results, select the most relevant LinkedIn profile URLs for the specified person.\n\n")
	writePerson(&b, p, company, c)
	b.WriteString("\nSearch Results:\n")
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. TITLE: %s\nURL: %s\nSNIPPET: %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	b.WriteString(`
Score each result 0-10 for how likely it is the correct profile, matching name variations, company, role and geography.
Exclude company pages, login pages and irrelevant profiles.

Return a JSON array of objects with: { "url": string, "score": number, "reason": string }.
Return only valid JSON.`)
	return b.String()
}
