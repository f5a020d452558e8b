// Package strategy turns a campaign description into a search plan.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/leadscout/llm"
	"github.com/use-agent/leadscout/models"
)

// Planner asks the completion service for campaigns and search plans.
type Planner struct {
	llm llm.Completer
}

// NewPlanner creates a Planner.
func NewPlanner(c llm.Completer) *Planner {
	return &Planner{llm: c}
}

// Plan generates platforms, keywords and dorks for c. When c names
// platforms, the plan is restricted to them. An unusable reply is an error;
// a run cannot proceed without dorks.
func (p *Planner) Plan(ctx context.Context, c models.Campaign) (models.Strategy, error) {
	raw, err := p.llm.Complete(ctx, buildPlanPrompt(c), llm.Options{MaxTokens: 1000, Temperature: 0.7})
	if err != nil {
		return models.Strategy{}, err
	}

	var s models.Strategy
	if err := llm.DecodeJSON(raw, &s, "search strategy"); err != nil {
		return models.Strategy{}, err
	}
	s.Dorks = compact(s.Dorks)
	s.Keywords = compact(s.Keywords)
	s.Platforms = compact(s.Platforms)
	if len(c.Platforms) > 0 {
		s.Platforms = compact(c.Platforms)
	}
	if len(s.Dorks) == 0 {
		se := models.NewScrapeError(models.ErrCodeLLMMalformed, "search strategy has no dorks", nil)
		se.Raw = raw
		return models.Strategy{}, se
	}

	slog.Info("strategy: plan generated", "platforms", len(s.Platforms), "keywords", len(s.Keywords), "dorks", len(s.Dorks))
	return s, nil
}

// ParsePrompt extracts a Campaign from free text. It never fails: an
// unusable reply yields a campaign whose services are the whole prompt.
func (p *Planner) ParsePrompt(ctx context.Context, prompt string) models.Campaign {
	fallback := models.Campaign{Services: prompt, Platforms: []string{}}

	raw, err := p.llm.Complete(ctx, buildParsePrompt(prompt), llm.Options{MaxTokens: 300, Temperature: 0.5})
	if err != nil {
		slog.Warn("strategy: prompt parse call failed", "error", err)
		return fallback
	}
	var c models.Campaign
	if err := llm.DecodeJSON(raw, &c, "campaign prompt"); err != nil {
		return fallback
	}
	if c.Platforms == nil {
		c.Platforms = []string{}
	}
	c.Platforms = compact(c.Platforms)
	return c
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func buildPlanPrompt(c models.Campaign) string {
	var b strings.Builder
	b.WriteString("You are an expert lead generation strategist. Based on the business requirements, generate a comprehensive search strategy with a balanced distribution across multiple platforms.\n\n")
	fmt.Fprintf(&b, "Business: %s\nServices: %s\nTarget Audience: %s\nBudget: %s\nGeography: %s\n\n",
		c.Business, c.Services, c.Audience, c.Budget, c.Geography)
	b.WriteString("Generate a JSON response with:\n")
	if len(c.Platforms) > 0 {
		fmt.Fprintf(&b, "1. \"platforms\": exactly these platforms: %s.\n", strings.Join(c.Platforms, ", "))
	} else {
		b.WriteString(`1. "platforms": Array of 8-10 diverse platforms/websites for finding leads (e.g., "linkedin.com", "crunchbase.com", "clutch.co", "reddit.com", "indiehackers.com", "angel.co", "producthunt.com", "g2.com"). Include at least 3 non-LinkedIn platforms relevant to the business type and audience.` + "\n")
	}
	b.WriteString(`2. "keywords": Array of 8-10 targeted keywords/phrases tailored to the services and audience.
3. "dorks": Array of 12-15 advanced Google search dorks using the platforms and keywords, with balanced representation across platforms.

Focus on platforms where decision-makers discuss needs or seek services. Avoid GitHub and StackOverflow.
Dorks must find active prospects with buying intent.

Return only valid JSON.`)
	return b.String()
}

func buildParsePrompt(prompt string) string {
	return fmt.Sprintf(`You are an expert at parsing user input for lead generation. Parse the following user prompt into structured fields: Business Type, Services Offered, Target Audience, Budget Range, Geography, and specific platforms if mentioned.

Prompt: %q

Return a JSON object with the following structure:
{
  "business": "string",
  "services": "string",
  "audience": "string",
  "budget": "string",
  "geography": "string",
  "platforms": ["platform1.com", "platform2.com"]
}

If the user mentions specific websites or platforms (e.g., "only from LinkedIn", "focus on Clutch and G2"), extract their domain names into the "platforms" array. If no platforms are specified, return an empty array.
If any other field cannot be determined, leave it as an empty string. Return only valid JSON.`, prompt)
}
