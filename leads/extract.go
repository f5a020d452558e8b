// Package leads turns deep-scraped pages into structured lead records.
package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/deepscrape"
	"github.com/use-agent/leadscout/llm"
	"github.com/use-agent/leadscout/models"
)

// Searcher runs narrow queries on a slot. *search.Runner satisfies it.
type Searcher interface {
	Lookup(ctx context.Context, slot int, query string, num int, keep func(url string) bool) ([]models.SearchResult, error)
}

// Extractor produces LeadRecords from PageRecords.
type Extractor struct {
	llm      llm.Completer
	searcher Searcher
	cfg      config.LeadConfig
}

// NewExtractor creates an Extractor. A nil searcher disables identity
// resolution.
func NewExtractor(c llm.Completer, s Searcher, cfg config.LeadConfig) *Extractor {
	if cfg.ProfileThreshold <= 0 {
		cfg.ProfileThreshold = 7
	}
	if cfg.MaxProfiles <= 0 {
		cfg.MaxProfiles = 2
	}
	if cfg.MaxPeople <= 0 {
		cfg.MaxPeople = 3
	}
	if len(cfg.ProfilePatterns) == 0 {
		cfg.ProfilePatterns = []string{"linkedin.com/in/"}
	}
	return &Extractor{llm: c, searcher: s, cfg: cfg}
}

// Extract returns a lead for page, or nil when the page carries no business
// context or the completion cannot be parsed. Only a failed completion call
// is returned as an error. When the page has people but no emails or phones,
// their profiles are looked up on slot first and folded into page.SocialLinks.
func (e *Extractor) Extract(ctx context.Context, slot int, page *models.PageRecord, source models.SearchResult, scored models.ScoredResult, campaign models.Campaign) (*models.LeadRecord, error) {
	if page == nil {
		return nil, nil
	}

	emails := cleanEmails(page.Emails)
	phones := cleanPhones(page.Phones)

	if len(emails) == 0 && len(phones) == 0 && len(page.People) > 0 && e.searcher != nil {
		slog.Info("leads: no contact info, resolving profiles", "url", page.URL, "people", len(page.People))
		company := companyHint(page)
		page.SocialLinks = slices.Clone(page.SocialLinks)
		for i, p := range page.People {
			if i >= e.cfg.MaxPeople {
				break
			}
			profiles := e.resolveProfiles(ctx, slot, p, company, campaign)
			page.SocialLinks = appendUnique(page.SocialLinks, profiles...)
		}
	}

	prompt := buildLeadPrompt(page, source.URL, emails, phones, campaign)
	raw, err := e.llm.Complete(ctx, prompt, llm.Options{MaxTokens: 1200, Temperature: 0.2})
	if err != nil {
		slog.Warn("leads: extraction call failed", "url", source.URL, "error", err)
		return nil, err
	}

	var lead *models.LeadRecord
	if err := llm.DecodeJSON(raw, &lead, "lead info"); err != nil {
		return nil, nil
	}
	if lead == nil || (strings.TrimSpace(lead.Company) == "" && len(lead.KeyPeople) == 0) {
		slog.Debug("leads: no business context", "url", source.URL)
		return nil, nil
	}

	if len(lead.Contacts.Emails) == 0 {
		lead.Contacts.Emails = emails
	}
	if len(lead.Contacts.Phones) == 0 {
		lead.Contacts.Phones = phones
	}
	if lead.Contacts.Website == "" {
		lead.Contacts.Website = source.URL
	}
	if lead.BusinessInfo.Location == "" {
		lead.BusinessInfo.Location = campaign.Geography
	}
	lead.Provenance = models.Provenance{
		Source:   source,
		Page:     page,
		Score:    scored.Score,
		Reason:   scored.Reason,
		Fallback: scored.Fallback,
	}
	return lead, nil
}

func cleanEmails(in []string) []string {
	out := []string{}
	for _, e := range in {
		if !strings.Contains(e, "@") || strings.Contains(e, "example.com") || strings.Contains(e, "test.com") {
			continue
		}
		out = append(out, e)
	}
	return out
}

func cleanPhones(in []string) []string {
	out := []string{}
	for _, p := range in {
		if len(deepscrape.NormalizePhone(p)) >= 10 {
			out = append(out, p)
		}
	}
	return out
}

// companyHint is the platform's company name, else the first word of the title.
func companyHint(page *models.PageRecord) string {
	if name := page.PlatformFields["companyName"]; name != "" {
		return name
	}
	if f := strings.Fields(page.Title); len(f) > 0 {
		return f[0]
	}
	return ""
}

func appendUnique(dst []string, add ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range add {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

func buildLeadPrompt(page *models.PageRecord, url string, emails, phones []string, c models.Campaign) string {
	people := make([]string, 0, len(page.People))
	for _, p := range page.People {
		people = append(people, strings.TrimSpace(p.Name+" "+p.Role))
	}
	content := page.Markdown
	if content == "" {
		content = page.Text
	}
	emailsJSON, _ := json.Marshal(emails)
	phonesJSON, _ := json.Marshal(phones)

	var b strings.Builder
	b.WriteString("Extract and enhance lead information from this scraped data. BE GENEROUS - extract leads even with minimal information.\n\n")
	b.WriteString("SCRAPED DATA:\n")
	fmt.Fprintf(&b, "Content: %s\nTitle: %s\nMeta Description: %s\nPlatform: %s\n", content, page.Title, page.MetaDescription, page.Platform)
	for _, k := range slices.Sorted(maps.Keys(page.PlatformFields)) {
		fmt.Fprintf(&b, "Platform %s: %s\n", k, page.PlatformFields[k])
	}
	fmt.Fprintf(&b, "Found Emails: %s\nFound Phones: %s\nFound Profiles: %s\nFound Websites: %s\nPeople Mentioned: %s\n\n",
		strings.Join(emails, ", "), strings.Join(phones, ", "), strings.Join(page.SocialLinks, ", "),
		strings.Join(page.Websites, ", "), strings.Join(people, ", "))
	fmt.Fprintf(&b, "URL: %s\nLooking for: %s who need %s\nBusiness Type: %s\n\n", url, c.Audience, c.Services, c.Business)
	b.WriteString("IMPORTANT: Extract leads even if contact info is minimal. We can follow up later to find more details.\n\n")
	fmt.Fprintf(&b, `Extract and return JSON with:
{
  "company": "Company name (even if just from URL or title)",
  "contact_info": {
    "emails": %s,
    "phones": %s,
    "website": "main website url (even if just the scraped URL)",
    "linkedin": "company/person linkedin url",
    "social": ["other social media urls"]
  },
  "key_people": [{"name": "Person name", "title": "Job title (infer from context if needed)", "email": "", "linkedin": ""}],
  "business_info": {
    "industry": "Industry (infer from context)",
    "size": "Company size (estimate if needed)",
    "location": "Location (from content or %s)",
    "funding": "Funding status if available",
    "stage": "startup/growth/enterprise (estimate)"
  },
  "pain_points": ["inferred pain point based on industry/content"],
  "buying_signals": ["potential signals even if weak"],
  "lead_score": "Rate 1-10 (be generous, minimum 4 for any valid company)",
  "pitch_angle": "Tailored pitch suggestion"
}

ALWAYS return a lead if you can identify ANY company name, person name, or business context.
Return null only if absolutely no business context can be found.
Return only valid JSON.`, emailsJSON, phonesJSON, c.Geography)
	return b.String()
}
