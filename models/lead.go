package models

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Campaign describes who is looking for leads and what they sell.
type Campaign struct {
	Business  string `json:"business"`
	Services  string `json:"services"`
	Audience  string `json:"audience"`
	Budget    string `json:"budget"`
	Geography string `json:"geography"`

	// Platforms restricts the strategy to these domains when non-empty.
	Platforms []string `json:"platforms,omitempty"`
}

// Strategy is the generated search plan for a campaign.
type Strategy struct {
	Platforms []string `json:"platforms"`
	Keywords  []string `json:"keywords"`
	Dorks     []string `json:"dorks"`
}

// SearchResult is a single listing harvested from a results page.
// URL is the identity key.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ScoredResult is the scorer's verdict on one deduplicated result.
// Index refers into the deduplicated result list.
type ScoredResult struct {
	Index      int     `json:"index"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	DeepScrape bool    `json:"deep_scrape"`

	// Fallback is set for entries added by the volume top-up.
	Fallback bool `json:"fallback,omitempty"`
}

// Person is a name found next to a role keyword on a page.
type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// PageRecord is everything extracted from one deep-scraped URL.
type PageRecord struct {
	URL             string            `json:"url"`
	FinalURL        string            `json:"final_url,omitempty"`
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description,omitempty"`
	MetaKeywords    string            `json:"meta_keywords,omitempty"`
	Platform        string            `json:"platform"`
	PlatformFields  map[string]string `json:"platform_fields,omitempty"`
	Text            string            `json:"text"`
	Markdown        string            `json:"markdown,omitempty"`
	Emails          []string          `json:"emails"`
	Phones          []string          `json:"phones"`
	SocialLinks     []string          `json:"social_links"`
	Websites        []string          `json:"websites"`
	People          []Person          `json:"people"`
	ScrapedAt       time.Time         `json:"scraped_at"`
}

// Clone returns a copy of r that shares no slices or maps with it.
func (r *PageRecord) Clone() *PageRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.PlatformFields = maps.Clone(r.PlatformFields)
	cp.Emails = slices.Clone(r.Emails)
	cp.Phones = slices.Clone(r.Phones)
	cp.SocialLinks = slices.Clone(r.SocialLinks)
	cp.Websites = slices.Clone(r.Websites)
	cp.People = slices.Clone(r.People)
	return &cp
}

// ContactInfo is the contact block of a lead.
type ContactInfo struct {
	Emails   []string `json:"emails"`
	Phones   []string `json:"phones"`
	Website  string   `json:"website"`
	LinkedIn string   `json:"linkedin"`
	Social   []string `json:"social"`
}

// KeyPerson is a decision maker attached to a lead.
type KeyPerson struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Email    string `json:"email,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
}

// BusinessInfo is the firmographic block of a lead.
type BusinessInfo struct {
	Industry string `json:"industry"`
	Size     string `json:"size"`
	Location string `json:"location"`
	Funding  string `json:"funding"`
	Stage    string `json:"stage"`
}

// Provenance ties a lead back to the page and the score that produced it.
type Provenance struct {
	Source   SearchResult `json:"source"`
	Page     *PageRecord  `json:"page"`
	Score    float64      `json:"score"`
	Reason   string       `json:"reason"`
	Fallback bool         `json:"fallback,omitempty"`
}

// LeadRecord is a normalized business lead.
type LeadRecord struct {
	Company       string       `json:"company"`
	Contacts      ContactInfo  `json:"contact_info"`
	KeyPeople     []KeyPerson  `json:"key_people"`
	BusinessInfo  BusinessInfo `json:"business_info"`
	PainPoints    []string     `json:"pain_points"`
	BuyingSignals []string     `json:"buying_signals"`
	LeadScore     LeadScore    `json:"lead_score"`
	PitchAngle    string       `json:"pitch_angle"`
	Provenance    Provenance   `json:"provenance"`
}

// LeadScore is a 0-10 rating. The completion service returns it either as a
// number or as a numeric string, so both decode.
type LeadScore float64

// UnmarshalJSON accepts 7, 7.5, "7" and "7/10".
func (s *LeadScore) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*s = LeadScore(f)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	str = strings.TrimSpace(str)
	if i := strings.IndexByte(str, '/'); i >= 0 {
		str = str[:i]
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		*s = 0
		return nil
	}
	*s = LeadScore(f)
	return nil
}

// Priority buckets a search score the way the lead stream reports it.
func Priority(score float64) string {
	switch {
	case score >= 8:
		return "HIGH"
	case score >= 6:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
