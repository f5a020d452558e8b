// Package deepscrape visits selected URLs and turns each page into a
// PageRecord of text, contacts and platform fields.
package deepscrape

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
)

// GenericContentSelectors are tried after a rule's own content selectors.
var GenericContentSelectors = []string{
	"main", "article", ".content", ".post", ".profile",
	".company-description", ".about", ".bio", ".description",
}

// Field names a value read from a platform page.
type Field struct {
	Key      string
	Selector string
}

// Rule describes how to read pages of one platform.
type Rule struct {
	// Platform is the name recorded on the PageRecord.
	Platform string

	// Hosts are hostname substrings the rule applies to.
	Hosts []string

	Fields []Field

	// Content selectors, in priority order, for the main text.
	Content []string
}

type compiledField struct {
	key string
	sel cascadia.Sel
}

// CompiledRule is a Rule whose selectors have been parsed.
type CompiledRule struct {
	Rule
	fields  []compiledField
	content []cascadia.Sel
}

// RuleTable maps hostnames to extraction rules. Lookups are safe while
// rules are being added.
type RuleTable struct {
	mu      sync.RWMutex
	rules   []*CompiledRule
	generic []cascadia.Sel
}

// NewRuleTable compiles rules in priority order. Any invalid selector
// rejects the whole table.
func NewRuleTable(rules ...Rule) (*RuleTable, error) {
	generic, err := compileAll(GenericContentSelectors)
	if err != nil {
		return nil, err
	}
	t := &RuleTable{generic: generic}
	for _, r := range rules {
		c, err := compile(r)
		if err != nil {
			return nil, err
		}
		t.rules = append(t.rules, c)
	}
	return t, nil
}

// Add registers r ahead of every existing rule, so it wins over defaults
// for the hosts it names.
func (t *RuleTable) Add(r Rule) error {
	c, err := compile(r)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules = append([]*CompiledRule{c}, t.rules...)
	return nil
}

// Match returns the first rule whose host substring occurs in host, or nil.
func (t *RuleTable) Match(host string) *CompiledRule {
	host = strings.ToLower(host)
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.rules {
		for _, h := range r.Hosts {
			if h != "" && strings.Contains(host, strings.ToLower(h)) {
				return r
			}
		}
	}
	return nil
}

// contentSelectors returns rule-specific selectors followed by the generic ones.
func (t *RuleTable) contentSelectors(r *CompiledRule) []cascadia.Sel {
	if r == nil {
		return t.generic
	}
	out := make([]cascadia.Sel, 0, len(r.content)+len(t.generic))
	out = append(out, r.content...)
	return append(out, t.generic...)
}

func compile(r Rule) (*CompiledRule, error) {
	if r.Platform == "" || len(r.Hosts) == 0 {
		return nil, fmt.Errorf("rule %q: platform and hosts are required", r.Platform)
	}
	c := &CompiledRule{Rule: r}
	for _, f := range r.Fields {
		sel, err := cascadia.Parse(f.Selector)
		if err != nil {
			return nil, fmt.Errorf("rule %s field %s: invalid selector %q: %w", r.Platform, f.Key, f.Selector, err)
		}
		c.fields = append(c.fields, compiledField{key: f.Key, sel: sel})
	}
	content, err := compileAll(r.Content)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.Platform, err)
	}
	c.content = content
	return c, nil
}

func compileAll(selectors []string) ([]cascadia.Sel, error) {
	out := make([]cascadia.Sel, 0, len(selectors))
	for _, s := range selectors {
		sel, err := cascadia.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", s, err)
		}
		out = append(out, sel)
	}
	return out, nil
}

// DefaultRules covers the platforms campaigns search most often.
func DefaultRules() []Rule {
	return []Rule{
		{
			Platform: "linkedin",
			Hosts:    []string{"linkedin.com"},
			Fields: []Field{
				{Key: "companyName", Selector: "h1"},
				{Key: "followers", Selector: ".org-top-card-summary__follower-count"},
				{Key: "industry", Selector: ".org-top-card-summary__industry"},
				{Key: "description", Selector: ".org-about-company-module__description"},
			},
			Content: []string{".org-about-company-module__description", ".pv-about-section", ".core-section-container"},
		},
		{
			Platform: "crunchbase",
			Hosts:    []string{"crunchbase.com"},
			Fields: []Field{
				{Key: "companyName", Selector: "h1"},
				{Key: "funding", Selector: `[data-testid="funding-rounds"]`},
				{Key: "employees", Selector: `[data-testid="employees"]`},
			},
			Content: []string{"profile-section", ".description"},
		},
		{
			Platform: "clutch",
			Hosts:    []string{"clutch.co"},
			Fields: []Field{
				{Key: "companyName", Selector: ".company_name"},
				{Key: "rating", Selector: ".rating"},
				{Key: "reviews", Selector: ".reviews-count"},
				{Key: "description", Selector: ".company_description"},
			},
			Content: []string{".company_description", ".profile-summary"},
		},
		{
			Platform: "g2",
			Hosts:    []string{"g2.com"},
			Fields: []Field{
				{Key: "companyName", Selector: ".company-name"},
				{Key: "rating", Selector: ".rating-score"},
				{Key: "category", Selector: ".category"},
			},
			Content: []string{".product-head", ".paper"},
		},
		{
			Platform: "reddit",
			Hosts:    []string{"reddit.com"},
			Fields: []Field{
				{Key: "title", Selector: "h1"},
				{Key: "subreddit", Selector: ".subreddit-name"},
				{Key: "author", Selector: ".author"},
			},
			Content: []string{"shreddit-post", `[data-test-id="post-content"]`, ".expando"},
		},
	}
}

// MustDefaultTable compiles DefaultRules and panics on error.
func MustDefaultTable() *RuleTable {
	t, err := NewRuleTable(DefaultRules()...)
	if err != nil {
		panic(err)
	}
	return t
}
