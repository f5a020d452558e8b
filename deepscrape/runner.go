package deepscrape

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/leadscout/browser"
	"github.com/use-agent/leadscout/cache"
	"github.com/use-agent/leadscout/cleaner"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/engine"
	"github.com/use-agent/leadscout/models"
)

const locationJS = `() => ({url: window.location.href, title: document.title})`

// Runner deep-scrapes URLs in browser slots.
type Runner struct {
	browser browser.Browser
	rules   *RuleTable
	cfg     config.ScrapeConfig
	cache   *cache.Cache
	md      *cleaner.Markdown
	hosts   *engine.HostMemory
}

// NewRunner creates a Runner. pages may be nil to disable caching.
func NewRunner(b browser.Browser, rules *RuleTable, cfg config.ScrapeConfig, pages *cache.Cache) *Runner {
	if rules == nil {
		rules = MustDefaultTable()
	}
	return &Runner{browser: b, rules: rules, cfg: cfg, cache: pages, md: cleaner.NewMarkdown()}
}

// RememberFailures makes the runner skip hosts that m reports unreachable.
func (r *Runner) RememberFailures(m *engine.HostMemory) { r.hosts = m }

// Rules exposes the table so callers can register extra platforms.
func (r *Runner) Rules() *RuleTable { return r.rules }

// Scrape visits rawURL on slot and extracts a PageRecord. Failures are
// returned as errors for the caller to isolate; nothing is retried.
func (r *Runner) Scrape(ctx context.Context, slot int, rawURL string) (*models.PageRecord, error) {
	if rec, ok := r.cache.Get(rawURL); ok {
		slog.Debug("deepscrape: cache hit", "url", rawURL)
		return rec, nil
	}

	host := hostOf(rawURL)
	if r.hosts.Unreachable(host) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "host recently unreachable: "+host, nil)
	}

	if err := r.browser.Navigate(ctx, slot, rawURL, r.cfg.NavigationTimeout); err != nil {
		slog.Warn("deepscrape: navigation failed", "url", rawURL, "slot", slot, "error", err)
		if ctx.Err() == nil {
			r.hosts.Failed(host)
		}
		return nil, err
	}
	r.hosts.Succeeded(host)

	// Settle: give client-rendered content a bounded chance to appear.
	selectors := GenericContentSelectors
	if rule := r.rules.Match(host); rule != nil {
		selectors = append(append([]string{}, rule.Content...), GenericContentSelectors...)
	}
	if _, err := r.browser.WaitForSelectorAny(ctx, slot, selectors, r.cfg.ContentWait); err != nil &&
		!errors.Is(err, browser.ErrNoMatch) {
		slog.Debug("deepscrape: content wait failed", "url", rawURL, "error", err)
	}

	html, err := r.browser.Content(ctx, slot)
	if err != nil {
		return nil, err
	}

	rec, err := Extract(rawURL, html, r.rules, Options{
		MaxContentChars: r.cfg.MaxContentChars,
		MaxWebsites:     r.cfg.MaxWebsites,
		Markdown:        r.md,
	})
	if err != nil {
		return nil, err
	}

	if loc, err := r.browser.Evaluate(ctx, slot, locationJS); err == nil {
		if final := loc.Get("url").Str(); final != "" && final != rawURL {
			rec.FinalURL = final
		}
		if rec.Title == "" {
			rec.Title = loc.Get("title").Str()
		}
	}

	r.cache.Set(rawURL, rec)
	slog.Info("deepscrape: page extracted", "url", rawURL, "platform", rec.Platform,
		"emails", len(rec.Emails), "phones", len(rec.Phones), "people", len(rec.People))
	return rec, nil
}
