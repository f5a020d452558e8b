// Package app wires the browser, runners, LLM client and pipeline into one
// runnable unit shared by the CLI and the HTTP server.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/use-agent/leadscout/aggregate"
	"github.com/use-agent/leadscout/browser"
	"github.com/use-agent/leadscout/cache"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/deepscrape"
	"github.com/use-agent/leadscout/engine"
	"github.com/use-agent/leadscout/leads"
	"github.com/use-agent/leadscout/llm"
	"github.com/use-agent/leadscout/pipeline"
	"github.com/use-agent/leadscout/report"
	"github.com/use-agent/leadscout/search"
	"github.com/use-agent/leadscout/strategy"
)

// App is a fully wired lead generator.
type App struct {
	Pipeline *pipeline.Pipeline
	Planner  *strategy.Planner
	Pool     *engine.SlotPool
	Session  *engine.Session
	Store    *report.Store

	browser io.Closer
	pages   *cache.Cache
}

// New wires an App around an already launched browser. Tests pass a fake
// browser and LLM; Build passes the real ones.
func New(cfg *config.Config, b browser.Browser, closer io.Closer, completer llm.Completer) (*App, error) {
	store, err := report.NewStore(cfg.Output)
	if err != nil {
		return nil, err
	}

	pool := engine.NewSlotPool(b.Slots())
	session := engine.NewSession(cfg.Search.SessionRate, cfg.Search.SessionBurst, cfg.Search.RateLimitBackoff)

	var pages *cache.Cache
	if cfg.Cache.MaxEntries > 0 {
		pages = cache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxAge)
	}

	searcher := search.NewRunner(b, session, store, cfg.Search)
	scraper := deepscrape.NewRunner(b, deepscrape.MustDefaultTable(), cfg.Scrape, pages)
	scraper.RememberFailures(engine.NewHostMemory(cfg.Scrape.HostMemoryTTL, cfg.Scrape.HostFailureLimit))
	planner := strategy.NewPlanner(completer)

	p := pipeline.New(pipeline.Deps{
		Pool:      pool,
		Searcher:  searcher,
		Scraper:   scraper,
		Scorer:    aggregate.NewScorer(completer, cfg.Aggregate.ScoreMaxTokens),
		Extractor: leads.NewExtractor(completer, searcher, cfg.Lead),
		Planner:   planner,
		Sink:      store,
	}, cfg.Aggregate, cfg.Lead)

	return &App{
		Pipeline: p,
		Planner:  planner,
		Pool:     pool,
		Session:  session,
		Store:    store,
		browser:  closer,
		pages:    pages,
	}, nil
}

// Build launches the browser and wires an App from cfg.
func Build(cfg *config.Config) (*App, error) {
	if cfg.LLM.APIKey == "" {
		slog.Warn("no LLM API key configured; strategy, scoring and extraction calls will fail")
	}
	rod, err := browser.Launch(cfg.Browser)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	a, err := New(cfg, rod, rod, llm.NewClient(cfg.LLM, nil))
	if err != nil {
		_ = rod.Close()
		return nil, err
	}
	return a, nil
}

// Close stops the page cache and the browser.
func (a *App) Close() error {
	if a.pages != nil {
		a.pages.Stop()
	}
	if a.browser != nil {
		return a.browser.Close()
	}
	return nil
}
