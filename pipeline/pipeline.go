// Package pipeline runs a campaign end to end: search every dork across
// the slot pool, score and select results, deep-scrape the selection and
// turn pages into leads.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/leadscout/aggregate"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/engine"
	"github.com/use-agent/leadscout/leads"
	"github.com/use-agent/leadscout/models"
	"github.com/use-agent/leadscout/search"
	"github.com/use-agent/leadscout/simhash"
)

// Searcher runs one campaign query on a slot. *search.Runner satisfies it.
type Searcher interface {
	Search(ctx context.Context, slot, index int, query string) (search.Harvest, error)
}

// Scraper deep-scrapes one URL on a slot. *deepscrape.Runner satisfies it.
type Scraper interface {
	Scrape(ctx context.Context, slot int, url string) (*models.PageRecord, error)
}

// Planner turns a campaign into a search plan. *strategy.Planner satisfies it.
type Planner interface {
	Plan(ctx context.Context, c models.Campaign) (models.Strategy, error)
}

// Sink persists leads as they are found and the report at the end.
// *report.Store satisfies it.
type Sink interface {
	SaveLead(lead *models.LeadRecord) (string, error)
	WriteAll(ctx context.Context, rep *models.RunReport) error
}

// ProgressFunc receives stage progress. It is called from a goroutine
// that never holds a slot.
type ProgressFunc func(models.Progress)

// Deps are the collaborators of a Pipeline. Planner and Sink are optional.
type Deps struct {
	Pool      *engine.SlotPool
	Searcher  Searcher
	Scraper   Scraper
	Scorer    *aggregate.Scorer
	Extractor *leads.Extractor
	Planner   Planner
	Sink      Sink
}

// Pipeline runs campaigns against one shared browser session. Only one
// campaign runs at a time.
type Pipeline struct {
	deps    Deps
	agg     config.AggregateConfig
	nearDup int

	running sync.Mutex
}

// New creates a Pipeline.
func New(deps Deps, agg config.AggregateConfig, lead config.LeadConfig) *Pipeline {
	return &Pipeline{deps: deps, agg: agg, nearDup: lead.NearDuplicateDistance}
}

// Pool returns the slot pool the pipeline dispatches on.
func (p *Pipeline) Pool() *engine.SlotPool { return p.deps.Pool }

// Generate plans a strategy for c unless dorks are given, then runs it.
func (p *Pipeline) Generate(ctx context.Context, c models.Campaign, dorks []string, progress ProgressFunc) (*models.RunReport, error) {
	s := models.Strategy{Dorks: dorks, Platforms: c.Platforms}
	if len(dorks) == 0 {
		if p.deps.Planner == nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "no dorks given and no planner configured", nil)
		}
		var err error
		if s, err = p.deps.Planner.Plan(ctx, c); err != nil {
			return nil, err
		}
	}
	return p.Run(ctx, c, s, progress)
}

type scrapeResult struct {
	page *models.PageRecord
	lead *models.LeadRecord
}

// Run executes strategy for campaign. Task failures are counted and
// skipped. Only an invariant violation, or a second concurrent Run, is
// returned as an error; the partial report is returned alongside it.
func (p *Pipeline) Run(ctx context.Context, campaign models.Campaign, strategy models.Strategy, progress ProgressFunc) (*models.RunReport, error) {
	if !p.running.TryLock() {
		return nil, models.NewScrapeError(models.ErrCodeBusy, "a campaign is already running", nil)
	}
	defer p.running.Unlock()

	rep := &models.RunReport{
		Campaign:  campaign,
		Strategy:  strategy,
		Leads:     []models.LeadRecord{},
		StartedAt: time.Now().Unix(),
	}
	defer func() { rep.EndedAt = time.Now().Unix() }()
	stats := &rep.Stats
	stats.Queries = len(strategy.Dorks)

	slog.Info("pipeline: searching", "queries", len(strategy.Dorks), "slots", p.deps.Pool.Capacity())
	harvests, err := engine.Dispatch(ctx, p.deps.Pool, strategy.Dorks,
		func(ctx context.Context, slot, index int, query string) (search.Harvest, error) {
			return p.deps.Searcher.Search(ctx, slot, index, query)
		},
		engine.Hooks[search.Harvest]{
			Progress: stageProgress(models.StageSearch, progress),
			Count:    func(h search.Harvest) int { return len(h.Results) },
		})

	var raw []models.SearchResult
	for i, o := range harvests {
		switch {
		case !o.OK():
			stats.Failed++
			slog.Warn("pipeline: query failed", "index", i, "query", strategy.Dorks[i], "error", o.Err)
		case o.Value.RateLimited:
			stats.RateLimited++
		default:
			raw = append(raw, o.Value.Results...)
		}
	}
	stats.RawResults = len(raw)
	if err != nil {
		return rep, err
	}

	unique := aggregate.Deduplicate(raw)
	stats.Unique = len(unique)

	scored, err := p.deps.Scorer.Score(ctx, campaign, unique)
	if err != nil {
		slog.Warn("pipeline: scoring failed, relying on fallback selection", "error", err)
	}
	selected := aggregate.Select(scored, unique, strategy.Platforms, p.agg)
	stats.Selected = len(selected)
	for _, s := range selected {
		if s.Fallback {
			stats.Fallback++
		}
	}
	slog.Info("pipeline: selected for deep scrape", "unique", len(unique), "selected", len(selected), "fallback", stats.Fallback)

	outcomes, err := engine.Dispatch(ctx, p.deps.Pool, selected,
		func(ctx context.Context, slot, index int, sel models.ScoredResult) (scrapeResult, error) {
			return p.scrapeOne(ctx, slot, sel, unique[sel.Index], campaign)
		},
		engine.Hooks[scrapeResult]{
			Progress: stageProgress(models.StageScrape, progress),
			Count: func(r scrapeResult) int {
				if r.lead != nil {
					return 1
				}
				return 0
			},
		})

	found := make([]*models.LeadRecord, 0, len(outcomes))
	for i, o := range outcomes {
		if !o.OK() {
			stats.Failed++
			slog.Warn("pipeline: deep scrape failed", "url", unique[selected[i].Index].URL, "error", o.Err)
			continue
		}
		stats.Scraped++
		if o.Value.lead != nil {
			found = append(found, o.Value.lead)
		}
	}
	if err != nil {
		for _, l := range found {
			rep.Leads = append(rep.Leads, *l)
		}
		stats.Leads = len(rep.Leads)
		return rep, err
	}

	kept, dups := collapse(found, p.nearDup)
	stats.Duplicates = dups
	for _, l := range kept {
		rep.Leads = append(rep.Leads, *l)
	}
	stats.Leads = len(rep.Leads)

	if p.deps.Sink != nil {
		rep.EndedAt = time.Now().Unix()
		if err := p.deps.Sink.WriteAll(ctx, rep); err != nil {
			slog.Error("pipeline: failed to write report", "error", err)
		}
	}
	slog.Info("pipeline: campaign finished", "leads", stats.Leads, "failed", stats.Failed,
		"rate_limited", stats.RateLimited, "near_duplicates", stats.Duplicates)
	return rep, nil
}

// scrapeOne deep-scrapes and extracts on the same slot, so identity
// resolution searches reuse the tab that is already held.
func (p *Pipeline) scrapeOne(ctx context.Context, slot int, sel models.ScoredResult, src models.SearchResult, c models.Campaign) (scrapeResult, error) {
	page, err := p.deps.Scraper.Scrape(ctx, slot, src.URL)
	if err != nil {
		return scrapeResult{}, err
	}
	lead, err := p.deps.Extractor.Extract(ctx, slot, page, src, sel, c)
	if err != nil {
		slog.Warn("pipeline: lead extraction failed", "url", src.URL, "error", err)
		return scrapeResult{page: page}, nil
	}
	if lead != nil && p.deps.Sink != nil {
		if _, err := p.deps.Sink.SaveLead(lead); err != nil {
			slog.Warn("pipeline: failed to save lead", "company", lead.Company, "error", err)
		}
	}
	return scrapeResult{page: page, lead: lead}, nil
}

// collapse drops leads whose page text is a near duplicate of an earlier
// lead's. Order is preserved.
func collapse(found []*models.LeadRecord, threshold int) ([]*models.LeadRecord, int) {
	if threshold <= 0 {
		return found, 0
	}
	idx := simhash.NewIndex(threshold)
	kept := make([]*models.LeadRecord, 0, len(found))
	dups := 0
	for i, l := range found {
		var fp uint64
		if l.Provenance.Page != nil {
			fp = simhash.Fingerprint(l.Provenance.Page.Text)
		}
		if first, ok := idx.Match(fp); ok {
			dups++
			slog.Debug("pipeline: near-duplicate lead", "company", l.Company, "duplicate_of", found[first].Company)
			continue
		}
		idx.Add(fp, i)
		kept = append(kept, l)
	}
	return kept, dups
}

func stageProgress(stage string, progress ProgressFunc) engine.ProgressFunc {
	if progress == nil {
		return nil
	}
	return func(completed, total, aggregate int) {
		progress(models.Progress{Stage: stage, Completed: completed, Total: total, Count: aggregate})
	}
}
