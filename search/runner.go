// Package search runs engine queries in a browser slot and harvests the
// result listings.
package search

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/use-agent/leadscout/browser"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/engine"
	"github.com/use-agent/leadscout/models"
)

// Recorder persists the raw listings of a successful query.
type Recorder interface {
	RecordSearch(query string, results []models.SearchResult) error
}

// Harvest is what one query produced.
type Harvest struct {
	Results []models.SearchResult

	// RateLimited is set when the engine served its interstitial instead
	// of results. Results is then empty.
	RateLimited bool
}

// Pacing spaces queries out: Base + rand[0,Jitter) + index*Step, capped at Max.
type Pacing struct {
	Base   time.Duration
	Jitter time.Duration
	Step   time.Duration
	Max    time.Duration

	rand func() float64
}

// NewPacing builds a Pacing from the search config.
func NewPacing(cfg config.SearchConfig) Pacing {
	return Pacing{Base: cfg.PaceBase, Jitter: cfg.PaceJitter, Step: cfg.PaceStep, Max: cfg.PaceMax}
}

// Delay returns the pause taken after the query at index.
func (p Pacing) Delay(index int) time.Duration {
	r := p.rand
	if r == nil {
		r = rand.Float64
	}
	d := p.Base + time.Duration(r()*float64(p.Jitter)) + time.Duration(index)*p.Step
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Runner executes queries. It is safe for concurrent use across slots.
type Runner struct {
	browser  browser.Browser
	session  *engine.Session
	recorder Recorder
	cfg      config.SearchConfig
	pacing   Pacing
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner. recorder may be nil.
func NewRunner(b browser.Browser, session *engine.Session, recorder Recorder, cfg config.SearchConfig) *Runner {
	return &Runner{
		browser:  b,
		session:  session,
		recorder: recorder,
		cfg:      cfg,
		pacing:   NewPacing(cfg),
		sleep:    sleepCtx,
	}
}

// Search runs query on slot. A navigation failure is returned as an error
// and not retried. A rate-limit page costs one backoff and yields an empty
// Harvest without error; the query is abandoned.
func (r *Runner) Search(ctx context.Context, slot, index int, query string) (Harvest, error) {
	h, err := r.fetch(ctx, slot, query, r.cfg.NumResults)
	if err != nil || h.RateLimited {
		return h, err
	}

	if r.recorder != nil && len(h.Results) > 0 {
		if err := r.recorder.RecordSearch(query, h.Results); err != nil {
			slog.Warn("search: failed to record raw results", "query", query, "error", err)
		}
	}
	slog.Info("search: query completed", "index", index, "slot", slot, "results", len(h.Results))

	_ = r.sleep(ctx, r.pacing.Delay(index))
	return h, nil
}

// Lookup runs a narrow query on slot and keeps results whose URL passes keep.
// It shares the session, rate-limit policy and pacing of Search.
func (r *Runner) Lookup(ctx context.Context, slot int, query string, num int, keep func(url string) bool) ([]models.SearchResult, error) {
	h, err := r.fetch(ctx, slot, query, num)
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchResult, 0, len(h.Results))
	for _, res := range h.Results {
		if keep == nil || keep(res.URL) {
			out = append(out, res)
		}
	}
	if !h.RateLimited {
		_ = r.sleep(ctx, r.pacing.Delay(0))
	}
	return out, nil
}

func (r *Runner) fetch(ctx context.Context, slot int, query string, num int) (Harvest, error) {
	empty := Harvest{Results: []models.SearchResult{}}

	if r.session != nil {
		if err := r.session.Wait(ctx); err != nil {
			return empty, browser.CategorizeError(err, "waiting for session")
		}
	}

	target := QueryURL(r.cfg.BaseURL, query, num)
	if err := r.browser.Navigate(ctx, slot, target, r.cfg.NavigationTimeout); err != nil {
		slog.Warn("search: navigation failed", "query", query, "slot", slot, "error", err)
		return empty, err
	}

	if _, err := r.browser.WaitForSelectorAny(ctx, slot, ResultSelectors, r.cfg.ResultsWait); err != nil {
		if !errors.Is(err, browser.ErrNoMatch) {
			slog.Debug("search: results wait failed", "query", query, "error", err)
		}
	}

	html, err := r.browser.Content(ctx, slot)
	if err != nil {
		return empty, err
	}

	if IsRateLimited(html) {
		slog.Warn("search: rate limited, backing off and skipping query",
			"query", query, "slot", slot, "backoff", r.cfg.RateLimitBackoff)
		if r.session != nil {
			r.session.ReportRateLimit()
		}
		_ = r.sleep(ctx, r.cfg.RateLimitBackoff)
		empty.RateLimited = true
		return empty, nil
	}

	return Harvest{Results: ParseResults(html)}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
