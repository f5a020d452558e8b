package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/leadscout/aggregate"
	"github.com/use-agent/leadscout/browser/browsertest"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/deepscrape"
	"github.com/use-agent/leadscout/engine"
	"github.com/use-agent/leadscout/leads"
	"github.com/use-agent/leadscout/llm/llmtest"
	"github.com/use-agent/leadscout/models"
	"github.com/use-agent/leadscout/search"
	"github.com/use-agent/leadscout/strategy"
)

const searchBase = "https://search.test/search"

type memRecorder struct {
	mu      sync.Mutex
	queries []string
	saved   []string
	written *models.RunReport
}

func (m *memRecorder) RecordSearch(query string, results []models.SearchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	return nil
}

func (m *memRecorder) SaveLead(lead *models.LeadRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, lead.Company)
	return "", nil
}

func (m *memRecorder) WriteAll(ctx context.Context, rep *models.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = rep
	return nil
}

func resultsPage(urls ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, u := range urls {
		fmt.Fprintf(&b, `<div class="g"><a href="%s"><h3>%s company page</h3></a><div class="VwiC3b">About %s</div></div>`, u, u, u)
	}
	b.WriteString("</body></html>")
	return b.String()
}

const rateLimitPage = `<html><body>Our systems have detected unusual traffic from your computer network.</body></html>`

var pageTexts = map[string]string{
	"https://a.io": "Acme builds payment rails for regional credit unions and has offices in Denver and Lisbon.",
	"https://b.io": "Beta Robotics designs warehouse picking arms used by grocery chains across Northern Europe.",
	"https://c.io": "Cedar Health runs telemedicine clinics for rural veterans with a staff of forty nurses.",
}

func sitePage(u, text string) string {
	host := strings.TrimPrefix(u, "https://")
	return fmt.Sprintf(`<html><head><title>%s</title></head><body><main><p>%s</p><p>Contact: hello@%s</p></main></body></html>`, host, text, host)
}

type fixture struct {
	browser  *browsertest.Fake
	stub     *llmtest.Stub
	recorder *memRecorder
	pipeline *Pipeline
	agg      config.AggregateConfig
}

func newFixture(t *testing.T, capacity int, serp map[string]string, sites map[string]string) *fixture {
	t.Helper()
	fb := browsertest.New(capacity)
	fb.Route = func(raw string) (browsertest.Page, bool) {
		if strings.HasPrefix(raw, searchBase) {
			u, err := url.Parse(raw)
			if err != nil {
				return browsertest.Page{}, false
			}
			html, ok := serp[u.Query().Get("q")]
			return browsertest.Page{HTML: html, Delay: time.Millisecond}, ok
		}
		html, ok := sites[raw]
		return browsertest.Page{HTML: html}, ok
	}

	rec := &memRecorder{}
	stub := &llmtest.Stub{}
	searchRunner := search.NewRunner(fb, engine.NewSession(0, 1, time.Millisecond), rec, config.SearchConfig{
		BaseURL:           searchBase,
		NumResults:        20,
		NavigationTimeout: time.Second,
		ResultsWait:       10 * time.Millisecond,
		RateLimitBackoff:  time.Millisecond,
	})
	scraper := deepscrape.NewRunner(fb, nil, config.ScrapeConfig{
		NavigationTimeout: time.Second,
		ContentWait:       time.Millisecond,
		MaxContentChars:   5000,
		MaxWebsites:       5,
	}, nil)
	agg := config.AggregateConfig{MinScore: 6, FallbackFloor: 20, FallbackScore: 4}
	leadCfg := config.LeadConfig{NearDuplicateDistance: 3}

	p := New(Deps{
		Pool:      engine.NewSlotPool(capacity),
		Searcher:  searchRunner,
		Scraper:   scraper,
		Scorer:    aggregate.NewScorer(stub, 0),
		Extractor: leads.NewExtractor(stub, searchRunner, leadCfg),
		Planner:   strategy.NewPlanner(stub),
		Sink:      rec,
	}, agg, leadCfg)
	return &fixture{browser: fb, stub: stub, recorder: rec, pipeline: p, agg: agg}
}

func leadRule(site, company string) llmtest.Rule {
	return llmtest.Rule{
		Match: "URL: " + site + "\nLooking for",
		Reply: fmt.Sprintf(`{"company": %q, "key_people": [], "contact_info": {"emails": ["hello@x.io"]}, "lead_score": 7}`, company),
	}
}

func TestRun_SearchScoreScrape(t *testing.T) {
	serp := map[string]string{
		"q1": resultsPage("https://a.io", "https://b.io"),
		"q2": rateLimitPage,
		"q3": resultsPage("https://b.io", "https://c.io"),
	}
	sites := map[string]string{}
	for u, text := range pageTexts {
		sites[u] = sitePage(u, text)
	}
	f := newFixture(t, 2, serp, sites)
	f.stub.Rules = []llmtest.Rule{
		{Match: "lead qualifier", Reply: `[
			{"index": 1, "score": 8, "reason": "a", "deepScrape": true},
			{"index": 2, "score": 7, "reason": "b", "deepScrape": true},
			{"index": 3, "score": 9, "reason": "c", "deepScrape": true}
		]`},
		leadRule("https://a.io", "Acme"),
		leadRule("https://b.io", "Beta Robotics"),
		leadRule("https://c.io", "Cedar Health"),
	}

	var mu sync.Mutex
	var events []models.Progress
	progress := func(p models.Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	}

	rep, err := f.pipeline.Run(context.Background(), models.Campaign{Services: "apps"},
		models.Strategy{Dorks: []string{"q1", "q2", "q3"}}, progress)
	if err != nil {
		t.Fatal(err)
	}

	s := rep.Stats
	if s.Queries != 3 || s.RawResults != 4 || s.Unique != 3 || s.RateLimited != 1 || s.Failed != 0 {
		t.Errorf("search stats = %+v", s)
	}
	if s.Selected != 3 || s.Scraped != 3 || s.Leads != 3 || s.Fallback != 0 {
		t.Errorf("scrape stats = %+v", s)
	}
	wantCompanies := []string{"Acme", "Beta Robotics", "Cedar Health"}
	for i, l := range rep.Leads {
		if l.Company != wantCompanies[i] {
			t.Errorf("lead %d = %q, want %q", i, l.Company, wantCompanies[i])
		}
		if l.Provenance.Page == nil || l.Provenance.Page.URL != l.Provenance.Source.URL {
			t.Errorf("lead %d provenance = %+v", i, l.Provenance)
		}
	}

	if got := strings.Join(f.recorder.queries, ","); got != "q1,q3" && got != "q3,q1" {
		t.Errorf("raw dumps = %v, rate-limited query must not be recorded", f.recorder.queries)
	}
	if len(f.recorder.saved) != 3 || f.recorder.written != rep {
		t.Errorf("sink saved %v, written %v", f.recorder.saved, f.recorder.written != nil)
	}
	if n := len(f.browser.Overlaps()); n != 0 {
		t.Errorf("%d slots were used by two tasks at once", n)
	}
	if got := f.pipeline.Pool().InUse(); got != 0 {
		t.Errorf("slots still held after run: %d", got)
	}

	var lastSearch, lastScrape models.Progress
	for _, e := range events {
		switch e.Stage {
		case models.StageSearch:
			lastSearch = e
		case models.StageScrape:
			lastScrape = e
		}
	}
	if lastSearch != (models.Progress{Stage: models.StageSearch, Completed: 3, Total: 3, Count: 4}) {
		t.Errorf("last search progress = %+v", lastSearch)
	}
	if lastScrape != (models.Progress{Stage: models.StageScrape, Completed: 3, Total: 3, Count: 3}) {
		t.Errorf("last scrape progress = %+v", lastScrape)
	}
}

func TestRun_FallbackTopUpFeedsDeepScrape(t *testing.T) {
	serp := map[string]string{
		"q1": resultsPage("https://clutch.co/profile/acme", "https://blog.io/post"),
	}
	sites := map[string]string{
		"https://clutch.co/profile/acme": sitePage("https://clutch.co/profile/acme", pageTexts["https://a.io"]),
	}
	f := newFixture(t, 2, serp, sites)
	f.stub.Rules = []llmtest.Rule{
		{Match: "lead qualifier", Reply: "I could not score these."},
		leadRule("https://clutch.co/profile/acme", "Acme"),
	}

	rep, err := f.pipeline.Run(context.Background(), models.Campaign{},
		models.Strategy{Dorks: []string{"q1"}, Platforms: []string{"clutch.co"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Stats.Selected != 1 || rep.Stats.Fallback != 1 || rep.Stats.Leads != 1 {
		t.Fatalf("stats = %+v", rep.Stats)
	}
	prov := rep.Leads[0].Provenance
	if !prov.Fallback || prov.Score != 4 || prov.Reason != aggregate.FallbackReason {
		t.Errorf("provenance = %+v", prov)
	}
}

func TestRun_ScrapeFailureIsolated(t *testing.T) {
	serp := map[string]string{"q1": resultsPage("https://a.io", "https://down.io")}
	sites := map[string]string{"https://a.io": sitePage("https://a.io", pageTexts["https://a.io"])}
	f := newFixture(t, 2, serp, sites)
	f.stub.Rules = []llmtest.Rule{
		{Match: "lead qualifier", Reply: `[{"index": 1, "score": 8, "deepScrape": true}, {"index": 2, "score": 8, "deepScrape": true}]`},
		leadRule("https://a.io", "Acme"),
	}

	rep, err := f.pipeline.Run(context.Background(), models.Campaign{}, models.Strategy{Dorks: []string{"q1"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Stats.Scraped != 1 || rep.Stats.Failed != 1 || rep.Stats.Leads != 1 {
		t.Errorf("stats = %+v", rep.Stats)
	}
}

func TestRun_NearDuplicatesCollapse(t *testing.T) {
	text := pageTexts["https://c.io"]
	serp := map[string]string{"q1": resultsPage("https://c.io", "https://mirror.io")}
	sites := map[string]string{
		"https://c.io":      sitePage("https://c.io", text),
		"https://mirror.io": sitePage("https://c.io", text),
	}
	f := newFixture(t, 2, serp, sites)
	f.stub.Rules = []llmtest.Rule{
		{Match: "lead qualifier", Reply: `[{"index": 1, "score": 8, "deepScrape": true}, {"index": 2, "score": 8, "deepScrape": true}]`},
		leadRule("https://c.io", "Cedar Health"),
		leadRule("https://mirror.io", "Cedar Health Mirror"),
	}

	rep, err := f.pipeline.Run(context.Background(), models.Campaign{}, models.Strategy{Dorks: []string{"q1"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Stats.Leads != 1 || rep.Stats.Duplicates != 1 || rep.Leads[0].Company != "Cedar Health" {
		t.Errorf("stats = %+v leads = %v", rep.Stats, rep.Leads)
	}
}

func TestRun_RejectsConcurrentCampaign(t *testing.T) {
	f := newFixture(t, 1, nil, nil)
	f.pipeline.running.Lock()
	defer f.pipeline.running.Unlock()

	_, err := f.pipeline.Run(context.Background(), models.Campaign{}, models.Strategy{Dorks: []string{"q"}}, nil)
	if models.CodeOf(err) != models.ErrCodeBusy {
		t.Errorf("err = %v", err)
	}
}

func TestGenerate_PlansWhenNoDorks(t *testing.T) {
	serp := map[string]string{"site:a.io apps": resultsPage("https://a.io")}
	sites := map[string]string{"https://a.io": sitePage("https://a.io", pageTexts["https://a.io"])}
	f := newFixture(t, 1, serp, sites)
	f.stub.Rules = []llmtest.Rule{
		{Match: "lead generation strategist", Reply: `{"platforms": ["a.io"], "keywords": ["apps"], "dorks": ["site:a.io apps"]}`},
		{Match: "lead qualifier", Reply: `[{"index": 1, "score": 9, "deepScrape": true}]`},
		leadRule("https://a.io", "Acme"),
	}

	rep, err := f.pipeline.Generate(context.Background(), models.Campaign{Services: "apps"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Strategy.Dorks) != 1 || rep.Stats.Leads != 1 {
		t.Errorf("report = %+v", rep.Stats)
	}

	// Given dorks skip planning.
	before := f.stub.Count("lead generation strategist")
	if _, err := f.pipeline.Generate(context.Background(), models.Campaign{}, []string{"site:a.io apps"}, nil); err != nil {
		t.Fatal(err)
	}
	if f.stub.Count("lead generation strategist") != before {
		t.Error("planner called despite explicit dorks")
	}
}
