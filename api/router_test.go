package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/leadscout/api/handler"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/engine"
	"github.com/use-agent/leadscout/models"
	"github.com/use-agent/leadscout/pipeline"
	"github.com/use-agent/leadscout/webhook"
)

const testKey = "secret-key"

type fakeGenerator struct {
	release chan struct{}
	rep     *models.RunReport
	err     error

	mu        sync.Mutex
	campaigns []models.Campaign
	dorks     [][]string
}

func (f *fakeGenerator) Generate(ctx context.Context, c models.Campaign, dorks []string, progress pipeline.ProgressFunc) (*models.RunReport, error) {
	f.mu.Lock()
	f.campaigns = append(f.campaigns, c)
	f.dorks = append(f.dorks, dorks)
	f.mu.Unlock()

	if progress != nil {
		progress(models.Progress{Stage: models.StageSearch, Completed: 1, Total: 1, Count: 4})
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.rep, f.err
}

type fakeParser struct{}

func (fakeParser) ParsePrompt(_ context.Context, prompt string) models.Campaign {
	return models.Campaign{Services: "parsed: " + prompt}
}

func sampleReport() *models.RunReport {
	return &models.RunReport{
		Leads: []models.LeadRecord{
			{
				Company:      "Acme",
				Contacts:     models.ContactInfo{Emails: []string{"hi@acme.io"}, Website: "https://acme.io"},
				BusinessInfo: models.BusinessInfo{Industry: "Software", Location: "Austin"},
				Provenance:   models.Provenance{Score: 8},
			},
			{Company: "Beta", Provenance: models.Provenance{Score: 5}},
		},
		Stats: models.RunStats{Leads: 2},
	}
}

func newTestServer(t *testing.T, gen *fakeGenerator) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{testKey}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := NewRouter(Deps{
		Generator: gen,
		Parser:    fakeParser{},
		Pool:      engine.NewSlotPool(2),
		Session:   engine.NewSession(0, 1, time.Minute),
		Jobs:      handler.NewJobs(ctx, time.Hour),
		Notifier:  webhook.New(),
	}, cfg, time.Now())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealthSkipsAuth(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{rep: sampleReport()})

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var h models.HealthResponse
	decode(t, resp, &h)
	if h.Status != "healthy" || h.PoolStats.Capacity != 2 || len(h.PoolStats.Slots) != 2 {
		t.Errorf("health = %+v", h)
	}
}

func TestProtectedRoutesRequireKey(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{rep: sampleReport()})

	resp, err := http.Post(srv.URL+"/api/v1/campaigns", "application/json", strings.NewReader(`{"prompt":"apps"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var e models.ErrorResponse
	decode(t, resp, &e)
	if e.Error == nil || e.Error.Code != models.ErrCodeUnauthorized {
		t.Errorf("error = %+v", e.Error)
	}
}

func pollCampaign(t *testing.T, srv *httptest.Server, id string) models.CampaignStatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var st models.CampaignStatusResponse
		decode(t, do(t, http.MethodGet, srv.URL+"/api/v1/campaigns/"+id, nil), &st)
		if st.Status != handler.StatusProcessing {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("campaign %s still processing", id)
	return models.CampaignStatusResponse{}
}

func TestCampaignLifecycle(t *testing.T) {
	gen := &fakeGenerator{rep: sampleReport()}
	srv := newTestServer(t, gen)

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/campaigns", models.CampaignRequest{
		Prompt: "mobile apps for dentists",
		Dorks:  []string{"site:clutch.co dentist app"},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var created models.CampaignResponse
	decode(t, resp, &created)
	if created.ID == "" || created.Status != handler.StatusProcessing {
		t.Fatalf("created = %+v", created)
	}

	st := pollCampaign(t, srv, created.ID)
	if st.Status != handler.StatusCompleted || st.Report == nil || len(st.Report.Leads) != 2 {
		t.Fatalf("status = %+v", st)
	}
	if st.Progress.Stage != models.StageSearch {
		t.Errorf("progress = %+v", st.Progress)
	}

	gen.mu.Lock()
	defer gen.mu.Unlock()
	if gen.campaigns[0].Services != "parsed: mobile apps for dentists" {
		t.Errorf("campaign = %+v", gen.campaigns[0])
	}
	if len(gen.dorks[0]) != 1 {
		t.Errorf("dorks = %v", gen.dorks[0])
	}
}

func TestCampaignFailure(t *testing.T) {
	gen := &fakeGenerator{err: models.NewScrapeError(models.ErrCodeLLMMalformed, "no dorks in plan", nil)}
	srv := newTestServer(t, gen)

	var created models.CampaignResponse
	decode(t, do(t, http.MethodPost, srv.URL+"/api/v1/campaigns", models.CampaignRequest{
		Campaign: models.Campaign{Services: "apps"},
	}), &created)

	st := pollCampaign(t, srv, created.ID)
	if st.Status != handler.StatusFailed || st.Error == nil || st.Error.Code != models.ErrCodeLLMMalformed {
		t.Fatalf("status = %+v", st)
	}
}

func TestCampaignValidation(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{rep: sampleReport()})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/campaigns", models.CampaignRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty campaign status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/v1/campaigns/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id status = %d", resp.StatusCode)
	}
}

func TestSecondCampaignIsRejected(t *testing.T) {
	gen := &fakeGenerator{rep: sampleReport(), release: make(chan struct{})}
	srv := newTestServer(t, gen)

	first := do(t, http.MethodPost, srv.URL+"/api/v1/campaigns", models.CampaignRequest{Prompt: "one"})
	if first.StatusCode != http.StatusAccepted {
		t.Fatalf("first status = %d", first.StatusCode)
	}
	var created models.CampaignResponse
	decode(t, first, &created)

	second := do(t, http.MethodPost, srv.URL+"/api/v1/campaigns", models.CampaignRequest{Prompt: "two"})
	if second.StatusCode != http.StatusConflict {
		t.Fatalf("second status = %d", second.StatusCode)
	}
	var e models.ErrorResponse
	decode(t, second, &e)
	if e.Error == nil || e.Error.Code != models.ErrCodeBusy {
		t.Errorf("error = %+v", e.Error)
	}

	stream := do(t, http.MethodPost, srv.URL+"/api/v1/leads/stream", models.StreamRequest{Prompt: "three"})
	if stream.StatusCode != http.StatusConflict {
		t.Errorf("stream status = %d", stream.StatusCode)
	}

	close(gen.release)
	if st := pollCampaign(t, srv, created.ID); st.Status != handler.StatusCompleted {
		t.Errorf("status = %s", st.Status)
	}
}

func TestStreamLeads(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{rep: sampleReport()})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/leads/stream", models.StreamRequest{Prompt: "apps"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	text := string(body)

	if strings.Count(text, "event:leads") != 2 {
		t.Errorf("want 2 leads events in %q", text)
	}
	if !strings.Contains(text, "event:progress") {
		t.Errorf("missing progress event in %q", text)
	}
	if !strings.Contains(text, `"priority":"HIGH"`) || !strings.Contains(text, `"priority":"LOW"`) {
		t.Errorf("priorities missing in %q", text)
	}
	last := strings.LastIndex(text, "event:")
	if !strings.HasPrefix(text[last:], "event:complete") || !strings.Contains(text[last:], `"total_leads":2`) {
		t.Errorf("stream does not end with complete: %q", text[last:])
	}
}

func TestStreamRequiresPrompt(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{rep: sampleReport()})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/leads/stream", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStreamReportsFailure(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{err: models.NewScrapeError(models.ErrCodeLLMMalformed, "bad plan", nil)})

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/leads/stream", models.StreamRequest{Prompt: "apps"})
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "event:error") || !strings.Contains(string(body), models.ErrCodeLLMMalformed) {
		t.Errorf("body = %q", body)
	}
}
