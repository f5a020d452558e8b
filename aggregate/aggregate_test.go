package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/llm/llmtest"
	"github.com/use-agent/leadscout/models"
)

func res(url, title string) models.SearchResult {
	return models.SearchResult{Title: title, URL: url}
}

func testAggregateConfig() config.AggregateConfig {
	return config.AggregateConfig{MinScore: 6, FallbackFloor: 20, FallbackScore: 4}
}

func TestDeduplicate_FirstSeenWins(t *testing.T) {
	in := []models.SearchResult{
		{URL: "https://a.io", Title: "A1"},
		{URL: "https://b.io", Title: "B"},
		{URL: "https://a.io", Title: "A2"},
		{URL: "", Title: "empty"},
		{URL: "https://c.io", Title: "C"},
	}
	got := Deduplicate(in)
	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}
	if got[0].Title != "A1" || got[1].URL != "https://b.io" || got[2].URL != "https://c.io" {
		t.Errorf("got %+v", got)
	}
}

func TestSelect_ThresholdFilter(t *testing.T) {
	unique := []models.SearchResult{res("https://x.io/1", "one"), res("https://x.io/2", "two"), res("https://x.io/3", "three")}
	scored := []models.ScoredResult{
		{Index: 0, Score: 6, DeepScrape: true},
		{Index: 1, Score: 9, DeepScrape: false},
		{Index: 2, Score: 5.9, DeepScrape: true},
	}
	cfg := testAggregateConfig()
	cfg.FallbackFloor = 0

	got := Select(scored, unique, nil, cfg)
	if len(got) != 1 || got[0].Index != 0 {
		t.Errorf("got %+v, want only index 0", got)
	}
}

func TestSelect_FallbackFillsExactlyToFloor(t *testing.T) {
	var unique []models.SearchResult
	for i := 0; i < 40; i++ {
		unique = append(unique, res(fmt.Sprintf("https://clutch.co/profile/%d", i), fmt.Sprintf("Agency %d company profile", i)))
	}
	scored := make([]models.ScoredResult, 0, 5)
	for i := 0; i < 5; i++ {
		scored = append(scored, models.ScoredResult{Index: i * 3, Score: 8, DeepScrape: true, Reason: "good"})
	}

	got := Select(scored, unique, []string{"clutch.co"}, testAggregateConfig())
	if len(got) != 20 {
		t.Fatalf("len = %d, want 20", len(got))
	}
	seen := map[int]bool{}
	fallback := 0
	for i, s := range got {
		if seen[s.Index] {
			t.Errorf("duplicate index %d", s.Index)
		}
		seen[s.Index] = true
		if i < 5 {
			if s.Fallback || s.Score != 8 {
				t.Errorf("primary entry %d altered: %+v", i, s)
			}
			continue
		}
		fallback++
		if !s.Fallback || s.Score != 4 || s.Reason != FallbackReason || !s.DeepScrape {
			t.Errorf("fallback entry %d = %+v", i, s)
		}
	}
	if fallback != 15 {
		t.Errorf("fallback entries = %d, want 15", fallback)
	}
}

func TestSelect_FallbackRequiresPlatformAndKeyword(t *testing.T) {
	unique := []models.SearchResult{
		res("https://clutch.co/profile/a", "Acme Labs Reviews"), // platform + keyword
		res("https://clutch.co/profile/b", "Beta Labs"),         // platform, no keyword
		res("https://blog.io/founder-story", "Founder story"),   // keyword, no platform
		res("https://www.g2.com/products/c", "C Company"),       // platform + keyword
	}
	got := Select(nil, unique, []string{"clutch.co", "g2.com"}, testAggregateConfig())
	if len(got) != 2 || got[0].Index != 0 || got[1].Index != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestSelect_UsesDefaultPlatforms(t *testing.T) {
	cfg := testAggregateConfig()
	cfg.DefaultPlatforms = []string{"crunchbase.com"}
	unique := []models.SearchResult{res("https://www.crunchbase.com/organization/x", "X startup")}
	if got := Select(nil, unique, nil, cfg); len(got) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestSelect_NoDuplicateOrOutOfRange(t *testing.T) {
	unique := []models.SearchResult{res("https://a.io", "a"), res("https://b.io", "b")}
	scored := []models.ScoredResult{
		{Index: 1, Score: 7, DeepScrape: true},
		{Index: 1, Score: 9, DeepScrape: true},
		{Index: 5, Score: 9, DeepScrape: true},
		{Index: -1, Score: 9, DeepScrape: true},
	}
	got := Select(scored, unique, nil, testAggregateConfig())
	if len(got) != 1 || got[0].Index != 1 || got[0].Score != 7 {
		t.Errorf("got %+v", got)
	}
}

func TestScorer_Score(t *testing.T) {
	unique := []models.SearchResult{res("https://a.io", "a"), res("https://b.io", "b"), res("https://c.io", "c")}
	stub := &llmtest.Stub{Default: "```json\n" + `[
		{"index": 1, "score": 8, "reason": "decision maker", "deepScrape": true},
		{"index": 3, "score": "6", "reason": "company page", "deep_scrape": true},
		{"index": 3, "score": 9, "reason": "dup", "deepScrape": true},
		{"index": 7, "score": 9, "reason": "hallucinated", "deepScrape": true},
		{"index": 0, "score": 9, "reason": "zero", "deepScrape": true}
	]` + "\n```"}

	got, err := NewScorer(stub, 0).Score(context.Background(), models.Campaign{Services: "mobile apps"}, unique)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Index != 0 || got[0].Score != 8 || !got[0].DeepScrape {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Index != 2 || got[1].Score != 6 || !got[1].DeepScrape || got[1].Reason != "company page" {
		t.Errorf("second = %+v", got[1])
	}

	prompts := stub.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected one batched call, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0], "1. TITLE: a") || !strings.Contains(prompts[0], "3. TITLE: c") {
		t.Errorf("prompt does not number results from 1:\n%s", prompts[0])
	}
}

func TestScorer_MalformedResponse(t *testing.T) {
	stub := &llmtest.Stub{Default: "I think result 1 is great!"}
	got, err := NewScorer(stub, 0).Score(context.Background(), models.Campaign{}, []models.SearchResult{res("https://a.io", "a")})
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty", got)
	}
	if models.CodeOf(err) != models.ErrCodeLLMMalformed {
		t.Errorf("err = %v", err)
	}

	// Fallback still works from an empty score list.
	unique := []models.SearchResult{res("https://clutch.co/x", "X company")}
	if sel := Select(got, unique, []string{"clutch.co"}, testAggregateConfig()); len(sel) != 1 || !sel[0].Fallback {
		t.Errorf("fallback after malformed score = %+v", sel)
	}
}

func TestScorer_CallFailure(t *testing.T) {
	stub := &llmtest.Stub{Rules: []llmtest.Rule{{Match: "lead qualifier", Err: errors.New("boom")}}}
	got, err := NewScorer(stub, 0).Score(context.Background(), models.Campaign{}, []models.SearchResult{res("https://a.io", "a")})
	if err == nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestScorer_EmptyInputSkipsCall(t *testing.T) {
	stub := &llmtest.Stub{}
	if got, err := NewScorer(stub, 0).Score(context.Background(), models.Campaign{}, nil); err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
	if len(stub.Prompts()) != 0 {
		t.Error("no call expected for empty input")
	}
}
