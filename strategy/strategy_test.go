package strategy

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/use-agent/leadscout/llm/llmtest"
	"github.com/use-agent/leadscout/models"
)

func TestPlan(t *testing.T) {
	stub := &llmtest.Stub{Default: "```json\n" + `{
		"platforms": ["clutch.co", "reddit.com", "clutch.co"],
		"keywords": ["mobile app agency", " "],
		"dorks": ["site:clutch.co \"mobile app\"", "site:reddit.com \"need an app developer\""]
	}` + "\n```"}

	s, err := NewPlanner(stub).Plan(context.Background(), models.Campaign{Services: "mobile apps"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Platforms, []string{"clutch.co", "reddit.com"}) {
		t.Errorf("Platforms = %v", s.Platforms)
	}
	if !reflect.DeepEqual(s.Keywords, []string{"mobile app agency"}) {
		t.Errorf("Keywords = %v", s.Keywords)
	}
	if len(s.Dorks) != 2 {
		t.Errorf("Dorks = %v", s.Dorks)
	}
	if !strings.Contains(stub.Prompts()[0], "8-10 diverse platforms") {
		t.Error("open platform prompt expected")
	}
}

func TestPlan_CampaignPlatformsOverride(t *testing.T) {
	stub := &llmtest.Stub{Default: `{"platforms": ["linkedin.com"], "keywords": [], "dorks": ["site:g2.com crm"]}`}
	s, err := NewPlanner(stub).Plan(context.Background(), models.Campaign{Platforms: []string{"g2.com"}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Platforms, []string{"g2.com"}) {
		t.Errorf("Platforms = %v", s.Platforms)
	}
	if !strings.Contains(stub.Prompts()[0], "exactly these platforms: g2.com") {
		t.Error("prompt should restrict platforms")
	}
}

func TestPlan_Failures(t *testing.T) {
	tests := []struct {
		name string
		stub *llmtest.Stub
		code string
	}{
		{"malformed", &llmtest.Stub{Default: "no idea"}, models.ErrCodeLLMMalformed},
		{"no dorks", &llmtest.Stub{Default: `{"platforms": ["a.com"], "dorks": []}`}, models.ErrCodeLLMMalformed},
		{"call failed", &llmtest.Stub{Rules: []llmtest.Rule{{Match: "strategist", Err: models.NewScrapeError(models.ErrCodeLLMFailure, "down", errors.New("503"))}}}, models.ErrCodeLLMFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlanner(tt.stub).Plan(context.Background(), models.Campaign{})
			if models.CodeOf(err) != tt.code {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestParsePrompt(t *testing.T) {
	stub := &llmtest.Stub{Default: `{"business": "Agency", "services": "mobile apps", "audience": "fintech startups",
		"budget": "$20k", "geography": "UK", "platforms": ["clutch.co", "g2.com"]}`}
	c := NewPlanner(stub).ParsePrompt(context.Background(), "We build mobile apps for fintech startups in the UK, only Clutch and G2")
	want := models.Campaign{Business: "Agency", Services: "mobile apps", Audience: "fintech startups",
		Budget: "$20k", Geography: "UK", Platforms: []string{"clutch.co", "g2.com"}}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("got %+v, want %+v", c, want)
	}
}

func TestParsePrompt_Fallback(t *testing.T) {
	for _, stub := range []*llmtest.Stub{
		{Default: "I can't parse that"},
		{Rules: []llmtest.Rule{{Match: "parsing user input", Err: errors.New("down")}}},
	} {
		c := NewPlanner(stub).ParsePrompt(context.Background(), "find me SaaS founders")
		if c.Services != "find me SaaS founders" || c.Business != "" || c.Platforms == nil || len(c.Platforms) != 0 {
			t.Errorf("fallback = %+v", c)
		}
	}
}
