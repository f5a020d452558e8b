package llm

import (
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/use-agent/leadscout/models"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `  {"a":1} `, `{"a":1}`},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"inline fence", "```[1]```", "[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var v []int
	if err := DecodeJSON("```json\n[3,4]\n```", &v, "numbers"); err != nil {
		t.Fatal(err)
	}
	if len(v) != 2 || v[1] != 4 {
		t.Errorf("v = %v", v)
	}

	raw := "Sure! Here are the results: [1,"
	err := DecodeJSON(raw, &v, "numbers")
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ScrapeError", err)
	}
	if se.Code != models.ErrCodeLLMMalformed || se.Raw != raw {
		t.Errorf("got code %s raw %q", se.Code, se.Raw)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"aé", 2, "a..."},
		{"日本語", 4, "日..."},
		{"日本語", 6, "日本..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
		}
	}
}
