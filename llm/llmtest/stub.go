// Package llmtest provides a deterministic Completer for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/use-agent/leadscout/llm"
)

// Rule answers prompts containing Match.
type Rule struct {
	Match string
	Reply string
	Err   error
}

// Stub replies with the first Rule whose Match is a substring of the
// prompt, or with Default.
type Stub struct {
	Rules   []Rule
	Default string

	mu      sync.Mutex
	prompts []string
}

var _ llm.Completer = (*Stub)(nil)

// Complete records the prompt and returns the matching reply.
func (s *Stub) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	for _, r := range s.Rules {
		if strings.Contains(prompt, r.Match) {
			return r.Reply, r.Err
		}
	}
	return s.Default, nil
}

// Prompts returns every prompt received so far.
func (s *Stub) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Count returns how many prompts contained substr.
func (s *Stub) Count(substr string) int {
	n := 0
	for _, p := range s.Prompts() {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}
