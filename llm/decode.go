package llm

import (
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/leadscout/models"
)

// maxLoggedRaw bounds how much of a malformed reply is logged.
const maxLoggedRaw = 2000

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON unfences raw and unmarshals it into v. On failure it logs the
// reply and returns an LLM_MALFORMED_RESPONSE error carrying the raw text.
func DecodeJSON(raw string, v any, what string) error {
	body := StripCodeFence(raw)
	if err := json.Unmarshal([]byte(body), v); err != nil {
		slog.Warn("llm: malformed response", "what", what, "error", err, "raw", truncate(raw, maxLoggedRaw))
		se := models.NewScrapeError(models.ErrCodeLLMMalformed, "could not parse "+what, err)
		se.Raw = raw
		return se
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
