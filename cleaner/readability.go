package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minReadableLength is the shortest TextContent accepted from readability.
const minReadableLength = 50

// ReadableText runs Mozilla Readability over rawHTML and returns the main
// text. ok is false when the page has no recognisable article.
func ReadableText(rawHTML, sourceURL string) (text string, ok bool) {
	u, err := nurl.Parse(sourceURL)
	if err != nil {
		return "", false
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", sourceURL, "error", err)
		return "", false
	}
	text = strings.TrimSpace(article.TextContent)
	if len(text) < minReadableLength {
		return "", false
	}
	return text, true
}
