package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/leadscout/models"
)

// ResultSelectors signal that a results page has rendered. Any one is enough.
var ResultSelectors = []string{"div.g", "div.tF2Cxc", "[data-ved]"}

// Markup variants of a results page, tried in order.
var layouts = []struct {
	block   string
	snippet string
}{
	{block: "div.tF2Cxc, div.g", snippet: ".VwiC3b, .IsZvec"},
	{block: "div[data-ved]", snippet: ".s, .st, span[data-ved]"},
}

// rateLimitMarkers are lowercase fragments of the engine's interstitial page.
var rateLimitMarkers = []string{
	"unusual traffic",
	"our systems have detected",
	"/sorry/index",
	"id=\"captcha-form\"",
}

// IsRateLimited reports whether html is the engine's rate-limit page.
func IsRateLimited(html string) bool {
	lower := strings.ToLower(html)
	for _, m := range rateLimitMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// QueryURL builds the results URL for query.
func QueryURL(base, query string, num int) string {
	v := url.Values{}
	v.Set("q", query)
	if num > 0 {
		v.Set("num", strconv.Itoa(num))
	}
	return base + "?" + v.Encode()
}

// ParseResults extracts listings from a results page. The primary layout
// is tried first and the alternative only when it yields nothing. Links
// to the engine itself are dropped and redirect links are unwrapped.
func ParseResults(html string) []models.SearchResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []models.SearchResult{}
	}
	for _, l := range layouts {
		if out := parseLayout(doc, l.block, l.snippet); len(out) > 0 {
			return out
		}
	}
	return []models.SearchResult{}
}

func parseLayout(doc *goquery.Document, block, snippetSel string) []models.SearchResult {
	out := []models.SearchResult{}
	seen := make(map[string]struct{})
	doc.Find(block).Each(func(_ int, s *goquery.Selection) {
		title := collapse(s.Find("h3").First().Text())
		href, _ := s.Find("a[href]").First().Attr("href")
		link := resolveLink(href)
		if title == "" || link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		out = append(out, models.SearchResult{
			Title:   title,
			URL:     link,
			Snippet: collapse(s.Find(snippetSel).First().Text()),
		})
	})
	return out
}

// resolveLink unwraps /url?q= redirects and rejects relative, non-http
// and engine-owned links.
func resolveLink(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("q")
		if href == "" {
			href = u.Query().Get("url")
		}
	}
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	if strings.Contains(strings.ToLower(u.Host), "google.") {
		return ""
	}
	return u.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
