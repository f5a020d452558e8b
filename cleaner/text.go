package cleaner

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// NoiseSelectors are removed before any text is read from a page.
var NoiseSelectors = []string{
	"script", "style", "noscript", "template", "svg", "iframe",
	"nav", "footer", "header", ".ads", ".cookie-banner",
}

// Strip removes every element matching selectors from doc.
func Strip(doc *goquery.Document, selectors []string) {
	for _, sel := range selectors {
		doc.Find(sel).Remove()
	}
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "hr": true, "li": true, "main": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

// InnerText approximates the browser's innerText: block elements break
// lines and runs of whitespace collapse.
func InnerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(n)
	return normalizeLines(b.String())
}

// SelectionText is InnerText over every node of s.
func SelectionText(s *goquery.Selection) string {
	parts := make([]string, 0, s.Length())
	for _, n := range s.Nodes {
		if t := InnerText(n); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
