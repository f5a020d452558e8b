package deepscrape

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/leadscout/cleaner"
	"github.com/use-agent/leadscout/models"
	"golang.org/x/net/html"
)

// Options bound what Extract keeps.
type Options struct {
	MaxContentChars int
	MaxWebsites     int

	// Markdown, when set, renders the chosen content element as Markdown.
	Markdown *cleaner.Markdown
}

// Extract builds a PageRecord from a rendered page. It never touches the
// network, so every branch is testable from fixtures.
func Extract(pageURL, rawHTML string, rules *RuleTable, opts Options) (*models.PageRecord, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse page HTML", err)
	}
	doc := goquery.NewDocumentFromNode(root)
	if rules == nil {
		rules = MustDefaultTable()
	}

	host := hostOf(pageURL)

	rec := &models.PageRecord{
		URL:             pageURL,
		Title:           strings.TrimSpace(doc.Find("title").First().Text()),
		MetaDescription: metaContent(doc, "description"),
		MetaKeywords:    metaContent(doc, "keywords"),
		Platform:        "website",
		ScrapedAt:       time.Now().UTC(),
	}

	// Links and platform fields are read before stripping; headers and
	// footers often carry both.
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if h, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, resolveHref(pageURL, h))
		}
	})

	rule := rules.Match(host)
	if rule != nil {
		rec.Platform = rule.Platform
		rec.PlatformFields = platformFields(root, rule)
	}

	cleaner.Strip(doc, cleaner.NoiseSelectors)
	bodyText := cleaner.SelectionText(doc.Find("body"))

	content, contentNode := mainContent(root, rules.contentSelectors(rule))
	if content == "" {
		if text, ok := cleaner.ReadableText(rawHTML, pageURL); ok {
			content = text
		} else {
			content = bodyText
		}
	}
	rec.Text = cleaner.Truncate(content, opts.MaxContentChars)

	if opts.Markdown != nil && contentNode != nil {
		var buf bytes.Buffer
		if err := html.Render(&buf, contentNode); err == nil {
			if md, err := opts.Markdown.Convert(buf.String(), host); err == nil {
				rec.Markdown = cleaner.Truncate(strings.TrimSpace(md), opts.MaxContentChars)
			}
		}
	}

	contactText := bodyText + "\n" + strings.Join(mailtoTargets(hrefs), "\n")
	rec.Emails = FindEmails(contactText)
	rec.Phones = FindPhones(bodyText + "\n" + strings.Join(telTargets(hrefs), "\n"))
	rec.SocialLinks = FindSocialLinks(strings.Join(hrefs, "\n"), bodyText)
	rec.Websites = FindWebsites(hrefs, host, opts.MaxWebsites)
	rec.People = FindPeople(content)

	return rec, nil
}

// platformFields reads each rule field from the first matching node.
func platformFields(root *html.Node, rule *CompiledRule) map[string]string {
	fields := make(map[string]string, len(rule.fields))
	for _, f := range rule.fields {
		if n := cascadia.Query(root, f.sel); n != nil {
			if v := cleaner.InnerText(n); v != "" {
				fields[f.key] = v
			}
		}
	}
	return fields
}

// mainContent returns the text of the first selector matching a node with
// non-empty text.
func mainContent(root *html.Node, selectors []cascadia.Sel) (string, *html.Node) {
	for _, sel := range selectors {
		n := cascadia.Query(root, sel)
		if n == nil {
			continue
		}
		if text := cleaner.InnerText(n); text != "" {
			return text, n
		}
	}
	return "", nil
}

func metaContent(doc *goquery.Document, name string) string {
	v, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(v)
}

func resolveHref(base, href string) string {
	href = strings.TrimSpace(href)
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func mailtoTargets(hrefs []string) []string {
	var out []string
	for _, h := range hrefs {
		if rest, ok := strings.CutPrefix(strings.ToLower(h), "mailto:"); ok {
			if i := strings.IndexByte(rest, '?'); i >= 0 {
				rest = rest[:i]
			}
			if addr, err := url.PathUnescape(rest); err == nil {
				out = append(out, addr)
			}
		}
	}
	return out
}

func telTargets(hrefs []string) []string {
	var out []string
	for _, h := range hrefs {
		if rest, ok := strings.CutPrefix(strings.ToLower(h), "tel:"); ok {
			if num, err := url.PathUnescape(rest); err == nil {
				out = append(out, num)
			}
		}
	}
	return out
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
