package deepscrape

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/use-agent/leadscout/models"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// North American layout first, then anything international with a leading +.
	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}|\+[0-9][0-9 ().-]{8,}[0-9]`)

	socialRe = regexp.MustCompile(`https?://(?:[a-z]{2,3}\.)?(?:www\.)?(?:linkedin\.com/(?:in|company)/[A-Za-z0-9_%-]+|twitter\.com/[A-Za-z0-9_]+|x\.com/[A-Za-z0-9_]+|facebook\.com/[A-Za-z0-9.\-]+|instagram\.com/[A-Za-z0-9_.]+|youtube\.com/(?:c/|channel/|@)[A-Za-z0-9_\-]+)`)

	roleWords = `CEO|CTO|CFO|COO|CMO|Founder|Co-Founder|Cofounder|Director|Manager|VP|President|Owner|Contact|Head of [A-Z][a-z]+`

	// "CEO Jane Doe", "Founder: Jane Doe"
	roleThenNameRe = regexp.MustCompile(`\b(?i:(` + roleWords + `))[\s:,-]+([A-Z][a-z]+ [A-Z][a-z]+)\b`)

	// "Jane Doe, CEO", "Jane Doe - Founder"
	nameThenRoleRe = regexp.MustCompile(`\b([A-Z][a-z]+ [A-Z][a-z]+)\s*[,|–-]\s*(?i:(` + roleWords + `))\b`)
)

// Emails whose domain contains one of these are placeholders.
var placeholderEmailDomains = []string{"example.com", "example.org", "test.com", "domain.com", "email.com", "sentry.io"}

var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"}

// socialHosts are excluded from the generic website list.
var socialHosts = []string{"linkedin.com", "facebook.com", "twitter.com", "x.com", "instagram.com", "youtube.com"}

// FindEmails returns distinct, lowercased addresses in text minus
// placeholders and image file names that look like addresses.
func FindEmails(text string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, m := range emailRe.FindAllString(text, -1) {
		e := strings.ToLower(strings.Trim(m, "."))
		if !validEmail(e) {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func validEmail(e string) bool {
	at := strings.LastIndexByte(e, '@')
	if at < 1 {
		return false
	}
	domain := e[at+1:]
	for _, p := range placeholderEmailDomains {
		if strings.Contains(domain, p) {
			return false
		}
	}
	for _, s := range imageSuffixes {
		if strings.HasSuffix(e, s) {
			return false
		}
	}
	return true
}

// NormalizePhone keeps only the digits of p.
func NormalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindPhones returns distinct phone numbers with 10 to 15 digits.
func FindPhones(text string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, m := range phoneRe.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		digits := NormalizePhone(m)
		if len(digits) < 10 || len(digits) > 15 {
			continue
		}
		key := digits
		if len(key) == 11 && key[0] == '1' {
			key = key[1:]
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

// FindSocialLinks returns distinct social and profile URLs found in any of
// the inputs, in first-seen order.
func FindSocialLinks(inputs ...string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, in := range inputs {
		for _, m := range socialRe.FindAllString(in, -1) {
			m = strings.TrimRight(m, "/.")
			key := strings.ToLower(m)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// FindWebsites returns up to limit distinct external http(s) links that are
// not social networks and not on the page's own host.
func FindWebsites(links []string, pageHost string, limit int) []string {
	out := []string{}
	seen := make(map[string]struct{})
	pageHost = strings.TrimPrefix(strings.ToLower(pageHost), "www.")
	for _, l := range links {
		if limit > 0 && len(out) >= limit {
			break
		}
		u, err := url.Parse(strings.TrimSpace(l))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host == pageHost || isSocialHost(host) {
			continue
		}
		site := u.Scheme + "://" + u.Host
		if _, ok := seen[site]; ok {
			continue
		}
		seen[site] = struct{}{}
		out = append(out, site)
	}
	return out
}

func isSocialHost(host string) bool {
	for _, s := range socialHosts {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// notNames are capitalised words that follow role keywords in page chrome
// ("Contact Us Today", "Manager Sign In").
var notNames = map[string]struct{}{
	"Us": {}, "Our": {}, "The": {}, "Me": {}, "Sales": {}, "Support": {}, "Team": {},
	"Info": {}, "Sign": {}, "Log": {}, "Read": {}, "More": {}, "View": {}, "Get": {},
}

// FindPeople returns distinct names that appear next to a role keyword.
func FindPeople(text string) []models.Person {
	out := []models.Person{}
	seen := make(map[string]struct{})
	add := func(name, role string) {
		for _, w := range strings.Fields(name) {
			if _, bad := notNames[w]; bad {
				return
			}
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, models.Person{Name: name, Role: role})
	}
	for _, m := range roleThenNameRe.FindAllStringSubmatch(text, -1) {
		add(m[2], m[1])
	}
	for _, m := range nameThenRoleRe.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	return out
}
