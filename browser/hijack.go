package browser

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerHosts are ad and analytics hosts dropped when BlockAds is set.
// Social networks themselves are absent: their pages are scrape targets.
var trackerHosts = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"facebook.net":          {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"criteo.net":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"moatads.com":           {},
	"pubmatic.com":          {},
	"rubiconproject.com":    {},
	"scorecardresearch.com": {},
	"quantserve.com":        {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"segment.com":           {},
	"ads-twitter.com":       {},
	"chartbeat.com":         {},
	"optimizely.com":        {},
	"demdex.net":            {},
	"krxd.net":              {},
	"bluekai.com":           {},
	"rlcdn.com":             {},
	"sharethis.com":         {},
	"addthis.com":           {},
	"consensu.org":          {},
}

// isTrackerHost reports whether host or one of its parent domains is a tracker.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for host != "" {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return false
}

// setupHijack intercepts the tab's requests and fails blocked resource types
// and tracker hosts. It returns nil when nothing is blocked.
func setupHijack(page *rod.Page, blockedTypes []string, blockAds bool) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 && !blockAds {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if _, ok := blocked[h.Request.Type()]; ok {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if blockAds && h.Request.Type() != proto.NetworkResourceTypeDocument {
			if u, err := url.Parse(h.Request.URL().String()); err == nil && isTrackerHost(u.Hostname()) {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
