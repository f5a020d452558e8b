package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/models"
	"github.com/ysmood/gson"
)

// Rod is a Browser backed by one Chromium process with a persistent
// user-data dir and one stealth tab per slot.
type Rod struct {
	browser *rod.Browser
	pages   []*rod.Page
	routers []*rod.HijackRouter
}

var _ Browser = (*Rod)(nil)

// Launch starts Chromium and opens cfg.Tabs tabs.
func Launch(cfg config.BrowserConfig) (*Rod, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.ProfileDir != "" {
		l = l.UserDataDir(cfg.ProfileDir)
	}
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("window-size"), "1366,768")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "profile", cfg.ProfileDir)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	tabs := cfg.Tabs
	if tabs < 1 {
		tabs = 1
	}
	r := &Rod{browser: b}
	for i := 0; i < tabs; i++ {
		page, err := b.Page(proto.TargetCreateTarget{})
		if err != nil {
			_ = r.Close()
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash,
				fmt.Sprintf("failed to open tab %d", i), err)
		}
		// Stealth and hijack must be installed before the first navigation.
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "slot", i, "error", err)
		}
		r.pages = append(r.pages, page)
		r.routers = append(r.routers, setupHijack(page, cfg.BlockedResourceTypes, cfg.BlockAds))
	}
	slog.Info("browser tabs ready", "tabs", tabs)
	return r, nil
}

// Slots returns the number of tabs.
func (r *Rod) Slots() int { return len(r.pages) }

func (r *Rod) page(slot int) (*rod.Page, error) {
	if slot < 0 || slot >= len(r.pages) {
		return nil, models.NewScrapeError(models.ErrCodeInternal, fmt.Sprintf("no tab for slot %d", slot), nil)
	}
	return r.pages[slot], nil
}

// Navigate loads url and waits for the DOM to settle, all within timeout.
func (r *Rod) Navigate(ctx context.Context, slot int, url string, timeout time.Duration) error {
	page, err := r.page(slot)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return CategorizeError(err, "navigation failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "url", url, "error", err)
	}
	return nil
}

// WaitForSelectorAny races the selectors and reports the first to match.
func (r *Rod) WaitForSelectorAny(ctx context.Context, slot int, selectors []string, timeout time.Duration) (string, error) {
	page, err := r.page(slot)
	if err != nil {
		return "", err
	}
	if len(selectors) == 0 {
		return "", ErrNoMatch
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var matched string
	race := page.Context(ctx).Race()
	for _, sel := range selectors {
		race = race.Element(sel).Handle(func(*rod.Element) error {
			matched = sel
			return nil
		})
	}
	if _, err := race.Do(); err != nil {
		if ctx.Err() != nil {
			return "", ErrNoMatch
		}
		return "", CategorizeError(err, "waiting for selectors failed")
	}
	return matched, nil
}

// Evaluate runs js in the slot's page.
func (r *Rod) Evaluate(ctx context.Context, slot int, js string) (gson.JSON, error) {
	page, err := r.page(slot)
	if err != nil {
		return gson.New(nil), err
	}
	res, err := page.Context(ctx).Eval(js)
	if err != nil {
		return gson.New(nil), CategorizeError(err, "script evaluation failed")
	}
	return res.Value, nil
}

// Content returns the page's serialized DOM.
func (r *Rod) Content(ctx context.Context, slot int) (string, error) {
	page, err := r.page(slot)
	if err != nil {
		return "", err
	}
	html, err := page.Context(ctx).HTML()
	if err != nil {
		return "", CategorizeError(err, "failed to extract page HTML")
	}
	return html, nil
}

// Close stops the hijack routers, closes every tab and kills the browser.
// The profile directory is left in place for the next run.
func (r *Rod) Close() error {
	slog.Info("browser shutting down: closing tabs")
	for _, router := range r.routers {
		if router != nil {
			_ = router.Stop()
		}
	}
	for _, p := range r.pages {
		_ = p.Close()
	}
	if err := r.browser.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	slog.Info("browser shutdown complete")
	return nil
}
