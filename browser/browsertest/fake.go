// Package browsertest provides an in-memory Browser for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/leadscout/browser"
	"github.com/ysmood/gson"
)

// Page is a canned response for one URL.
type Page struct {
	HTML  string
	Delay time.Duration
	Err   error
}

// Visit records one navigation.
type Visit struct {
	Slot int
	URL  string
}

// Fake serves canned pages. Pages is consulted first, then Route.
type Fake struct {
	Pages map[string]Page
	Route func(url string) (Page, bool)

	mu      sync.Mutex
	slots   int
	current map[int]string
	busy    map[int]bool
	visits  []Visit
	overlap []int
}

var _ browser.Browser = (*Fake)(nil)

// New returns a Fake with n slots.
func New(n int) *Fake {
	return &Fake{
		Pages:   make(map[string]Page),
		slots:   n,
		current: make(map[int]string),
		busy:    make(map[int]bool),
	}
}

// Navigate looks the URL up and sleeps for the page's Delay.
func (f *Fake) Navigate(ctx context.Context, slot int, url string, timeout time.Duration) error {
	f.mu.Lock()
	if f.busy[slot] {
		f.overlap = append(f.overlap, slot)
	}
	f.busy[slot] = true
	f.visits = append(f.visits, Visit{Slot: slot, URL: url})
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.busy[slot] = false
		f.mu.Unlock()
	}()

	page, ok := f.lookup(url)
	if !ok {
		return browser.CategorizeError(fmt.Errorf("no page for %s", url), "navigation failed")
	}
	if page.Delay > 0 {
		if page.Delay > timeout && timeout > 0 {
			return browser.CategorizeError(context.DeadlineExceeded, "navigation failed")
		}
		select {
		case <-ctx.Done():
			return browser.CategorizeError(ctx.Err(), "navigation failed")
		case <-time.After(page.Delay):
		}
	}
	if page.Err != nil {
		return browser.CategorizeError(page.Err, "navigation failed")
	}

	f.mu.Lock()
	f.current[slot] = url
	f.mu.Unlock()
	return nil
}

// WaitForSelectorAny returns the first selector present in the current page.
func (f *Fake) WaitForSelectorAny(ctx context.Context, slot int, selectors []string, timeout time.Duration) (string, error) {
	doc, err := f.doc(slot)
	if err != nil {
		return "", err
	}
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return sel, nil
		}
	}
	return "", browser.ErrNoMatch
}

// Evaluate ignores js and returns {url, title} of the current page.
func (f *Fake) Evaluate(ctx context.Context, slot int, js string) (gson.JSON, error) {
	doc, err := f.doc(slot)
	if err != nil {
		return gson.New(nil), err
	}
	f.mu.Lock()
	url := f.current[slot]
	f.mu.Unlock()
	return gson.New(map[string]any{
		"url":   url,
		"title": strings.TrimSpace(doc.Find("title").First().Text()),
	}), nil
}

// Content returns the current page's HTML.
func (f *Fake) Content(ctx context.Context, slot int) (string, error) {
	f.mu.Lock()
	url, ok := f.current[slot]
	f.mu.Unlock()
	if !ok {
		return "", errors.New("browsertest: nothing loaded")
	}
	page, _ := f.lookup(url)
	return page.HTML, nil
}

// Slots returns the slot count.
func (f *Fake) Slots() int { return f.slots }

// Close is a no-op.
func (f *Fake) Close() error { return nil }

// Visits returns the navigations in call order.
func (f *Fake) Visits() []Visit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Visit(nil), f.visits...)
}

// Overlaps returns slots that saw two concurrent navigations.
func (f *Fake) Overlaps() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.overlap...)
}

func (f *Fake) lookup(url string) (Page, bool) {
	f.mu.Lock()
	page, ok := f.Pages[url]
	route := f.Route
	f.mu.Unlock()
	if ok {
		return page, true
	}
	if route != nil {
		return route(url)
	}
	return Page{}, false
}

func (f *Fake) doc(slot int) (*goquery.Document, error) {
	html, err := f.Content(context.Background(), slot)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
