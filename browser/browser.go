// Package browser is the page-automation collaborator. Every execution slot
// owns one tab of a single shared browser profile.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/use-agent/leadscout/models"
	"github.com/ysmood/gson"
)

// Browser drives the tab bound to an execution slot. A slot is used by at
// most one task at a time, so implementations need no per-slot locking.
type Browser interface {
	// Navigate loads url in the slot's tab, bounded by timeout.
	Navigate(ctx context.Context, slot int, url string, timeout time.Duration) error

	// WaitForSelectorAny waits until any of selectors matches and returns
	// the one that did.
	WaitForSelectorAny(ctx context.Context, slot int, selectors []string, timeout time.Duration) (string, error)

	// Evaluate runs a JS function in the page and returns its value.
	Evaluate(ctx context.Context, slot int, js string) (gson.JSON, error)

	// Content returns the current serialized DOM.
	Content(ctx context.Context, slot int) (string, error)

	// Slots is the number of tabs, which equals the slot pool capacity.
	Slots() int

	Close() error
}

// ErrNoMatch is returned by WaitForSelectorAny when none of the selectors
// appeared before the timeout.
var ErrNoMatch = errors.New("browser: no selector matched")

// CategorizeError maps a browser error to a ScrapeError code.
func CategorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
