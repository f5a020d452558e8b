// Package cache keeps recently scraped PageRecords so repeated campaigns do
// not revisit the same pages.
package cache

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/leadscout/models"
)

type entry struct {
	record    *models.PageRecord
	createdAt time.Time
}

// Cache is an in-memory TTL cache of PageRecords keyed by normalized URL.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
	done       chan struct{}
}

// New creates a Cache and starts a cleanup goroutine that evicts expired
// entries every 5 minutes. It returns nil when maxEntries <= 0.
func New(maxEntries int, maxAge time.Duration) *Cache {
	if maxEntries <= 0 || maxAge <= 0 {
		return nil
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Key normalizes rawURL: lowercase scheme and host, no fragment, no
// trailing slash.
func Key(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// Get returns a deep copy of the fresh record for rawURL.
func (c *Cache) Get(rawURL string) (*models.PageRecord, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.store[Key(rawURL)]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.createdAt) > c.maxAge {
		return nil, false
	}
	return e.record.Clone(), true
}

// Set stores rec. At capacity one arbitrary entry is evicted first.
func (c *Cache) Set(rawURL string, rec *models.PageRecord) {
	if c == nil || rec == nil {
		return
	}
	key := Key(rawURL)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{record: rec.Clone(), createdAt: c.now()}
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop ends the cleanup goroutine.
func (c *Cache) Stop() {
	if c != nil {
		close(c.done)
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
