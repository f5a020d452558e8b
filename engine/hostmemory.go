package engine

import (
	"sync"
	"time"
)

type hostEntry struct {
	failures  int
	expiresAt time.Time
}

// HostMemory remembers hosts whose pages keep failing to load so later
// tasks in the same or a following campaign can skip them instead of
// burning a slot on another navigation timeout. Entries expire after ttl.
type HostMemory struct {
	mu    sync.Mutex
	hosts map[string]*hostEntry
	ttl   time.Duration
	limit int
	now   func() time.Time
}

// NewHostMemory creates a HostMemory that reports a host as unreachable
// once it has failed limit times within ttl.
func NewHostMemory(ttl time.Duration, limit int) *HostMemory {
	if limit < 1 {
		limit = 1
	}
	return &HostMemory{hosts: make(map[string]*hostEntry), ttl: ttl, limit: limit, now: time.Now}
}

// Unreachable reports whether host has hit the failure limit and the
// entry has not expired yet. A nil HostMemory knows no hosts.
func (m *HostMemory) Unreachable(host string) bool {
	if m == nil || host == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.hosts[host]
	if !ok {
		return false
	}
	if m.now().After(e.expiresAt) {
		delete(m.hosts, host)
		return false
	}
	return e.failures >= m.limit
}

// Failed records one failed visit to host and extends its expiry.
func (m *HostMemory) Failed(host string) {
	if m == nil || host == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.hosts[host]
	if !ok || m.now().After(e.expiresAt) {
		e = &hostEntry{}
		m.hosts[host] = e
	}
	e.failures++
	e.expiresAt = m.now().Add(m.ttl)
}

// Succeeded forgets host.
func (m *HostMemory) Succeeded(host string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.hosts, host)
	m.mu.Unlock()
}

// Prune drops expired entries and returns how many remain.
func (m *HostMemory) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for host, e := range m.hosts {
		if now.After(e.expiresAt) {
			delete(m.hosts, host)
		}
	}
	return len(m.hosts)
}
