// Package evidencecache keeps fetched link evidence between fetches and
// between runs, so a page fetched once is not fetched again while fresh.
package evidencecache

import (
	"sync"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

// DefaultTTL is how long evidence stays fresh
const DefaultTTL = 6 * time.Hour

// Memory is an in-process evidence cache with TTL. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*event.LinkEvidence
	cachedAt map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory creates a cache. A non-positive ttl selects DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries:  make(map[string]*event.LinkEvidence),
		cachedAt: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the evidence for url if it is cached and not expired.
// Expired entries are removed.
func (c *Memory) Get(url string) (*event.LinkEvidence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if c.now().Sub(c.cachedAt[url]) > c.ttl {
		delete(c.entries, url)
		delete(c.cachedAt, url)
		return nil, false
	}
	return ev, true
}

// Set stores evidence for url
func (c *Memory) Set(url string, ev *event.LinkEvidence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = ev
	c.cachedAt[url] = c.now()
}

// CleanExpired removes expired entries and returns how many were removed.
func (c *Memory) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for url, at := range c.cachedAt {
		if now.Sub(at) > c.ttl {
			delete(c.entries, url)
			delete(c.cachedAt, url)
			removed++
		}
	}
	return removed
}

// Size returns the number of cached entries
func (c *Memory) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
