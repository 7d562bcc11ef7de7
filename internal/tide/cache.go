package tide

import (
	"context"
	"sync"
	"time"
)

// CachedSource memoizes tide tables per (port, day). The cache is bounded by
// entry count and clears itself entirely once the bound is exceeded: tide
// data turns over daily, so memory pressure matters more than hit-rate
// optimality and full eviction keeps the bookkeeping trivial.
type CachedSource struct {
	inner      Source
	maxEntries int

	mu      sync.Mutex
	entries map[string][]Event
}

// NewCachedSource wraps a Source with the bounded cache.
func NewCachedSource(inner Source, maxEntries int) *CachedSource {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &CachedSource{
		inner:      inner,
		maxEntries: maxEntries,
		entries:    make(map[string][]Event),
	}
}

// Events returns cached events when present, fetching otherwise. Only
// non-empty days are cached so transient failures can be retried.
func (c *CachedSource) Events(ctx context.Context, port string, day time.Time) ([]Event, error) {
	key := port + "|" + day.Format("2006-01-02")

	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	events, err := c.inner.Events(ctx, port, day)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}

	c.mu.Lock()
	if len(c.entries) >= c.maxEntries {
		c.entries = make(map[string][]Event)
	}
	c.entries[key] = events
	c.mu.Unlock()

	return events, nil
}

// Len reports the number of cached days.
func (c *CachedSource) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ Source = (*CachedSource)(nil)
