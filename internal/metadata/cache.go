package metadata

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	page    Page
	expires time.Time
}

// CachingFetcher wraps another Fetcher with a TTL-based in-memory cache. Failed
// fetches are not cached.
type CachingFetcher struct {
	base Fetcher
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingFetcher returns a Fetcher that caches pages for the provided TTL.
func NewCachingFetcher(base Fetcher, ttl time.Duration) *CachingFetcher {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingFetcher{
		base:  base,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheEntry),
	}
}

// Fetch returns a cached page when fresh, otherwise delegates and stores the result.
func (c *CachingFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	if c == nil || c.base == nil {
		return Page{}, ErrNoMarkup
	}

	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[url]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.page, nil
	}

	page, err := c.base.Fetch(ctx, url)
	if err != nil {
		return Page{}, err
	}

	c.mu.Lock()
	c.items[url] = cacheEntry{page: page, expires: now.Add(c.ttl)}
	c.evictLocked(now)
	c.mu.Unlock()

	return page, nil
}

func (c *CachingFetcher) evictLocked(now time.Time) {
	for key, entry := range c.items {
		if !now.Before(entry.expires) {
			delete(c.items, key)
		}
	}
}
