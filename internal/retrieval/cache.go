package retrieval

import (
	"context"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const defaultCacheCapacity = 100

// Searcher is the retrieval collaborator the cache memoizes.
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Snippet, error)
}

// Cache is a bounded, least-recently-used memoization layer in front of a
// Searcher. Keys are exact query strings: no normalization is applied, so
// queries differing only in whitespace are distinct entries.
//
// Lookups that fail are not cached; a later call with the same key retries
// the collaborator. Concurrent misses for the same key are collapsed into a
// single underlying Retrieve call.
type Cache struct {
	source Searcher
	topK   int
	lru    *lru.Cache[string, []Snippet]
	group  singleflight.Group
	logger *slog.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	failures atomic.Int64
}

// NewCache creates a Cache with the given capacity and retrieval top-K.
// capacity <= 0 selects the default (100).
func NewCache(source Searcher, capacity, topK int) *Cache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	// lru.New only errors on non-positive size, which is ruled out above.
	store, _ := lru.New[string, []Snippet](capacity)
	return &Cache{
		source: source,
		topK:   topK,
		lru:    store,
		logger: slog.Default(),
	}
}

// Get returns the snippets for query, serving from cache when possible.
// A collaborator failure is absorbed: the failure is logged and counted,
// an empty result is returned, and nothing is cached for the key.
func (c *Cache) Get(ctx context.Context, query string) []Snippet {
	if snippets, ok := c.lru.Get(query); ok {
		c.hits.Add(1)
		return snippets
	}

	v, err, _ := c.group.Do(query, func() (any, error) {
		// A concurrent flight may have populated the entry already.
		if snippets, ok := c.lru.Get(query); ok {
			c.hits.Add(1)
			return snippets, nil
		}

		c.misses.Add(1)
		snippets, err := c.source.Retrieve(ctx, query, c.topK)
		if err != nil {
			return nil, err
		}
		c.lru.Add(query, snippets)
		return snippets, nil
	})
	if err != nil {
		c.failures.Add(1)
		c.logger.Warn("retrieval failed, continuing with empty context",
			"query", clip(query, 50), "error", err)
		return nil
	}
	return v.([]Snippet)
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats reports cache counters for observability endpoints.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Failures int64 `json:"failures"`
	Entries  int   `json:"entries"`
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Failures: c.failures.Load(),
		Entries:  c.lru.Len(),
	}
}
