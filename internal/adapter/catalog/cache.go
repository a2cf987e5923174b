package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/observability"
)

// CachedFetcher wraps a SeriesFetcher with an in-memory LRU cache.
type CachedFetcher struct {
	inner   domain.SeriesFetcher
	cache   *lruCache[domain.SatellitePayload]
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a fetcher.
func NewCachedFetcher(inner domain.SeriesFetcher, maxEntries int, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   newLRUCache[domain.SatellitePayload](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, q domain.SeriesQuery) (domain.SatellitePayload, error) {
	key := cacheKey(q)
	if payload, ok := c.cache.get(key); ok {
		c.metrics.CatalogCache.WithLabelValues("hit").Inc()
		return payload, nil
	}
	c.metrics.CatalogCache.WithLabelValues("miss").Inc()

	payload, err := c.inner.Fetch(ctx, q)
	if err != nil {
		return payload, err
	}
	// Only cache non-empty results so a window that is still being ingested can be retried.
	if !payload.Empty() {
		c.cache.put(key, payload)
	}
	return payload, nil
}

func cacheKey(q domain.SeriesQuery) string {
	return fmt.Sprintf("%.4f,%.4f|%s|%s|%g|%s",
		q.Location.Lat, q.Location.Lon,
		q.Start.Format(time.DateOnly), q.End.Format(time.DateOnly),
		q.BufferKm, q.Satellite)
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	tail := c.tail
	delete(c.entries, tail.key)
	c.remove(tail)
}
