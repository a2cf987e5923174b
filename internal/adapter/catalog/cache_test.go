package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingFetcher struct {
	calls   int
	payload domain.SatellitePayload
	err     error
}

func (m *countingFetcher) Fetch(_ context.Context, _ domain.SeriesQuery) (domain.SatellitePayload, error) {
	m.calls++
	return m.payload, m.err
}

func seriesPayload(values ...float64) domain.SatellitePayload {
	return domain.SatellitePayload{Satellite: "sentinel-2", Series: &domain.VegetationSeries{Values: values}}
}

// --- CachedFetcher tests ---

func TestCachedFetcher_CacheHit(t *testing.T) {
	inner := &countingFetcher{payload: seriesPayload(0.3, 0.6)}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedFetcher(inner, 10, metrics)

	p1, err := cached.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "sentinel-2", p1.Satellite)

	p2, err := cached.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CatalogCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CatalogCache.WithLabelValues("miss")), 0)
}

func TestCachedFetcher_DifferentWindowsMiss(t *testing.T) {
	inner := &countingFetcher{payload: seriesPayload(0.5)}
	cached := NewCachedFetcher(inner, 10, observability.NewMetricsForTesting())

	other := testQuery
	other.Start = other.Start.AddDate(-1, 0, 0)
	other.End = other.End.AddDate(-1, 0, 0)

	_, _ = cached.Fetch(context.Background(), testQuery)
	_, _ = cached.Fetch(context.Background(), other)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedFetcher_ErrorsAndEmptyNotCached(t *testing.T) {
	inner := &countingFetcher{err: domain.ErrNoData}
	cached := NewCachedFetcher(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Fetch(context.Background(), testQuery)
	require.ErrorIs(t, err, domain.ErrNoData)
	_, _ = cached.Fetch(context.Background(), testQuery)
	assert.Equal(t, 2, inner.calls)

	inner.err = nil
	inner.payload = domain.SatellitePayload{}
	_, _ = cached.Fetch(context.Background(), testQuery)
	assert.Zero(t, cached.cache.len())
}

func TestCacheKey(t *testing.T) {
	q := domain.SeriesQuery{
		Location: domain.Location{Lat: 34.72531, Lon: -118.39671},
		Start:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		BufferKm: 2.5,
	}
	assert.Equal(t, "34.7253,-118.3967|2024-03-01|2024-05-31|2.5|", cacheKey(q))
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[string](3)

	c.put("a", "A")
	c.put("b", "B")

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.put("c", "C") // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", result)

	result, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", result)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A")
	c.put("b", "B")

	// Access "a" to promote it
	c.get("a")

	// Insert "c": should evict "b" (LRU), not "a"
	c.put("c", "C")

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A1")
	c.put("a", "A2")

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result)
	assert.Equal(t, 1, c.len())
}
