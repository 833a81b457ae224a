package insight

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/goccy/go-json"
)

// RenderCache memoizes rendered chart HTML so repeated page loads are cheap.
type RenderCache interface {
	GetOrRender(key string, render func() (string, error)) (string, error)
}

// chartCacheBytes bounds the total HTML kept across all workspaces.
const chartCacheBytes = 32 << 20

// ChartCache is a size-bounded TTL cache for rendered map charts. Entries cost
// their HTML length, so a few large maps cannot pin unbounded memory.
type ChartCache struct {
	ttl   time.Duration
	cache *ristretto.Cache[string, string]
}

// NewChartCache builds a cache whose entries live for ttl. A non-positive
// ttl disables caching.
func NewChartCache(ttl time.Duration) *ChartCache {
	c := &ChartCache{ttl: ttl}
	if ttl <= 0 {
		return c
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 10_000,
		MaxCost:     chartCacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		// Only reachable with an invalid config; run uncached.
		return c
	}
	c.cache = cache
	return c
}

// GetOrRender returns the cached HTML for key or renders and stores it.
func (c *ChartCache) GetOrRender(key string, render func() (string, error)) (string, error) {
	if c == nil || c.cache == nil {
		return render()
	}
	if html, ok := c.cache.Get(key); ok {
		return html, nil
	}
	html, err := render()
	if err != nil {
		return "", err
	}
	if c.cache.SetWithTTL(key, html, int64(len(html)), c.ttl) {
		// Sets are buffered; wait so the next page load sees the entry.
		c.cache.Wait()
	}
	return html, nil
}

// Close releases the cache goroutines.
func (c *ChartCache) Close() {
	if c != nil && c.cache != nil {
		c.cache.Close()
	}
}

// markersHash fingerprints a marker set for use in cache keys.
func markersHash(markers []Marker) string {
	if len(markers) == 0 {
		return "empty"
	}
	b, err := json.Marshal(markers)
	if err != nil {
		return fmt.Sprintf("invalid-%d", len(markers))
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}
