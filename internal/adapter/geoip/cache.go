package geoip

import (
	"context"
	"net/netip"

	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/observability"
)

// DefaultCacheSize is the number of addresses kept by CachedLocator.
const DefaultCacheSize = 1000

// CachedLocator wraps a Locator with an in-memory LRU cache.
type CachedLocator struct {
	inner   domain.Locator
	cache   *lru[netip.Addr, domain.Location]
	metrics *observability.Metrics
}

// NewCachedLocator creates a cache decorator around a locator.
func NewCachedLocator(inner domain.Locator, maxEntries int, metrics *observability.Metrics) *CachedLocator {
	if maxEntries < 1 {
		maxEntries = DefaultCacheSize
	}
	return &CachedLocator{
		inner:   inner,
		cache:   newLRU[netip.Addr, domain.Location](maxEntries),
		metrics: metrics,
	}
}

// Locate returns the cached location for addr, consulting the inner locator
// on a miss. Only successful lookups are cached.
func (c *CachedLocator) Locate(ctx context.Context, addr netip.Addr) (domain.Location, error) {
	if loc, ok := c.cache.get(addr); ok {
		c.metrics.GeoIPLookups.WithLabelValues("hit").Inc()
		return loc, nil
	}
	loc, err := c.inner.Locate(ctx, addr)
	if err != nil {
		c.metrics.GeoIPLookups.WithLabelValues("error").Inc()
		return loc, err
	}
	c.metrics.GeoIPLookups.WithLabelValues("miss").Inc()
	c.cache.put(addr, loc)
	return loc, nil
}

// Len returns the number of cached addresses.
func (c *CachedLocator) Len() int {
	return c.cache.len()
}
