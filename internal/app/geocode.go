package app

import (
	"context"
	"strings"

	"oryem_comparables/internal/domain"
)

// CachedGeocoder wraps a resolver with a cache keyed by normalized address.
// Only successful resolutions are cached; failures stay retryable.
type CachedGeocoder struct {
	inner  domain.Geocoder
	cache  domain.Cache
	ttlSec int
}

func NewCachedGeocoder(inner domain.Geocoder, cache domain.Cache, ttlSec int) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, cache: cache, ttlSec: ttlSec}
}

func (g *CachedGeocoder) Resolve(ctx context.Context, address string) (domain.Coords, error) {
	key := "geocode:" + strings.ToLower(strings.Join(strings.Fields(address), " "))
	var c domain.Coords
	if ok, _ := g.cache.Get(ctx, key, &c); ok {
		return c, nil
	}
	c, err := g.inner.Resolve(ctx, address)
	if err != nil {
		return domain.Coords{}, err
	}
	_ = g.cache.Set(ctx, key, c, g.ttlSec)
	return c, nil
}
