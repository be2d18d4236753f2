package app

import (
	"context"
	"time"

	"travelhub/internal/domain"
)

const (
	keyCities     = "catalog:cities"
	keyCategories = "catalog:categories"
)

func locationKey(id string) string { return "location:" + id }

// Catalog serves the slow-moving reference data from the store through the cache.
// A nil cache disables caching.
type Catalog struct {
	store    domain.LocationStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewCatalog(s domain.LocationStore, c domain.Cache, ttl time.Duration) *Catalog {
	return &Catalog{store: s, cache: c, cacheTTL: ttl}
}

func (c *Catalog) Cities(ctx context.Context) ([]domain.City, error) {
	var out []domain.City
	if c.cached(ctx, keyCities, &out) {
		return out, nil
	}
	cities, err := c.store.GetCities(ctx)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, keyCities, cities)
	return cities, nil
}

func (c *Catalog) Categories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if c.cached(ctx, keyCategories, &out) {
		return out, nil
	}
	cats, err := c.store.GetLocationCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, keyCategories, cats)
	return cats, nil
}

func (c *Catalog) Location(ctx context.Context, id string) (domain.Location, error) {
	key := locationKey(id)
	var loc domain.Location
	if c.cached(ctx, key, &loc) {
		return loc, nil
	}
	loc, err := c.store.GetLocation(ctx, id)
	if err != nil {
		return domain.Location{}, err
	}
	c.remember(ctx, key, loc)
	return loc, nil
}

// Invalidate drops the cached copy of one location after a sync touched it.
func (c *Catalog) Invalidate(ctx context.Context, id string) {
	if c.cache != nil {
		_ = c.cache.Del(ctx, locationKey(id))
	}
}

func (c *Catalog) cached(ctx context.Context, key string, dst any) bool {
	if c.cache == nil {
		return false
	}
	ok, _ := c.cache.Get(ctx, key, dst)
	return ok
}

func (c *Catalog) remember(ctx context.Context, key string, v any) {
	if c.cache != nil {
		_ = c.cache.Set(ctx, key, v, int(c.cacheTTL.Seconds()))
	}
}
