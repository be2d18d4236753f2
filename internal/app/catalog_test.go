package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelhub/internal/app"
	"travelhub/internal/domain"
)

func TestCatalog_CitiesCacheMissThenHit(t *testing.T) {
	store := &fakeStore{cities: []domain.City{{ID: "1", Slug: "istanbul", Name: domain.LocalizedText{"en": "Istanbul"}}}}
	c := app.NewCatalog(store, &fakeCache{}, 10*time.Minute)

	got, err := c.Cities(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	// a changed store must not be seen while the cache holds the list
	store.cities = []domain.City{{ID: "2", Slug: "ankara"}}
	got, err = c.Cities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "istanbul", got[0].Slug)
	assert.Equal(t, 1, store.cityCalls)
}

func TestCatalog_LocationInvalidate(t *testing.T) {
	store := &fakeStore{byID: map[string]domain.Location{"42": loc("42", 4.1)}}
	cache := &fakeCache{}
	c := app.NewCatalog(store, cache, time.Minute)

	l, err := c.Location(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 4.1, l.AverageRating)

	store.byID["42"] = loc("42", 4.9)
	l, _ = c.Location(context.Background(), "42")
	assert.Equal(t, 4.1, l.AverageRating)

	c.Invalidate(context.Background(), "42")
	l, _ = c.Location(context.Background(), "42")
	assert.Equal(t, 4.9, l.AverageRating)
	assert.Contains(t, cache.dels, "location:42")
}

func TestCatalog_NilCacheAndNotFound(t *testing.T) {
	c := app.NewCatalog(&fakeStore{}, nil, time.Minute)
	_, err := c.Location(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	c.Invalidate(context.Background(), "missing")
}
