package locationstore_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelhub/internal/adapters/locationstore"
	"travelhub/internal/domain"
)

func TestSearchLocations_PassesCriteriaThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/locations/search", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "sea view", q.Get("q"))
		assert.Equal(t, "4.5", q.Get("min_rating"))
		assert.Equal(t, "3", q.Get("max_price"))
		assert.Equal(t, "wifi,pool", q.Get("features"))
		assert.Equal(t, "c1,c2", q.Get("category"))
		assert.Equal(t, "41.000000", q.Get("lat"))
		assert.Equal(t, "2", q.Get("page"))
		_, _ = w.Write([]byte(`{"locations":[{"id":"l1","average_rating":4.7}],"total_count":31}`))
	}))
	defer ts.Close()

	cl, err := locationstore.New(ts.URL, "secret", 50, time.Second)
	require.NoError(t, err)

	minRating, maxPrice, lat, lon := 4.5, 3, 41.0, 29.0
	page, err := cl.SearchLocations(context.Background(), domain.StoreQuery{
		Query: "sea view", MinRating: &minRating, MaxPrice: &maxPrice,
		Features: []string{"wifi", "pool"}, CategoryIDs: []string{"c1", "c2"},
		Lat: &lat, Lon: &lon, RadiusKm: 5, Page: 2, Limit: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 31, page.TotalCount)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 20, page.Limit)
	require.Len(t, page.Locations, 1)
	assert.Equal(t, 4.7, page.Locations[0].AverageRating)
}

func TestGetLocation_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl, err := locationstore.New(ts.URL, "", 50, time.Second)
	require.NoError(t, err)
	_, err = cl.GetLocation(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetCitiesAndCategories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cities", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"ist","slug":"istanbul","name":{"en":"Istanbul","tr":"İstanbul"}}]`))
	})
	mux.HandleFunc("/location-categories", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"rest","slug":"restaurants","name":{"en":"Restaurants"},"icon":"utensils"}]`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	cl, err := locationstore.New(ts.URL, "", 50, time.Second)
	require.NoError(t, err)

	cities, err := cl.GetCities(context.Background())
	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, "İstanbul", cities[0].Name.In("tr"))

	cats, err := cl.GetLocationCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "utensils", cats[0].Icon)
}
