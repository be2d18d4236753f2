package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelhub/internal/app"
	"travelhub/internal/domain"
)

func taDetails(id string) map[string]any {
	return map[string]any{
		"location_id": id,
		"name":        "Pera Palace",
		"latitude":    "41.0319",
		"longitude":   "28.9744",
		"rating":      "4.5",
		"num_reviews": "1520",
		"price_level": "$$$",
		"address_obj": map[string]any{"address_string": "Mesrutiyet Cd. No:52, Istanbul"},
	}
}

func noSleep(context.Context, time.Duration) bool { return true }

func TestBulkSync_OnePlatformDownStillSucceeds(t *testing.T) {
	ta := &fakePlatform{platform: domain.PlatformTripAdvisor, details: map[string]map[string]any{"ta-1": taDetails("ta-1")}}
	gp := &fakePlatform{platform: domain.PlatformGooglePlaces, detailsErr: errNetwork}
	svc := app.NewSyncService(ta, gp, app.WithSleeper(noSleep))

	rep := svc.BulkSync(context.Background(), []domain.BulkSyncItem{{
		InternalID:  "loc-1",
		PlatformIDs: domain.PlatformIDs{TripAdvisor: "ta-1", GooglePlaces: "gp-1"},
	}})

	require.Len(t, rep.Results, 1)
	r := rep.Results[0]
	assert.True(t, r.Success)
	require.Len(t, r.Platforms, 2)

	assert.Equal(t, domain.PlatformTripAdvisor, r.Platforms[0].Platform)
	assert.True(t, r.Platforms[0].Success)
	require.NotNil(t, r.Platforms[0].Data)
	assert.Equal(t, "Pera Palace", r.Platforms[0].Data.Location.Name)

	assert.Equal(t, domain.PlatformGooglePlaces, r.Platforms[1].Platform)
	assert.False(t, r.Platforms[1].Success)
	assert.Contains(t, r.Platforms[1].Error, "connection refused")
	assert.Nil(t, r.Platforms[1].Data)

	assert.Equal(t, 1, rep.Succeeded)
	assert.Zero(t, rep.Failed)
	assert.NotEmpty(t, rep.RunID)
}

func TestBulkSync_StrictInputOrder(t *testing.T) {
	calls := &callLog{}
	ta := &fakePlatform{platform: domain.PlatformTripAdvisor, log: calls, details: map[string]map[string]any{
		"t1": taDetails("t1"), "t2": taDetails("t2"), "t3": taDetails("t3"),
	}}
	gp := &fakePlatform{platform: domain.PlatformGooglePlaces, log: calls, details: map[string]map[string]any{
		"g1": {"place_id": "g1", "name": "x"}, "g3": {"place_id": "g3", "name": "z"},
	}}
	var pauses []time.Duration
	svc := app.NewSyncService(ta, gp, app.WithSleeper(func(_ context.Context, d time.Duration) bool {
		pauses = append(pauses, d)
		calls.add("pause")
		return true
	}))

	rep := svc.BulkSync(context.Background(), []domain.BulkSyncItem{
		{InternalID: "1", PlatformIDs: domain.PlatformIDs{TripAdvisor: "t1", GooglePlaces: "g1"}},
		{InternalID: "2", PlatformIDs: domain.PlatformIDs{TripAdvisor: "t2"}},
		{InternalID: "3", PlatformIDs: domain.PlatformIDs{TripAdvisor: "t3", GooglePlaces: "g3"}},
	})

	assert.Equal(t, []string{
		"tripadvisor:details:t1", "tripadvisor:reviews:t1", "tripadvisor:photos:t1",
		"google_places:details:g1", "google_places:reviews:g1", "google_places:photos:g1",
		"pause",
		"tripadvisor:details:t2", "tripadvisor:reviews:t2", "tripadvisor:photos:t2",
		"pause",
		"tripadvisor:details:t3", "tripadvisor:reviews:t3", "tripadvisor:photos:t3",
		"google_places:details:g3", "google_places:reviews:g3", "google_places:photos:g3",
	}, calls.all())
	assert.Equal(t, []time.Duration{app.DefaultBulkDelay, app.DefaultBulkDelay}, pauses)

	require.Len(t, rep.Results, 3)
	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, rep.Results[i].InternalID)
		assert.True(t, rep.Results[i].Success)
	}
}

func TestBulkSync_CancelledContextFailsRemaining(t *testing.T) {
	ta := &fakePlatform{platform: domain.PlatformTripAdvisor, details: map[string]map[string]any{"t1": taDetails("t1"), "t2": taDetails("t2")}}
	ctx, cancel := context.WithCancel(context.Background())
	svc := app.NewSyncService(ta, nil, app.WithSleeper(func(context.Context, time.Duration) bool {
		cancel()
		return false
	}))

	rep := svc.BulkSync(ctx, []domain.BulkSyncItem{
		{InternalID: "1", PlatformIDs: domain.PlatformIDs{TripAdvisor: "t1"}},
		{InternalID: "2", PlatformIDs: domain.PlatformIDs{TripAdvisor: "t2"}},
	})
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Results[1].Platforms, 1)
	assert.Equal(t, context.Canceled.Error(), rep.Results[1].Platforms[0].Error)
}

func TestSyncFromTripAdvisor_DegradesReviewsAndPhotos(t *testing.T) {
	ta := &fakePlatform{
		platform:   domain.PlatformTripAdvisor,
		details:    map[string]map[string]any{"t1": taDetails("t1")},
		reviewsErr: errors.New("503"),
		photosErr:  errors.New("timeout"),
	}
	res := app.NewSyncService(ta, nil).SyncFromTripAdvisor(context.Background(), "loc-1", "t1")

	require.True(t, res.Success)
	assert.Empty(t, res.Data.Reviews)
	assert.Empty(t, res.Data.Photos)
	l := res.Data.Location
	assert.Equal(t, 3, l.PriceLevel)
	assert.Equal(t, 1520, l.ReviewCount)
	require.NotNil(t, l.Coords)
	assert.InDelta(t, 41.0319, l.Coords.Lat, 1e-9)
}

func TestSyncFromGooglePlaces_MissingDetails(t *testing.T) {
	gp := &fakePlatform{platform: domain.PlatformGooglePlaces, details: map[string]map[string]any{}}
	svc := app.NewSyncService(nil, gp)

	res := svc.SyncFromGooglePlaces(context.Background(), "loc-1", "unknown")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	res = svc.SyncFromTripAdvisor(context.Background(), "loc-1", "t1")
	assert.False(t, res.Success, "unconfigured platform")

	res = svc.SyncFromGooglePlaces(context.Background(), "loc-1", "")
	assert.False(t, res.Success)
}

func TestSync_PersistsLogsAndInvalidates(t *testing.T) {
	ta := &fakePlatform{
		platform: domain.PlatformTripAdvisor,
		details:  map[string]map[string]any{"t1": taDetails("t1")},
		reviews:  []map[string]any{{"id": float64(991), "rating": float64(5), "text": "great"}},
	}
	repo := &fakeSyncRepo{}
	cache := &fakeCache{}
	var observed []bool
	svc := app.NewSyncService(ta, nil,
		app.WithRepository(repo),
		app.WithCatalog(app.NewCatalog(&fakeStore{}, cache, time.Minute)),
		app.WithObserver(func(_ domain.Platform, ok bool) { observed = append(observed, ok) }),
	)

	res := svc.SyncFromTripAdvisor(context.Background(), "loc-1", "t1")
	require.True(t, res.Success)

	snap, ok := repo.snapshots["loc-1/tripadvisor"]
	require.True(t, ok)
	require.Len(t, snap.Reviews, 1)
	assert.Equal(t, "991", snap.Reviews[0].SourceID)
	assert.Equal(t, "loc-1", snap.Reviews[0].LocationID)

	require.Len(t, repo.entries, 1)
	assert.True(t, repo.entries[0].Success)
	assert.Equal(t, 1, repo.entries[0].Reviews)
	assert.NotEmpty(t, repo.entries[0].RunID)
	assert.Equal(t, []string{"location:loc-1"}, cache.dels)
	assert.Equal(t, []bool{true}, observed)

	stored, err := svc.Snapshot(context.Background(), "loc-1", domain.PlatformTripAdvisor)
	require.NoError(t, err)
	assert.Equal(t, "Pera Palace", stored.Location.Name)
	_, err = app.NewSyncService(ta, nil).Snapshot(context.Background(), "loc-1", domain.PlatformTripAdvisor)
	assert.ErrorIs(t, err, app.ErrNoRepository)

	repo.saveErr = errors.New("deadlock")
	res = svc.SyncFromTripAdvisor(context.Background(), "loc-1", "t1")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "persist snapshot")
}

func TestSync_StatisticsAndHealth(t *testing.T) {
	ta := &fakePlatform{platform: domain.PlatformTripAdvisor, details: map[string]map[string]any{"t1": taDetails("t1")}, usage: domain.WindowUsage{Used: 3, Quota: 50}}
	gp := &fakePlatform{platform: domain.PlatformGooglePlaces, detailsErr: errNetwork, searchErr: errNetwork, usage: domain.WindowUsage{Used: 1, Quota: 100}}
	repo := &fakeSyncRepo{counters: map[domain.Platform]domain.PlatformCounters{domain.PlatformTripAdvisor: {Attempts: 40, Successes: 38, Failures: 2}}}
	svc := app.NewSyncService(ta, gp, app.WithRepository(repo), app.WithSleeper(noSleep))

	svc.BulkSync(context.Background(), []domain.BulkSyncItem{
		{InternalID: "1", PlatformIDs: domain.PlatformIDs{TripAdvisor: "t1", GooglePlaces: "g1"}},
	})

	st := svc.Statistics(context.Background())
	assert.EqualValues(t, 1, st.Process[domain.PlatformTripAdvisor].Successes)
	assert.NotNil(t, st.Process[domain.PlatformTripAdvisor].LastSync)
	assert.EqualValues(t, 1, st.Process[domain.PlatformGooglePlaces].Failures)
	assert.Equal(t, 50, st.RateLimit[domain.PlatformTripAdvisor].Quota)
	assert.EqualValues(t, 40, st.Persisted[domain.PlatformTripAdvisor].Attempts)

	h := svc.HealthCheck(context.Background())
	assert.False(t, h.Healthy)
	require.Len(t, h.Platforms, 2)
	assert.True(t, h.Platforms[0].Healthy)
	assert.False(t, h.Platforms[1].Healthy)
	assert.Equal(t, "ok", h.Repository)

	repo.pingErr = errors.New("gone")
	assert.Equal(t, "down", svc.HealthCheck(context.Background()).Repository)
}
