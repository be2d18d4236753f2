package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelhub/internal/app"
	"travelhub/internal/domain"
)

type stubSearch struct {
	lastFilters domain.FilterCriteria
	lastPers    *domain.Personalization
	lastAt      time.Time
	lastLimit   int
	err         error
	similar     []domain.Location
}

func (s *stubSearch) AdvancedSearch(_ context.Context, f domain.FilterCriteria, p *domain.Personalization) (*domain.SearchResult, error) {
	s.lastFilters, s.lastPers = f, p
	if s.err != nil {
		return nil, s.err
	}
	return &domain.SearchResult{
		Locations:       []domain.Location{{ID: "1", Name: domain.LocalizedText{"en": "Cafe Uno"}}},
		TotalCount:      1,
		Page:            1,
		Limit:           20,
		Suggestions:     []domain.Suggestion{},
		Recommendations: []domain.Recommendation{},
	}, nil
}

func (s *stubSearch) GetSimilarLocations(_ context.Context, id string, limit int) ([]domain.Location, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.similar, nil
}

func (s *stubSearch) GetSmartRecommendations(_ context.Context, p *domain.Personalization, at time.Time, limit int) ([]domain.Recommendation, error) {
	s.lastPers, s.lastAt, s.lastLimit = p, at, limit
	return []domain.Recommendation{{Location: domain.Location{ID: "7"}, Score: 0.6}}, nil
}

func (s *stubSearch) GetTrendingData() *domain.TrendingSnapshot {
	return &domain.TrendingSnapshot{SearchTerms: []domain.TrendingTerm{{Term: "pizza", Count: 3}}}
}

func (s *stubSearch) GetSearchAnalytics() domain.SearchAnalytics {
	return domain.SearchAnalytics{TotalSearches: 4, UniqueQueries: 2}
}

type stubSync struct {
	calls       []string
	result      domain.PlatformSyncResult
	bulkItems   []domain.BulkSyncItem
	snapshotErr error
	healthy     bool
}

func (s *stubSync) SyncFromTripAdvisor(_ context.Context, internalID, externalID string) domain.PlatformSyncResult {
	s.calls = append(s.calls, "ta:"+internalID+":"+externalID)
	return s.result
}

func (s *stubSync) SyncFromGooglePlaces(_ context.Context, internalID, externalID string) domain.PlatformSyncResult {
	s.calls = append(s.calls, "gp:"+internalID+":"+externalID)
	return s.result
}

func (s *stubSync) BulkSync(_ context.Context, items []domain.BulkSyncItem) domain.BulkSyncReport {
	s.bulkItems = items
	return domain.BulkSyncReport{RunID: "run-1", Succeeded: len(items)}
}

func (s *stubSync) HealthCheck(context.Context) domain.HealthReport {
	return domain.HealthReport{Healthy: s.healthy, Repository: "disabled"}
}

func (s *stubSync) Statistics(context.Context) domain.SyncStatistics {
	return domain.SyncStatistics{Process: map[domain.Platform]domain.PlatformCounters{
		domain.PlatformTripAdvisor: {Attempts: 2, Successes: 1, Failures: 1},
	}}
}

func (s *stubSync) Snapshot(_ context.Context, internalID string, p domain.Platform) (domain.PlatformData, error) {
	if s.snapshotErr != nil {
		return domain.PlatformData{}, s.snapshotErr
	}
	return domain.PlatformData{Location: domain.PlatformLocation{Platform: p, ExternalID: "x-" + internalID}}, nil
}

var fixedNow = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func newTestServer(search *stubSearch, sync *stubSync) *Server {
	srv := New(Options{})
	srv.MountHandlers(&Handlers{Search: search, Sync: sync, Now: func() time.Time { return fixedNow }})
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestServer(&stubSearch{}, &stubSync{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestSearch_QueryStringFilters(t *testing.T) {
	search := &stubSearch{}
	srv := newTestServer(search, &stubSync{})

	rr := do(t, srv, http.MethodGet,
		"/v1/search?q=pizza&lat=41.0&lon=29.0&radius_km=3&category=restaurant,cafe&features=wifi&min_rating=4&max_price=3&verified=true&sort=rating&order=desc&limit=10",
		"", "Accept-Language", "tr-TR,tr;q=0.9")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	f := search.lastFilters
	assert.Equal(t, "pizza", f.Query)
	assert.Equal(t, "tr", f.Language)
	require.NotNil(t, f.Geo)
	require.NotNil(t, f.Geo.Center)
	assert.Equal(t, 41.0, f.Geo.Center.Lat)
	assert.Equal(t, 3.0, f.Geo.RadiusKm)
	assert.Equal(t, []string{"restaurant", "cafe"}, f.CategoryIDs)
	assert.Equal(t, []string{"wifi"}, f.Features)
	require.NotNil(t, f.Rating)
	assert.Equal(t, 4.0, *f.Rating.Min)
	require.NotNil(t, f.Price)
	assert.Nil(t, f.Price.Min)
	assert.Equal(t, 3, *f.Price.Max)
	assert.True(t, f.VerifiedOnly)
	assert.Equal(t, domain.SortRating, f.Sort)
	assert.Equal(t, 10, f.Limit)
	assert.Nil(t, search.lastPers)

	var res domain.SearchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 1, res.TotalCount)
}

func TestSearch_BadQueryParams(t *testing.T) {
	rr := do(t, newTestServer(&stubSearch{}, &stubSync{}), http.MethodGet, "/v1/search?lat=abc&limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "lat must be a number")
	assert.Contains(t, rr.Body.String(), "limit must be an integer")
}

func TestSearch_NonFiniteNumbersRejected(t *testing.T) {
	search := &stubSearch{}
	srv := newTestServer(search, &stubSync{})

	rr := do(t, srv, http.MethodGet, "/v1/search?q=x&lat=NaN&lon=0&radius_km=Inf&min_rating=-Inf", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "lat must be a number")
	assert.Contains(t, body, "radius_km must be a number")
	assert.Contains(t, body, "min_rating must be a number")
	assert.Empty(t, search.lastFilters.Query, "service must not be reached")
}

func TestSearch_PostWithPersonalization(t *testing.T) {
	search := &stubSearch{}
	srv := newTestServer(search, &stubSync{})

	body := `{"filters":{"query":"coffee","language":"en"},"personalization":{"preferred_categories":["cafe"],"price_range":2}}`
	rr := do(t, srv, http.MethodPost, "/v1/search", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, search.lastPers)
	assert.Equal(t, []string{"cafe"}, search.lastPers.PreferredCategories)
	assert.Equal(t, "coffee", search.lastFilters.Query)
}

func TestSearch_UnknownFieldRejected(t *testing.T) {
	rr := do(t, newTestServer(&stubSearch{}, &stubSync{}), http.MethodPost, "/v1/search", `{"filterz":{}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearch_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &domain.ValidationError{Problems: []string{"limit must be between 1 and 100"}}, http.StatusBadRequest},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"upstream", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, newTestServer(&stubSearch{err: tc.err}, &stubSync{}), http.MethodGet, "/v1/search?q=x", "")
			assert.Equal(t, tc.want, rr.Code)
			var p problem
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
			assert.Equal(t, tc.want, p.Status)
		})
	}
}

func TestSimilar_ETagAndLimit(t *testing.T) {
	search := &stubSearch{similar: []domain.Location{{ID: "2"}, {ID: "3"}}}
	srv := newTestServer(search, &stubSync{})

	rr := do(t, srv, http.MethodGet, "/v1/locations/1/similar?limit=4", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 4, search.lastLimit)
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rr = do(t, srv, http.MethodGet, "/v1/locations/1/similar?limit=4", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/v1/locations/1/similar?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecommendations_DefaultsToServerClock(t *testing.T) {
	search := &stubSearch{}
	srv := newTestServer(search, &stubSync{})

	rr := do(t, srv, http.MethodPost, "/v1/recommendations", `{"personalization":{"visit_history":["1"]},"limit":3}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, fixedNow, search.lastAt)
	assert.Equal(t, 3, search.lastLimit)
	assert.Equal(t, []string{"1"}, search.lastPers.VisitHistory)

	rr = do(t, srv, http.MethodPost, "/v1/recommendations", `{"personalization":{},"at":"2024-06-01T19:00:00Z"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 19, search.lastAt.Hour())
}

func TestTrendingAndAnalytics(t *testing.T) {
	srv := newTestServer(&stubSearch{}, &stubSync{})

	rr := do(t, srv, http.MethodGet, "/v1/trending", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("ETag"))
	assert.Contains(t, rr.Body.String(), `"pizza"`)

	rr = do(t, srv, http.MethodGet, "/v1/search/analytics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var a domain.SearchAnalytics
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
	assert.EqualValues(t, 4, a.TotalSearches)
}

func TestSyncOne_RoutesPerPlatform(t *testing.T) {
	sync := &stubSync{result: domain.PlatformSyncResult{Success: true}}
	srv := newTestServer(&stubSearch{}, sync)

	rr := do(t, srv, http.MethodPost, "/v1/sync/tripadvisor/42", `{"external_id":"8123"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, srv, http.MethodPost, "/v1/sync/google/42", `{"external_id":"ChIJ"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"ta:42:8123", "gp:42:ChIJ"}, sync.calls)

	rr = do(t, srv, http.MethodPost, "/v1/sync/google/42", `{"external_id":" "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSyncOne_FailureIsBadGateway(t *testing.T) {
	sync := &stubSync{result: domain.PlatformSyncResult{Platform: domain.PlatformTripAdvisor, Error: "tripadvisor location_details: status 500"}}
	rr := do(t, newTestServer(&stubSearch{}, sync), http.MethodPost, "/v1/sync/tripadvisor/1", `{"external_id":"9"}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	var res domain.PlatformSyncResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "status 500")
}

func TestBulk_BoundsItems(t *testing.T) {
	sync := &stubSync{}
	srv := newTestServer(&stubSearch{}, sync)

	rr := do(t, srv, http.MethodPost, "/v1/sync/bulk", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	body := `{"items":[{"internal_id":"1","platform_ids":{"tripadvisor":"t1"}},{"internal_id":"2","platform_ids":{"google_places":"g2"}}]}`
	rr = do(t, srv, http.MethodPost, "/v1/sync/bulk", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, sync.bulkItems, 2)
	assert.Equal(t, "g2", sync.bulkItems[1].PlatformIDs.GooglePlaces)
}

func TestSnapshot(t *testing.T) {
	srv := newTestServer(&stubSearch{}, &stubSync{})

	rr := do(t, srv, http.MethodGet, "/v1/sync/snapshots/google/5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var d domain.PlatformData
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	assert.Equal(t, domain.PlatformGooglePlaces, d.Location.Platform)
	assert.Equal(t, "x-5", d.Location.ExternalID)

	rr = do(t, srv, http.MethodGet, "/v1/sync/snapshots/yelp/5", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, newTestServer(&stubSearch{}, &stubSync{snapshotErr: app.ErrNoRepository}), http.MethodGet, "/v1/sync/snapshots/tripadvisor/5", "")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)

	rr = do(t, newTestServer(&stubSearch{}, &stubSync{snapshotErr: domain.ErrNotFound}), http.MethodGet, "/v1/sync/snapshots/tripadvisor/5", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSyncHealthAndStats(t *testing.T) {
	rr := do(t, newTestServer(&stubSearch{}, &stubSync{healthy: false}), http.MethodGet, "/v1/sync/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = do(t, newTestServer(&stubSearch{}, &stubSync{healthy: true}), http.MethodGet, "/v1/sync/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, newTestServer(&stubSearch{}, &stubSync{}), http.MethodGet, "/v1/sync/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"tripadvisor"`)
}

func TestRateLimit(t *testing.T) {
	srv := New(Options{RateLimitPerMin: 2})
	srv.MountHandlers(&Handlers{Search: &stubSearch{}, Sync: &stubSync{}})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
	}
	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestSelectLang(t *testing.T) {
	assert.Equal(t, "en", selectLang(""))
	assert.Equal(t, "en", selectLang("*"))
	assert.Equal(t, "de", selectLang("de-CH, de;q=0.9"))
	assert.Equal(t, "fr", selectLang("FR"))
}
