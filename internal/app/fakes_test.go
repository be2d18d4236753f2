package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"travelhub/internal/domain"
)

// ---- location store ----

type fakeStore struct {
	mu         sync.Mutex
	page       domain.StorePage
	byID       map[string]domain.Location
	cities     []domain.City
	categories []domain.Category
	err        error
	queries    []domain.StoreQuery
	cityCalls  int
}

func (f *fakeStore) SearchLocations(_ context.Context, q domain.StoreQuery) (domain.StorePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return domain.StorePage{}, f.err
	}
	p := f.page
	p.Locations = append([]domain.Location(nil), f.page.Locations...)
	if p.TotalCount == 0 {
		p.TotalCount = len(p.Locations)
	}
	return p, nil
}

func (f *fakeStore) GetLocation(_ context.Context, id string) (domain.Location, error) {
	if l, ok := f.byID[id]; ok {
		return l, nil
	}
	return domain.Location{}, domain.ErrNotFound
}

func (f *fakeStore) GetCities(context.Context) ([]domain.City, error) {
	f.mu.Lock()
	f.cityCalls++
	f.mu.Unlock()
	return f.cities, nil
}

func (f *fakeStore) GetLocationCategories(context.Context) ([]domain.Category, error) {
	return f.categories, nil
}

func (f *fakeStore) lastQuery() domain.StoreQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

// ---- cache (JSON round trip like the real adapters) ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

// ---- platform client ----

// callLog is shared between clients so tests can assert cross-platform order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakePlatform struct {
	platform   domain.Platform
	log        *callLog
	details    map[string]map[string]any
	reviews    []map[string]any
	photos     []map[string]any
	detailsErr error
	reviewsErr error
	photosErr  error
	searchErr  error
	usage      domain.WindowUsage
}

func (f *fakePlatform) Platform() domain.Platform { return f.platform }
func (f *fakePlatform) Usage() domain.WindowUsage { return f.usage }

func (f *fakePlatform) SearchLocations(_ context.Context, q string, _ domain.PlatformSearchOptions) ([]map[string]any, error) {
	f.log.add(string(f.platform) + ":search:" + q)
	return nil, f.searchErr
}

func (f *fakePlatform) GetLocationDetails(_ context.Context, id, _ string) (map[string]any, error) {
	f.log.add(string(f.platform) + ":details:" + id)
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	return f.details[id], nil
}

func (f *fakePlatform) GetReviews(_ context.Context, id, _ string) ([]map[string]any, error) {
	f.log.add(string(f.platform) + ":reviews:" + id)
	return f.reviews, f.reviewsErr
}

func (f *fakePlatform) GetPhotos(_ context.Context, id string) ([]map[string]any, error) {
	f.log.add(string(f.platform) + ":photos:" + id)
	return f.photos, f.photosErr
}

// ---- sync repository ----

type fakeSyncRepo struct {
	mu        sync.Mutex
	snapshots map[string]domain.PlatformData
	entries   []domain.SyncLogEntry
	saveErr   error
	pingErr   error
	counters  map[domain.Platform]domain.PlatformCounters
}

func (r *fakeSyncRepo) SaveSnapshot(_ context.Context, internalID string, d domain.PlatformData) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshots == nil {
		r.snapshots = map[string]domain.PlatformData{}
	}
	r.snapshots[internalID+"/"+string(d.Location.Platform)] = d
	return nil
}

func (r *fakeSyncRepo) LogSync(_ context.Context, e domain.SyncLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeSyncRepo) Snapshot(_ context.Context, internalID string, p domain.Platform) (domain.PlatformData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.snapshots[internalID+"/"+string(p)]
	if !ok {
		return domain.PlatformData{}, domain.ErrNotFound
	}
	return d, nil
}

func (r *fakeSyncRepo) SyncCounters(context.Context) (map[domain.Platform]domain.PlatformCounters, error) {
	return r.counters, nil
}

func (r *fakeSyncRepo) Ping(context.Context) error { return r.pingErr }

// ---- helpers ----

var errNetwork = errors.New("dial tcp: connection refused")

func loc(id string, rating float64) domain.Location {
	return domain.Location{
		ID:            id,
		Name:          domain.LocalizedText{"en": "Place " + id},
		AverageRating: rating,
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ids(locs []domain.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.ID
	}
	return out
}

func ptr[T any](v T) *T { return &v }
