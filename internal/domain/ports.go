package domain

import "context"

// LocationStore is the backing location/review store. It is expected to apply
// the structured filters server-side, but the engine does not rely on it.
type LocationStore interface {
	SearchLocations(ctx context.Context, q StoreQuery) (StorePage, error)
	GetLocation(ctx context.Context, id string) (Location, error)
	GetCities(ctx context.Context) ([]City, error)
	GetLocationCategories(ctx context.Context) ([]Category, error)
}

type PlatformSearchOptions struct {
	Lat, Lon *float64
	RadiusM  int
	Language string
	Category string
}

// PlatformClient wraps one third-party review/place API. Methods return the
// unwrapped payloads; failures come back as errors and are never panics.
type PlatformClient interface {
	Platform() Platform
	SearchLocations(ctx context.Context, query string, opts PlatformSearchOptions) ([]map[string]any, error)
	GetLocationDetails(ctx context.Context, externalID, lang string) (map[string]any, error)
	GetReviews(ctx context.Context, externalID, lang string) ([]map[string]any, error)
	GetPhotos(ctx context.Context, externalID string) ([]map[string]any, error)
	Usage() WindowUsage
}

type SyncRepository interface {
	// Write paths
	SaveSnapshot(ctx context.Context, internalID string, data PlatformData) error
	LogSync(ctx context.Context, e SyncLogEntry) error

	// Read paths
	Snapshot(ctx context.Context, internalID string, p Platform) (PlatformData, error)
	SyncCounters(ctx context.Context) (map[Platform]PlatformCounters, error)
	Ping(ctx context.Context) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
