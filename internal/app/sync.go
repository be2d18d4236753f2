package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"travelhub/internal/domain"
)

const DefaultBulkDelay = 100 * time.Millisecond

var (
	errNoClient   = errors.New("platform not configured")
	errNoID       = errors.New("missing external id")
	errNoDetails  = errors.New("no details returned")
	errNoPlatform = errors.New("no platform ids")
)

// SyncService pulls a location's details, reviews and photos from the review
// platforms. Client failures are reported per platform, never returned.
type SyncService struct {
	tripAdvisor  domain.PlatformClient
	googlePlaces domain.PlatformClient

	repo      domain.SyncRepository
	catalog   *Catalog
	lang      string
	bulkDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) bool
	observe   func(p domain.Platform, ok bool)
	now       func() time.Time

	mu       sync.Mutex
	counters map[domain.Platform]*domain.PlatformCounters
}

type SyncOption func(*SyncService)

func WithRepository(r domain.SyncRepository) SyncOption {
	return func(s *SyncService) { s.repo = r }
}

// WithCatalog lets a successful sync evict the location's cached copy.
func WithCatalog(c *Catalog) SyncOption {
	return func(s *SyncService) { s.catalog = c }
}

func WithLanguage(lang string) SyncOption {
	return func(s *SyncService) {
		if lang != "" {
			s.lang = lang
		}
	}
}

func WithBulkDelay(d time.Duration) SyncOption {
	return func(s *SyncService) {
		if d >= 0 {
			s.bulkDelay = d
		}
	}
}

func WithSleeper(sleep func(ctx context.Context, d time.Duration) bool) SyncOption {
	return func(s *SyncService) { s.sleep = sleep }
}

func WithObserver(fn func(p domain.Platform, ok bool)) SyncOption {
	return func(s *SyncService) { s.observe = fn }
}

func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = now }
}

// NewSyncService takes the two platform clients; either may be nil.
func NewSyncService(tripAdvisor, googlePlaces domain.PlatformClient, opts ...SyncOption) *SyncService {
	s := &SyncService{
		tripAdvisor:  tripAdvisor,
		googlePlaces: googlePlaces,
		lang:         "en",
		bulkDelay:    DefaultBulkDelay,
		sleep:        sleepCtx,
		now:          time.Now,
		counters:     map[domain.Platform]*domain.PlatformCounters{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SyncService) SyncFromTripAdvisor(ctx context.Context, internalID, externalID string) domain.PlatformSyncResult {
	return s.syncOne(ctx, uuid.NewString(), domain.PlatformTripAdvisor, s.tripAdvisor, internalID, externalID)
}

func (s *SyncService) SyncFromGooglePlaces(ctx context.Context, internalID, externalID string) domain.PlatformSyncResult {
	return s.syncOne(ctx, uuid.NewString(), domain.PlatformGooglePlaces, s.googlePlaces, internalID, externalID)
}

// BulkSync handles items strictly in order, one at a time: TripAdvisor then
// Google for each, with a fixed pause between items. An item succeeds when
// at least one of its platforms did. Once ctx is done the rest are failed.
func (s *SyncService) BulkSync(ctx context.Context, items []domain.BulkSyncItem) domain.BulkSyncReport {
	rep := domain.BulkSyncReport{
		RunID:     uuid.NewString(),
		Results:   make([]domain.LocationSyncResult, 0, len(items)),
		StartedAt: s.now(),
	}
	logger := log.With().Str("run_id", rep.RunID).Logger()
	logger.Info().Int("locations", len(items)).Msg("bulk sync started")

	for i, it := range items {
		if i > 0 && s.bulkDelay > 0 {
			s.sleep(ctx, s.bulkDelay)
		}
		var res domain.LocationSyncResult
		if err := ctx.Err(); err != nil {
			res = domain.LocationSyncResult{
				InternalID: it.InternalID,
				Platforms:  []domain.PlatformSyncResult{},
			}
			for _, p := range requested(it.PlatformIDs) {
				res.Platforms = append(res.Platforms, failed(p.platform, p.id, err))
			}
		} else {
			res = s.syncLocation(ctx, rep.RunID, it)
		}

		if res.Success {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
		rep.Results = append(rep.Results, res)
	}

	rep.FinishedAt = s.now()
	logger.Info().Int("succeeded", rep.Succeeded).Int("failed", rep.Failed).
		Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).Msg("bulk sync finished")
	return rep
}

type platformRef struct {
	platform domain.Platform
	id       string
}

func requested(ids domain.PlatformIDs) []platformRef {
	var out []platformRef
	if ids.TripAdvisor != "" {
		out = append(out, platformRef{domain.PlatformTripAdvisor, ids.TripAdvisor})
	}
	if ids.GooglePlaces != "" {
		out = append(out, platformRef{domain.PlatformGooglePlaces, ids.GooglePlaces})
	}
	return out
}

func (s *SyncService) syncLocation(ctx context.Context, runID string, it domain.BulkSyncItem) domain.LocationSyncResult {
	res := domain.LocationSyncResult{InternalID: it.InternalID, Platforms: []domain.PlatformSyncResult{}}
	refs := requested(it.PlatformIDs)
	if len(refs) == 0 {
		log.Warn().Str("internal_id", it.InternalID).Err(errNoPlatform).Msg("bulk sync item skipped")
		return res
	}
	for _, ref := range refs {
		r := s.syncOne(ctx, runID, ref.platform, s.client(ref.platform), it.InternalID, ref.id)
		res.Platforms = append(res.Platforms, r)
		if r.Success {
			res.Success = true
		}
	}
	return res
}

func (s *SyncService) client(p domain.Platform) domain.PlatformClient {
	if p == domain.PlatformTripAdvisor {
		return s.tripAdvisor
	}
	return s.googlePlaces
}

// syncOne fetches details, then reviews, then photos. Only the details call
// is required; the other two degrade to empty lists.
func (s *SyncService) syncOne(ctx context.Context, runID string, p domain.Platform, c domain.PlatformClient, internalID, externalID string) domain.PlatformSyncResult {
	start := s.now()
	logger := log.With().Str("platform", string(p)).Str("internal_id", internalID).Str("external_id", externalID).Logger()

	res := s.fetch(ctx, p, c, internalID, externalID)
	if res.Success && s.repo != nil {
		if err := s.repo.SaveSnapshot(ctx, internalID, *res.Data); err != nil {
			res = failed(p, externalID, fmt.Errorf("persist snapshot: %w", err))
		}
	}
	if res.Success && s.catalog != nil {
		s.catalog.Invalidate(ctx, internalID)
	}

	took := s.now().Sub(start)
	if res.Success {
		logger.Info().Int("reviews", len(res.Data.Reviews)).Int("photos", len(res.Data.Photos)).Dur("took", took).Msg("platform sync ok")
	} else {
		logger.Warn().Str("error", res.Error).Dur("took", took).Msg("platform sync failed")
	}
	s.record(ctx, runID, internalID, res, took)
	return res
}

func (s *SyncService) fetch(ctx context.Context, p domain.Platform, c domain.PlatformClient, internalID, externalID string) domain.PlatformSyncResult {
	if c == nil {
		return failed(p, externalID, errNoClient)
	}
	if externalID == "" {
		return failed(p, externalID, errNoID)
	}

	details, err := c.GetLocationDetails(ctx, externalID, s.lang)
	if err != nil {
		return failed(p, externalID, err)
	}
	if len(details) == 0 {
		return failed(p, externalID, errNoDetails)
	}

	reviews, err := c.GetReviews(ctx, externalID, s.lang)
	if err != nil {
		log.Warn().Err(err).Str("platform", string(p)).Str("external_id", externalID).Msg("reviews unavailable")
		reviews = nil
	}
	photos, err := c.GetPhotos(ctx, externalID)
	if err != nil {
		log.Warn().Err(err).Str("platform", string(p)).Str("external_id", externalID).Msg("photos unavailable")
		photos = nil
	}

	return domain.PlatformSyncResult{
		Platform:   p,
		ExternalID: externalID,
		Success:    true,
		Data: &domain.PlatformData{
			Location: mapPlatformLocation(p, externalID, details),
			Reviews:  mapReviews(p, internalID, reviews),
			Photos:   mapPhotos(p, internalID, photos),
		},
	}
}

func failed(p domain.Platform, externalID string, err error) domain.PlatformSyncResult {
	return domain.PlatformSyncResult{Platform: p, ExternalID: externalID, Error: err.Error()}
}

func (s *SyncService) record(ctx context.Context, runID, internalID string, res domain.PlatformSyncResult, took time.Duration) {
	s.mu.Lock()
	c, ok := s.counters[res.Platform]
	if !ok {
		c = &domain.PlatformCounters{}
		s.counters[res.Platform] = c
	}
	c.Attempts++
	if res.Success {
		c.Successes++
		at := s.now()
		c.LastSync = &at
	} else {
		c.Failures++
	}
	s.mu.Unlock()

	if s.observe != nil {
		s.observe(res.Platform, res.Success)
	}
	if s.repo == nil {
		return
	}
	e := domain.SyncLogEntry{
		RunID:      runID,
		InternalID: internalID,
		Platform:   res.Platform,
		ExternalID: res.ExternalID,
		Success:    res.Success,
		Error:      res.Error,
		Duration:   took,
	}
	if res.Data != nil {
		e.Reviews, e.Photos = len(res.Data.Reviews), len(res.Data.Photos)
	}
	if err := s.repo.LogSync(ctx, e); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("sync log write failed")
	}
}

// ErrNoRepository is returned by reads that need persisted snapshots.
var ErrNoRepository = errors.New("sync repository not configured")

// Snapshot returns the last persisted sync of one platform for a location.
func (s *SyncService) Snapshot(ctx context.Context, internalID string, p domain.Platform) (domain.PlatformData, error) {
	if s.repo == nil {
		return domain.PlatformData{}, ErrNoRepository
	}
	return s.repo.Snapshot(ctx, internalID, p)
}

// HealthCheck probes each configured platform with a small search.
func (s *SyncService) HealthCheck(ctx context.Context) domain.HealthReport {
	rep := domain.HealthReport{Healthy: true, Platforms: []domain.PlatformHealth{}, Repository: "disabled"}
	for _, c := range []domain.PlatformClient{s.tripAdvisor, s.googlePlaces} {
		if c == nil {
			continue
		}
		start := s.now()
		_, err := c.SearchLocations(ctx, "test", domain.PlatformSearchOptions{Language: s.lang})
		h := domain.PlatformHealth{
			Platform:  c.Platform(),
			Healthy:   err == nil,
			Latency:   s.now().Sub(start),
			CheckedAt: s.now(),
		}
		if err != nil {
			h.Error = err.Error()
			rep.Healthy = false
		}
		rep.Platforms = append(rep.Platforms, h)
	}
	if s.repo != nil {
		rep.Repository = "ok"
		if err := s.repo.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("sync repository unreachable")
			rep.Repository = "down"
			rep.Healthy = false
		}
	}
	return rep
}

// Statistics combines this process's counters, the limiter windows and,
// when a repository is configured, the persisted sync log totals.
func (s *SyncService) Statistics(ctx context.Context) domain.SyncStatistics {
	st := domain.SyncStatistics{
		Process:   map[domain.Platform]domain.PlatformCounters{},
		RateLimit: map[domain.Platform]domain.WindowUsage{},
	}
	for _, c := range []domain.PlatformClient{s.tripAdvisor, s.googlePlaces} {
		if c != nil {
			st.RateLimit[c.Platform()] = c.Usage()
			st.Process[c.Platform()] = domain.PlatformCounters{}
		}
	}

	s.mu.Lock()
	for p, c := range s.counters {
		st.Process[p] = *c
	}
	s.mu.Unlock()

	if s.repo != nil {
		persisted, err := s.repo.SyncCounters(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("persisted sync counters unavailable")
		} else {
			st.Persisted = persisted
		}
	}
	return st
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
