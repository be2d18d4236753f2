package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"travelhub/internal/domain"
)

const (
	defaultSimilarLimit = 6
	defaultSmartLimit   = 10
	smartRadiusKm       = 10.0
	analyticsTopQueries = 10
)

// Engine ranks store candidates. Its only process-wide state is the search
// history and the trending cache, both injected.
type Engine struct {
	store    domain.LocationStore
	catalog  *Catalog
	history  *SearchHistory
	trending *TrendingCache
	now      func() time.Time
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store domain.LocationStore, catalog *Catalog, history *SearchHistory, trending *TrendingCache, opts ...EngineOption) *Engine {
	if history == nil {
		history = NewSearchHistory(DefaultHistoryCapacity)
	}
	e := &Engine{store: store, catalog: catalog, history: history, trending: trending, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AdvancedSearch runs one page of the ranking pipeline. Only a store failure
// or an invalid filter is returned as an error.
func (e *Engine) AdvancedSearch(ctx context.Context, f domain.FilterCriteria, p *domain.Personalization) (*domain.SearchResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f = f.WithDefaults()

	locs, total, err := e.rank(ctx, f, p)
	if err != nil {
		return nil, err
	}

	recs := recommend(locs, p)
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}

	res := &domain.SearchResult{
		Locations:       locs,
		TotalCount:      total,
		Page:            f.Page,
		Limit:           f.Limit,
		Suggestions:     e.Suggest(ctx, f.Query, f.Language),
		Trending:        e.GetTrendingData(),
		Recommendations: recs,
	}

	if strings.TrimSpace(f.Query) != "" {
		ids := make([]string, len(locs))
		for i, l := range locs {
			ids[i] = l.ID
		}
		e.history.Record(f.Query, ids, e.now())
	}
	return res, nil
}

// rank fetches one store page, applies the hard filters, scores and sorts.
// The total is the store's count less what this page excluded.
func (e *Engine) rank(ctx context.Context, f domain.FilterCriteria, p *domain.Personalization) ([]domain.Location, int, error) {
	page, err := e.store.SearchLocations(ctx, toStoreQuery(f))
	if err != nil {
		return nil, 0, fmt.Errorf("search store: %w", err)
	}

	out := make([]domain.Location, 0, len(page.Locations))
	for _, loc := range page.Locations {
		if !passesHardFilters(loc, f) {
			continue
		}
		loc.RelevanceScore, loc.Distance = relevanceScore(loc, f, p)
		out = append(out, loc)
	}
	sortLocations(out, f.Sort, f.Order)

	total := page.TotalCount - (len(page.Locations) - len(out))
	if total < len(out) {
		total = len(out)
	}
	log.Debug().Int("fetched", len(page.Locations)).Int("kept", len(out)).Str("sort", string(f.Sort)).Msg("ranked candidates")
	return out, total, nil
}

func toStoreQuery(f domain.FilterCriteria) domain.StoreQuery {
	sq := domain.StoreQuery{
		Query:       strings.TrimSpace(f.Query),
		Language:    f.Language,
		CategoryIDs: f.CategoryIDs,
		Features:    f.Features,
		Sort:        f.Sort,
		Order:       f.Order,
		Page:        f.Page,
		Limit:       f.Limit,
	}
	if g := f.Geo; g != nil {
		if g.Center != nil {
			lat, lon := g.Center.Lat, g.Center.Lon
			sq.Lat, sq.Lon = &lat, &lon
			sq.RadiusKm = g.RadiusKm
		}
		sq.CityID = g.CityID
		sq.Region = g.Region
	}
	if f.Rating != nil {
		sq.MinRating = f.Rating.Min
	}
	if f.Price != nil {
		sq.MaxPrice = f.Price.Max
	}
	return sq
}

// GetSimilarLocations searches the source location's category, neighbouring
// price tiers, a rating floor one star lower and its feature set.
func (e *Engine) GetSimilarLocations(ctx context.Context, locationID string, limit int) ([]domain.Location, error) {
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	if limit >= domain.MaxPageLimit {
		limit = domain.MaxPageLimit - 1
	}
	src, err := e.location(ctx, locationID)
	if err != nil {
		return nil, err
	}

	f := domain.FilterCriteria{
		Features: src.Features,
		Limit:    limit + 1,
	}
	if src.CategoryID != "" {
		f.CategoryIDs = []string{src.CategoryID}
	}
	if src.PriceRange > 0 {
		lo, hi := max(1, src.PriceRange-1), min(4, src.PriceRange+1)
		f.Price = &domain.IntRange{Min: &lo, Max: &hi}
	}
	floor := max(1, src.AverageRating-1)
	if floor > 5 {
		floor = 5
	}
	f.Rating = &domain.FloatRange{Min: &floor}

	locs, _, err := e.rank(ctx, f.WithDefaults(), nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Location, 0, limit)
	for _, l := range locs {
		if l.ID == src.ID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, l)
	}
	return out, nil
}

type timePreset struct {
	categories []string
	features   []string
}

// presetFor maps the hour to a preset; outside both windows the profile's own
// preferences apply.
func presetFor(at time.Time) (timePreset, bool) {
	switch h := at.Hour(); {
	case h >= 5 && h < 11:
		return timePreset{categories: []string{"cafe", "bakery"}, features: []string{"breakfast", "coffee"}}, true
	case h >= 17 && h < 23:
		return timePreset{categories: []string{"restaurant", "bar"}, features: []string{"dinner", "bar", "live-music"}}, true
	}
	return timePreset{}, false
}

// GetSmartRecommendations blends a time-of-day preset into the profile and
// recommends unvisited locations around the user.
func (e *Engine) GetSmartRecommendations(ctx context.Context, p *domain.Personalization, at time.Time, limit int) ([]domain.Recommendation, error) {
	if p == nil {
		return []domain.Recommendation{}, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSmartLimit
	}

	merged := *p
	if preset, ok := presetFor(at); ok {
		merged.PreferredCategories = union(p.PreferredCategories, preset.categories)
		merged.FeaturePreferences = union(p.FeaturePreferences, preset.features)
	}

	f := domain.FilterCriteria{Limit: domain.MaxPageLimit}
	if p.CurrentLocation != nil {
		c := *p.CurrentLocation
		f.Geo = &domain.GeoFilter{Center: &c, RadiusKm: smartRadiusKm}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	locs, _, err := e.rank(ctx, f.WithDefaults(), &merged)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]struct{}, len(p.VisitHistory))
	for _, id := range p.VisitHistory {
		visited[id] = struct{}{}
	}
	fresh := locs[:0]
	for _, l := range locs {
		if _, ok := visited[l.ID]; !ok {
			fresh = append(fresh, l)
		}
	}

	recs := recommend(fresh, &merged)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// GetTrendingData never waits for a refresh.
func (e *Engine) GetTrendingData() *domain.TrendingSnapshot {
	if e.trending != nil {
		if s := e.trending.Get(); s != nil {
			return s
		}
	}
	return &domain.TrendingSnapshot{
		TopLocations:  []domain.Location{},
		TopCategories: []domain.CategoryCount{},
		SearchTerms:   []domain.TrendingTerm{},
	}
}

func (e *Engine) GetSearchAnalytics() domain.SearchAnalytics {
	return e.history.Analytics(analyticsTopQueries)
}

func (e *Engine) location(ctx context.Context, id string) (domain.Location, error) {
	if e.catalog != nil {
		return e.catalog.Location(ctx, id)
	}
	return e.store.GetLocation(ctx, id)
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, s := range b {
		dup := false
		for _, have := range out {
			if strings.EqualFold(have, s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}
