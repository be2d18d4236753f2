package app

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"travelhub/internal/domain"
)

const DefaultTrendingInterval = 30 * time.Minute

type TrendingBuilder func(ctx context.Context) (*domain.TrendingSnapshot, error)

// TrendingCache holds the current snapshot. Readers never wait on a refresh;
// the snapshot pointer is swapped once a new one has been built.
type TrendingCache struct {
	build    TrendingBuilder
	interval time.Duration
	current  atomic.Pointer[domain.TrendingSnapshot]
}

func NewTrendingCache(build TrendingBuilder, interval time.Duration) *TrendingCache {
	if interval <= 0 {
		interval = DefaultTrendingInterval
	}
	return &TrendingCache{build: build, interval: interval}
}

// Get returns the last built snapshot, or nil before the first refresh.
func (c *TrendingCache) Get() *domain.TrendingSnapshot {
	return c.current.Load()
}

// Refresh rebuilds the snapshot. On error the previous snapshot stays.
func (c *TrendingCache) Refresh(ctx context.Context) error {
	snap, err := c.build(ctx)
	if err != nil {
		return err
	}
	c.current.Store(snap)
	return nil
}

// Run refreshes immediately and then on every tick until ctx is done.
func (c *TrendingCache) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("trending refresh failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

const (
	trendingLocations  = 10
	trendingCategories = 5
	trendingTerms      = 10
	trendingMinRating  = 4.0
)

// NewTrendingBuilder builds snapshots from the store's best reviewed
// locations, the categories they fall in and the search history.
func NewTrendingBuilder(store domain.LocationStore, catalog *Catalog, history *SearchHistory, now func() time.Time) TrendingBuilder {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) (*domain.TrendingSnapshot, error) {
		minRating := trendingMinRating
		page, err := store.SearchLocations(ctx, domain.StoreQuery{
			MinRating: &minRating,
			Sort:      domain.SortReviews,
			Order:     domain.OrderDesc,
			Page:      1,
			Limit:     trendingLocations,
		})
		if err != nil {
			return nil, err
		}
		locs := append([]domain.Location{}, page.Locations...)
		sortLocations(locs, domain.SortReviews, domain.OrderDesc)
		if len(locs) > trendingLocations {
			locs = locs[:trendingLocations]
		}

		var cats []domain.Category
		if catalog != nil {
			if cats, err = catalog.Categories(ctx); err != nil {
				log.Warn().Err(err).Msg("trending categories unavailable")
			}
		}

		snap := &domain.TrendingSnapshot{
			TopLocations:  locs,
			TopCategories: countCategories(locs, cats),
			SearchTerms:   []domain.TrendingTerm{},
			GeneratedAt:   now(),
		}
		if history != nil {
			snap.SearchTerms = history.Top(trendingTerms)
		}
		return snap, nil
	}
}

func countCategories(locs []domain.Location, cats []domain.Category) []domain.CategoryCount {
	byID := make(map[string]domain.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	counts := map[string]int{}
	var order []string
	for _, l := range locs {
		if l.CategoryID == "" {
			continue
		}
		if _, seen := counts[l.CategoryID]; !seen {
			order = append(order, l.CategoryID)
		}
		counts[l.CategoryID]++
	}

	out := make([]domain.CategoryCount, 0, len(order))
	for _, id := range order {
		c, ok := byID[id]
		if !ok {
			c = domain.Category{ID: id}
			for _, l := range locs {
				if l.CategoryID == id && l.Category != nil {
					c = *l.Category
					break
				}
			}
		}
		out = append(out, domain.CategoryCount{Category: c, Count: counts[id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > trendingCategories {
		out = out[:trendingCategories]
	}
	return out
}
