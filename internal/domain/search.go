package domain

import (
	"math"
	"time"
)

type SortKey string

const (
	SortRelevance SortKey = "relevance"
	SortRating    SortKey = "rating"
	SortReviews   SortKey = "reviews"
	SortPrice     SortKey = "price"
	SortRecent    SortKey = "recent"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type FloatRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

type IntRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// GeoFilter is either a center+radius or an administrative region.
type GeoFilter struct {
	Center   *GeoPoint `json:"center,omitempty"`
	RadiusKm float64   `json:"radius_km,omitempty"`
	CityID   string    `json:"city_id,omitempty"`
	Region   string    `json:"region,omitempty"`
}

// FilterCriteria is built per search call and never mutated by the engine.
type FilterCriteria struct {
	Query        string      `json:"query,omitempty"`
	Language     string      `json:"language,omitempty"`
	Geo          *GeoFilter  `json:"geo,omitempty"`
	CategoryIDs  []string    `json:"category_ids,omitempty"`
	Rating       *FloatRange `json:"rating,omitempty"`
	Price        *IntRange   `json:"price,omitempty"`
	Features     []string    `json:"features,omitempty"`
	VerifiedOnly bool        `json:"verified_only,omitempty"`
	ClaimedOnly  bool        `json:"claimed_only,omitempty"`
	MinReviews   int         `json:"min_reviews,omitempty"`
	OpenNow      bool        `json:"open_now,omitempty"`
	Sort         SortKey     `json:"sort,omitempty"`
	Order        SortOrder   `json:"order,omitempty"`
	Page         int         `json:"page,omitempty"`
	Limit        int         `json:"limit,omitempty"`
}

// WithDefaults fills page, limit, sort, order and language.
func (f FilterCriteria) WithDefaults() FilterCriteria {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Sort == "" {
		f.Sort = SortRelevance
	}
	if f.Order == "" {
		f.Order = OrderDesc
	}
	if f.Language == "" {
		f.Language = "en"
	}
	return f
}

func (f FilterCriteria) Validate() error {
	v := &ValidationError{}
	if f.Rating != nil {
		if !finite(f.Rating.Min) || !finite(f.Rating.Max) {
			v.add("rating bounds must be finite numbers")
		}
		if f.Rating.Min != nil && (*f.Rating.Min < 0 || *f.Rating.Min > 5) {
			v.add("rating.min must be within [0,5]")
		}
		if f.Rating.Max != nil && (*f.Rating.Max < 0 || *f.Rating.Max > 5) {
			v.add("rating.max must be within [0,5]")
		}
		if f.Rating.Min != nil && f.Rating.Max != nil && *f.Rating.Min > *f.Rating.Max {
			v.add("rating.min must not exceed rating.max")
		}
	}
	if f.Price != nil {
		if f.Price.Min != nil && (*f.Price.Min < 1 || *f.Price.Min > 4) {
			v.add("price.min must be within [1,4]")
		}
		if f.Price.Max != nil && (*f.Price.Max < 1 || *f.Price.Max > 4) {
			v.add("price.max must be within [1,4]")
		}
		if f.Price.Min != nil && f.Price.Max != nil && *f.Price.Min > *f.Price.Max {
			v.add("price.min must not exceed price.max")
		}
	}
	if f.Geo != nil && f.Geo.Center != nil {
		c := f.Geo.Center
		if !finite(&c.Lat) || !finite(&c.Lon) {
			v.add("geo.center must be finite coordinates")
		}
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			v.add("geo.center is out of range")
		}
	}
	if f.Geo != nil {
		if !finite(&f.Geo.RadiusKm) {
			v.add("geo.radius_km must be a finite number")
		} else if f.Geo.RadiusKm < 0 {
			v.add("geo.radius_km must not be negative")
		}
	}
	if f.MinReviews < 0 {
		v.add("min_reviews must not be negative")
	}
	switch f.Sort {
	case "", SortRelevance, SortRating, SortReviews, SortPrice, SortRecent:
	default:
		v.add("unknown sort key %q", f.Sort)
	}
	switch f.Order {
	case "", OrderAsc, OrderDesc:
	default:
		v.add("unknown sort order %q", f.Order)
	}
	if f.Page < 0 {
		v.add("page must not be negative")
	}
	if f.Limit < 0 || f.Limit > MaxPageLimit {
		v.add("limit must be within [1,%d]", MaxPageLimit)
	}
	return v.orNil()
}

// finite reports whether p is nil or a real number; NaN compares false with every bound.
func finite(p *float64) bool {
	return p == nil || !(math.IsNaN(*p) || math.IsInf(*p, 0))
}

// Personalization is a caller-supplied preference snapshot.
type Personalization struct {
	UserID              string        `json:"user_id,omitempty"`
	PreferredCategories []string      `json:"preferred_categories,omitempty"`
	PriceRange          int           `json:"price_range,omitempty"`
	FeaturePreferences  []string      `json:"feature_preferences,omitempty"`
	VisitHistory        []string      `json:"visit_history,omitempty"`
	Demographics        *Demographics `json:"demographics,omitempty"`
	CurrentLocation     *GeoPoint     `json:"current_location,omitempty"`
	HomeLocation        *GeoPoint     `json:"home_location,omitempty"`
}

// Validate rejects locations that cannot take part in distance math.
func (p *Personalization) Validate() error {
	v := &ValidationError{}
	if p == nil {
		return nil
	}
	for _, g := range []struct {
		name string
		pt   *GeoPoint
	}{{"current_location", p.CurrentLocation}, {"home_location", p.HomeLocation}} {
		if g.pt == nil {
			continue
		}
		c := g.pt
		if !finite(&c.Lat) || !finite(&c.Lon) || c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			v.add("personalization.%s is not a valid coordinate", g.name)
		}
	}
	if p.PriceRange < 0 || p.PriceRange > 4 {
		v.add("personalization.price_range must be within [0,4]")
	}
	return v.orNil()
}

type Demographics struct {
	AgeGroup    string `json:"age_group,omitempty"`
	TravelStyle string `json:"travel_style,omitempty"`
}

type ReasonType string

const (
	ReasonRating     ReasonType = "rating"
	ReasonPopularity ReasonType = "popularity"
	ReasonPreference ReasonType = "preference"
	ReasonProximity  ReasonType = "proximity"
)

type Reason struct {
	Type   ReasonType `json:"type"`
	Text   string     `json:"text"`
	Weight float64    `json:"weight"`
}

type Recommendation struct {
	Location Location `json:"location"`
	Score    float64  `json:"score"`
	Reasons  []Reason `json:"reasons"`
	Distance *float64 `json:"distance,omitempty"`
}

type SuggestionType string

const (
	SuggestLocation SuggestionType = "location"
	SuggestCategory SuggestionType = "category"
	SuggestFeature  SuggestionType = "feature"
	SuggestQuery    SuggestionType = "query"
)

type Suggestion struct {
	Type  SuggestionType `json:"type"`
	Text  string         `json:"text"`
	Value string         `json:"value"`
	Score float64        `json:"score"`
	Icon  string         `json:"icon"`
}

type TrendingTerm struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// TrendingSnapshot is replaced wholesale on refresh; never mutate one in place.
type TrendingSnapshot struct {
	TopLocations  []Location      `json:"top_locations"`
	TopCategories []CategoryCount `json:"top_categories"`
	SearchTerms   []TrendingTerm  `json:"search_terms"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

type SearchResult struct {
	Locations       []Location        `json:"locations"`
	TotalCount      int               `json:"total_count"`
	Page            int               `json:"page"`
	Limit           int               `json:"limit"`
	Suggestions     []Suggestion      `json:"suggestions"`
	Trending        *TrendingSnapshot `json:"trending,omitempty"`
	Recommendations []Recommendation  `json:"recommendations"`
}

type SearchAnalytics struct {
	TotalSearches  int64          `json:"total_searches"`
	UniqueQueries  int            `json:"unique_queries"`
	TopQueries     []TrendingTerm `json:"top_queries"`
	AverageResults float64        `json:"average_results"`
	HistorySize    int            `json:"history_size"`
}

// StoreQuery is the backing store's native search request.
type StoreQuery struct {
	Query       string
	Language    string
	Lat, Lon    *float64
	RadiusKm    float64
	CityID      string
	Region      string
	CategoryIDs []string
	MinRating   *float64
	MaxPrice    *int
	Features    []string
	Sort        SortKey
	Order       SortOrder
	Page        int
	Limit       int
}

type StorePage struct {
	Locations  []Location `json:"locations"`
	TotalCount int        `json:"total_count"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
}
