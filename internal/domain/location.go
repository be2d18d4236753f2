package domain

import (
	"strings"
	"time"
)

// LocalizedText maps a language code (en|tr|de|ru|...) to a translated string.
type LocalizedText map[string]string

// In returns the text for lang, falling back to English and then to any value.
func (t LocalizedText) In(lang string) string {
	if v := t[strings.ToLower(lang)]; v != "" {
		return v
	}
	if v := t["en"]; v != "" {
		return v
	}
	for _, v := range t {
		if v != "" {
			return v
		}
	}
	return ""
}

// Contains reports whether any translation contains the lowercase needle.
func (t LocalizedText) Contains(needle string) bool {
	for _, v := range t {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type City struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Name    LocalizedText `json:"name"`
	Country string        `json:"country,omitempty"`
	Coords  *GeoPoint     `json:"coords,omitempty"`
}

type Category struct {
	ID   string        `json:"id"`
	Slug string        `json:"slug"`
	Name LocalizedText `json:"name"`
	Icon string        `json:"icon,omitempty"`
}

// Location is a point of interest owned by the backing store. The search engine
// only reads it and sets the transient scoring fields on its own copies.
type Location struct {
	ID            string            `json:"id"`
	Slug          string            `json:"slug"`
	Name          LocalizedText     `json:"name"`
	CategoryID    string            `json:"category_id"`
	CityID        string            `json:"city_id"`
	Category      *Category         `json:"category,omitempty"`
	City          *City             `json:"city,omitempty"`
	Coords        *GeoPoint         `json:"coords,omitempty"`
	PriceRange    int               `json:"price_range"` // 1..4, 0 unknown
	Features      []string          `json:"features"`
	IsVerified    bool              `json:"is_verified"`
	IsClaimed     bool              `json:"is_claimed"`
	AverageRating float64           `json:"average_rating"`
	TotalReviews  int               `json:"total_reviews"`
	TotalPhotos   int               `json:"total_photos"`
	OpeningHours  map[string]string `json:"opening_hours,omitempty"`
	TripAdvisorID string            `json:"tripadvisor_id,omitempty"`
	GooglePlaceID string            `json:"google_place_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`

	RelevanceScore      float64  `json:"relevance_score,omitempty"`
	RecommendationScore float64  `json:"recommendation_score,omitempty"`
	Distance            *float64 `json:"distance,omitempty"` // km
}

// HasFeature is a case-insensitive membership test.
func (l Location) HasFeature(f string) bool {
	for _, have := range l.Features {
		if strings.EqualFold(have, f) {
			return true
		}
	}
	return false
}
