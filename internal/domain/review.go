package domain

import "time"

type Platform string

const (
	PlatformTripAdvisor  Platform = "tripadvisor"
	PlatformGooglePlaces Platform = "google_places"
)

// PlatformLocation is a third-party place normalized to one shape.
type PlatformLocation struct {
	Platform     Platform  `json:"platform"`
	ExternalID   string    `json:"external_id"`
	Name         string    `json:"name"`
	Address      string    `json:"address,omitempty"`
	Coords       *GeoPoint `json:"coords,omitempty"`
	Rating       *float64  `json:"rating,omitempty"`
	ReviewCount  int       `json:"review_count"`
	PriceLevel   int       `json:"price_level,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Website      string    `json:"website,omitempty"`
	WebURL       string    `json:"web_url,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	OpeningHours []string  `json:"opening_hours,omitempty"`
	RawJSON      []byte    `json:"-"`
}

type Review struct {
	Platform    Platform   `json:"platform"`
	LocationID  string     `json:"location_id"` // internal location
	SourceID    string     `json:"source_id"`
	Author      *string    `json:"author,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	Lang        *string    `json:"lang,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Text        *string    `json:"text,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	RawJSON     []byte     `json:"-"`
}

type Photo struct {
	Platform   Platform `json:"platform"`
	LocationID string   `json:"location_id"`
	SourceID   string   `json:"source_id"`
	URL        string   `json:"url"`
	Caption    *string  `json:"caption,omitempty"`
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
}
