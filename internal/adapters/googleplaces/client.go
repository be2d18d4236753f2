// Package googleplaces is the Places web service client (platform B).
// Responses use {"results": [...]} or {"result": {...}} plus a "status" field.
package googleplaces

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"travelhub/internal/adapters/platform"
	"travelhub/internal/domain"
)

const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

const detailFields = "place_id,name,formatted_address,geometry,rating,user_ratings_total,price_level," +
	"formatted_phone_number,website,url,types,opening_hours"

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	base    string
	key     string
	rq      *platform.Requester
	limiter *platform.WindowLimiter
}

var _ domain.PlatformClient = (*Client)(nil)

func New(cfg Config, limiter *platform.WindowLimiter) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("googleplaces: API key is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("googleplaces: rate limiter is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		base:    base,
		key:     cfg.APIKey,
		rq:      platform.NewRequester(string(domain.PlatformGooglePlaces), limiter, cfg.Timeout),
		limiter: limiter,
	}, nil
}

func (c *Client) Platform() domain.Platform { return domain.PlatformGooglePlaces }

func (c *Client) Usage() domain.WindowUsage { return c.limiter.Usage() }

type listEnvelope struct {
	Status       string           `json:"status"`
	ErrorMessage string           `json:"error_message"`
	Results      []map[string]any `json:"results"`
}

type detailEnvelope struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Result       map[string]any `json:"result"`
}

// SearchLocations uses text search, or nearby search when only coordinates are given.
func (c *Client) SearchLocations(ctx context.Context, query string, opts domain.PlatformSearchOptions) ([]map[string]any, error) {
	q := c.params(opts.Language)
	endpoint, path := "text_search", "/textsearch/json"
	if strings.TrimSpace(query) == "" && opts.Lat != nil && opts.Lon != nil {
		endpoint, path = "nearby_search", "/nearbysearch/json"
		radius := opts.RadiusM
		if radius <= 0 {
			radius = 5000
		}
		q.Set("radius", strconv.Itoa(radius))
	} else {
		q.Set("query", query)
		if opts.RadiusM > 0 {
			q.Set("radius", strconv.Itoa(opts.RadiusM))
		}
	}
	if opts.Lat != nil && opts.Lon != nil {
		q.Set("location", fmt.Sprintf("%f,%f", *opts.Lat, *opts.Lon))
	}
	if opts.Category != "" {
		q.Set("type", opts.Category)
	}

	var env listEnvelope
	if err := c.rq.GetJSON(ctx, endpoint, c.base+path+"?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	if err := c.checkStatus(endpoint, env.Status, env.ErrorMessage); err != nil {
		return nil, err
	}
	return env.Results, nil
}

// GetLocationDetails reports ErrNotFound when Google answers OK with an empty result.
func (c *Client) GetLocationDetails(ctx context.Context, placeID, lang string) (map[string]any, error) {
	res, err := c.details(ctx, "place_details", placeID, detailFields, lang)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, &platform.UpstreamError{Service: string(domain.PlatformGooglePlaces), Endpoint: "place_details", Err: platform.ErrNotFound}
	}
	return res, nil
}

func (c *Client) GetReviews(ctx context.Context, placeID, lang string) ([]map[string]any, error) {
	res, err := c.details(ctx, "place_reviews", placeID, "reviews", lang)
	if err != nil {
		return nil, err
	}
	return mapsAt(res, "reviews"), nil
}

// GetPhotos resolves photo references into photo endpoint URLs. The URL omits
// the key; consumers append their own.
func (c *Client) GetPhotos(ctx context.Context, placeID string) ([]map[string]any, error) {
	res, err := c.details(ctx, "place_photos", placeID, "photos", "")
	if err != nil {
		return nil, err
	}
	photos := mapsAt(res, "photos")
	for _, p := range photos {
		if ref, ok := p["photo_reference"].(string); ok && ref != "" {
			p["url"] = fmt.Sprintf("%s/photo?maxwidth=1600&photo_reference=%s", c.base, url.QueryEscape(ref))
		}
	}
	return photos, nil
}

func (c *Client) details(ctx context.Context, endpoint, placeID, fields, lang string) (map[string]any, error) {
	if placeID == "" {
		return nil, platform.ErrMissingID
	}
	q := c.params(lang)
	q.Set("place_id", placeID)
	q.Set("fields", fields)
	if fields == "reviews" {
		q.Set("reviews_sort", "newest")
	}
	var env detailEnvelope
	if err := c.rq.GetJSON(ctx, endpoint, c.base+"/details/json?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	if err := c.checkStatus(endpoint, env.Status, env.ErrorMessage); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// checkStatus maps the body status onto the platform sentinels.
func (c *Client) checkStatus(endpoint, status, msg string) error {
	var err error
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "NOT_FOUND":
		err = platform.ErrNotFound
	case "REQUEST_DENIED":
		err = platform.ErrForbidden
	case "":
		err = platform.ErrBadPayload
	default: // OVER_QUERY_LIMIT, INVALID_REQUEST, UNKNOWN_ERROR
		err = fmt.Errorf("%w: %s %s", platform.ErrRejected, status, msg)
	}
	return &platform.UpstreamError{Service: string(domain.PlatformGooglePlaces), Endpoint: endpoint, Err: err}
}

func (c *Client) params(lang string) url.Values {
	q := url.Values{}
	q.Set("key", c.key)
	if lang != "" {
		q.Set("language", lang)
	}
	return q
}

func mapsAt(m map[string]any, key string) []map[string]any {
	raw, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if obj, ok := it.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
