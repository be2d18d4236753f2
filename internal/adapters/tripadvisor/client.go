// Package tripadvisor is the Content API client (platform A). Responses use a
// {"data": [...]} envelope; the key travels as a query parameter.
package tripadvisor

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

const DefaultBaseURL = "https://api.content.tripadvisor.com/api/v1"

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
		return nil, fmt.Errorf("tripadvisor: API key is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("tripadvisor: rate limiter is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		base:    base,
		key:     cfg.APIKey,
		rq:      platform.NewRequester(string(domain.PlatformTripAdvisor), limiter, cfg.Timeout),
		limiter: limiter,
	}, nil
}

func (c *Client) Platform() domain.Platform { return domain.PlatformTripAdvisor }

func (c *Client) Usage() domain.WindowUsage { return c.limiter.Usage() }

type envelope struct {
	Data []map[string]any `json:"data"`
}

func (c *Client) SearchLocations(ctx context.Context, query string, opts domain.PlatformSearchOptions) ([]map[string]any, error) {
	q := c.params(opts.Language)
	q.Set("searchQuery", query)
	if opts.Lat != nil && opts.Lon != nil {
		q.Set("latLong", fmt.Sprintf("%f,%f", *opts.Lat, *opts.Lon))
		if opts.RadiusM > 0 {
			q.Set("radius", strconv.Itoa(opts.RadiusM))
			q.Set("radiusUnit", "m")
		}
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	var env envelope
	if err := c.rq.GetJSON(ctx, "location_search", c.base+"/location/search?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) GetLocationDetails(ctx context.Context, id, lang string) (map[string]any, error) {
	if id == "" {
		return nil, platform.ErrMissingID
	}
	q := c.params(lang)
	q.Set("currency", "USD")
	var out map[string]any
	u := fmt.Sprintf("%s/location/%s/details?%s", c.base, url.PathEscape(id), q.Encode())
	if err := c.rq.GetJSON(ctx, "location_details", u, &out); err != nil {
		return nil, err
	}
	// errors can arrive with a 200 and an {"error": {...}} body
	if _, failed := out["error"]; failed || len(out) == 0 {
		return nil, &platform.UpstreamError{Service: string(domain.PlatformTripAdvisor), Endpoint: "location_details", Err: platform.ErrNotFound}
	}
	return out, nil
}

func (c *Client) GetReviews(ctx context.Context, id, lang string) ([]map[string]any, error) {
	return c.list(ctx, "location_reviews", id, "reviews", lang)
}

func (c *Client) GetPhotos(ctx context.Context, id string) ([]map[string]any, error) {
	return c.list(ctx, "location_photos", id, "photos", "")
}

func (c *Client) list(ctx context.Context, endpoint, id, resource, lang string) ([]map[string]any, error) {
	if id == "" {
		return nil, platform.ErrMissingID
	}
	var env envelope
	u := fmt.Sprintf("%s/location/%s/%s?%s", c.base, url.PathEscape(id), resource, c.params(lang).Encode())
	if err := c.rq.GetJSON(ctx, endpoint, u, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) params(lang string) url.Values {
	q := url.Values{}
	q.Set("key", c.key)
	if lang != "" {
		q.Set("language", lang)
	}
	return q
}
