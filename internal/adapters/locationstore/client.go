// Package locationstore talks to the backing location/review REST API.
package locationstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"travelhub/internal/adapters/platform"
	"travelhub/internal/domain"
)

type Client struct {
	base string
	rq   *platform.Requester
}

var _ domain.LocationStore = (*Client)(nil)

func New(base, key string, rps int, timeout time.Duration) (*Client, error) {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return nil, fmt.Errorf("locationstore: base URL is required")
	}
	if rps <= 0 {
		rps = 20
	}
	rq := platform.NewRequester("locationstore", rate.NewLimiter(rate.Limit(rps), rps), timeout)
	if key != "" {
		rq.WithHeader("Authorization", "Bearer "+key)
	}
	return &Client{base: base, rq: rq}, nil
}

func (c *Client) SearchLocations(ctx context.Context, sq domain.StoreQuery) (domain.StorePage, error) {
	var out domain.StorePage
	if err := c.rq.GetJSON(ctx, "search", c.base+"/locations/search?"+encodeQuery(sq).Encode(), &out); err != nil {
		return domain.StorePage{}, err
	}
	if out.Page == 0 {
		out.Page = sq.Page
	}
	if out.Limit == 0 {
		out.Limit = sq.Limit
	}
	return out, nil
}

func (c *Client) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	var out domain.Location
	err := c.rq.GetJSON(ctx, "location", c.base+"/locations/"+url.PathEscape(id), &out)
	if errors.Is(err, platform.ErrNotFound) {
		return domain.Location{}, domain.ErrNotFound
	}
	return out, err
}

func (c *Client) GetCities(ctx context.Context) ([]domain.City, error) {
	var out []domain.City
	return out, c.rq.GetJSON(ctx, "cities", c.base+"/cities", &out)
}

func (c *Client) GetLocationCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	return out, c.rq.GetJSON(ctx, "categories", c.base+"/location-categories", &out)
}

// encodeQuery is a straight pass-through of the criteria.
func encodeQuery(sq domain.StoreQuery) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("q", sq.Query)
	set("lang", sq.Language)
	if sq.Lat != nil && sq.Lon != nil {
		set("lat", strconv.FormatFloat(*sq.Lat, 'f', 6, 64))
		set("lon", strconv.FormatFloat(*sq.Lon, 'f', 6, 64))
		if sq.RadiusKm > 0 {
			set("radius", strconv.FormatFloat(sq.RadiusKm, 'f', -1, 64))
		}
	}
	set("city_id", sq.CityID)
	set("region", sq.Region)
	set("category", strings.Join(sq.CategoryIDs, ","))
	if sq.MinRating != nil {
		set("min_rating", strconv.FormatFloat(*sq.MinRating, 'f', -1, 64))
	}
	if sq.MaxPrice != nil {
		set("max_price", strconv.Itoa(*sq.MaxPrice))
	}
	set("features", strings.Join(sq.Features, ","))
	set("sort", string(sq.Sort))
	set("order", string(sq.Order))
	if sq.Page > 0 {
		set("page", strconv.Itoa(sq.Page))
	}
	if sq.Limit > 0 {
		set("limit", strconv.Itoa(sq.Limit))
	}
	return q
}
