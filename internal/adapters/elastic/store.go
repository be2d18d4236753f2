// Package elastic implements domain.LocationStore on top of an Elasticsearch
// index of location documents. Cities and categories live in sibling indices
// named <index>_cities and <index>_categories.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"travelhub/internal/domain"
)

type Store struct {
	es    *elasticsearch.Client
	index string
}

var _ domain.LocationStore = (*Store)(nil)

func New(addr, index string) (*Store, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("elastic: new client: %w", err)
	}
	if index == "" {
		index = "locations"
	}
	return &Store{es: es, index: index}, nil
}

func (s *Store) SearchLocations(ctx context.Context, sq domain.StoreQuery) (domain.StorePage, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildSearchBody(sq)); err != nil {
		return domain.StorePage{}, fmt.Errorf("elastic: encode query: %w", err)
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(&buf),
		s.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return domain.StorePage{}, fmt.Errorf("elastic: search: %w", err)
	}
	defer res.Body.Close()
	if err := responseErr(res); err != nil {
		return domain.StorePage{}, err
	}

	var out struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source domain.Location `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return domain.StorePage{}, fmt.Errorf("elastic: decode search: %w", err)
	}
	page := domain.StorePage{
		Locations:  make([]domain.Location, 0, len(out.Hits.Hits)),
		TotalCount: out.Hits.Total.Value,
		Page:       sq.Page,
		Limit:      sq.Limit,
	}
	for _, h := range out.Hits.Hits {
		page.Locations = append(page.Locations, h.Source)
	}
	return page, nil
}

func (s *Store) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	res, err := esapi.GetRequest{Index: s.index, DocumentID: id}.Do(ctx, s.es)
	if err != nil {
		return domain.Location{}, fmt.Errorf("elastic: get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return domain.Location{}, domain.ErrNotFound
	}
	if err := responseErr(res); err != nil {
		return domain.Location{}, err
	}
	var doc struct {
		Found  bool            `json:"found"`
		Source domain.Location `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return domain.Location{}, fmt.Errorf("elastic: decode get: %w", err)
	}
	if !doc.Found {
		return domain.Location{}, domain.ErrNotFound
	}
	return doc.Source, nil
}

func (s *Store) GetCities(ctx context.Context) ([]domain.City, error) {
	var out []domain.City
	return out, s.all(ctx, s.index+"_cities", &out)
}

func (s *Store) GetLocationCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	return out, s.all(ctx, s.index+"_categories", &out)
}

// all loads every document of a small lookup index into dst (a slice pointer).
func (s *Store) all(ctx context.Context, index string, dst any) error {
	body := strings.NewReader(`{"query":{"match_all":{}},"size":1000}`)
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(index),
		s.es.Search.WithBody(body),
	)
	if err != nil {
		return fmt.Errorf("elastic: list %s: %w", index, err)
	}
	defer res.Body.Close()
	if err := responseErr(res); err != nil {
		return err
	}
	var out struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("elastic: decode %s: %w", index, err)
	}
	docs := make([]json.RawMessage, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		docs = append(docs, h.Source)
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func responseErr(res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("elastic: status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
}

var sortFields = map[domain.SortKey]string{
	domain.SortRating:  "average_rating",
	domain.SortReviews: "total_reviews",
	domain.SortPrice:   "price_range",
	domain.SortRecent:  "created_at",
}

func buildSearchBody(sq domain.StoreQuery) map[string]any {
	must := []map[string]any{}
	filter := []map[string]any{}

	if q := strings.TrimSpace(sq.Query); q != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"name.*^3", "slug", "features"},
			},
		})
	}
	if sq.Lat != nil && sq.Lon != nil && sq.RadiusKm > 0 {
		filter = append(filter, map[string]any{
			"geo_distance": map[string]any{
				"distance": fmt.Sprintf("%gkm", sq.RadiusKm),
				"coords":   map[string]float64{"lat": *sq.Lat, "lon": *sq.Lon},
			},
		})
	}
	if sq.CityID != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"city_id": sq.CityID}})
	}
	if sq.Region != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"city.country": sq.Region}})
	}
	if len(sq.CategoryIDs) > 0 {
		filter = append(filter, map[string]any{"terms": map[string]any{"category_id": sq.CategoryIDs}})
	}
	if sq.MinRating != nil {
		filter = append(filter, map[string]any{"range": map[string]any{"average_rating": map[string]any{"gte": *sq.MinRating}}})
	}
	if sq.MaxPrice != nil {
		filter = append(filter, map[string]any{"range": map[string]any{"price_range": map[string]any{"lte": *sq.MaxPrice}}})
	}
	// one term per feature: every feature is required
	for _, f := range sq.Features {
		filter = append(filter, map[string]any{"term": map[string]any{"features": f}})
	}

	order := string(sq.Order)
	if order == "" {
		order = string(domain.OrderDesc)
	}
	sort := []map[string]any{{"_score": map[string]any{"order": "desc"}}}
	if field, ok := sortFields[sq.Sort]; ok {
		sort = []map[string]any{{field: map[string]any{"order": order}}}
	}

	page, limit := sq.Page, sq.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = domain.DefaultPageLimit
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"must": must, "filter": filter},
		},
		"sort": sort,
		"from": (page - 1) * limit,
		"size": limit,
	}
}
