package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"travelhub/internal/adapters/observability"
	"travelhub/internal/app"
	"travelhub/internal/domain"
)

type SearchService interface {
	AdvancedSearch(ctx context.Context, f domain.FilterCriteria, p *domain.Personalization) (*domain.SearchResult, error)
	GetSimilarLocations(ctx context.Context, locationID string, limit int) ([]domain.Location, error)
	GetSmartRecommendations(ctx context.Context, p *domain.Personalization, at time.Time, limit int) ([]domain.Recommendation, error)
	GetTrendingData() *domain.TrendingSnapshot
	GetSearchAnalytics() domain.SearchAnalytics
}

type SyncGateway interface {
	SyncFromTripAdvisor(ctx context.Context, internalID, externalID string) domain.PlatformSyncResult
	SyncFromGooglePlaces(ctx context.Context, internalID, externalID string) domain.PlatformSyncResult
	BulkSync(ctx context.Context, items []domain.BulkSyncItem) domain.BulkSyncReport
	HealthCheck(ctx context.Context) domain.HealthReport
	Statistics(ctx context.Context) domain.SyncStatistics
	Snapshot(ctx context.Context, internalID string, p domain.Platform) (domain.PlatformData, error)
}

// maxBulkItems bounds one synchronous bulk request; larger jobs go through cmd/syncer.
const maxBulkItems = 50

type Handlers struct {
	Search SearchService
	Sync   SyncGateway
	Now    func() time.Time
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	if h.Now == nil {
		h.Now = time.Now
	}
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Get("/search", h.searchQuery)
		r.Post("/search", h.searchBody)
		r.Get("/search/analytics", h.analytics)
		r.Get("/trending", h.trending)
		r.Get("/locations/{id}/similar", h.similar)
		r.Post("/recommendations", h.recommendations)

		r.Route("/sync", func(r chi.Router) {
			r.Post("/tripadvisor/{id}", h.syncOne(domain.PlatformTripAdvisor))
			r.Post("/google/{id}", h.syncOne(domain.PlatformGooglePlaces))
			r.Get("/snapshots/{platform}/{id}", h.snapshot)
			r.Post("/bulk", h.bulk)
			r.Get("/health", h.health)
			r.Get("/stats", h.stats)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", strings.Join(ve.Problems, "; "))
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "location not found")
	case errors.Is(err, app.ErrNoRepository):
		writeProblem(w, http.StatusNotImplemented, "Not Implemented", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeProblem(w, http.StatusGatewayTimeout, "Gateway Timeout", "upstream did not answer in time")
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", "location store unavailable")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

// writeCached answers 304 when the client already holds this representation.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

// selectLang takes the primary tag of Accept-Language.
func selectLang(al string) string {
	tag := strings.TrimSpace(strings.SplitN(strings.SplitN(al, ",", 2)[0], ";", 2)[0])
	if i := strings.IndexByte(tag, '-'); i > 0 {
		tag = tag[:i]
	}
	if tag == "" || tag == "*" {
		return "en"
	}
	return strings.ToLower(tag)
}

// ---- search ----

type searchRequest struct {
	Filters         domain.FilterCriteria   `json:"filters"`
	Personalization *domain.Personalization `json:"personalization,omitempty"`
}

func (h *Handlers) searchQuery(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", err.Error())
		return
	}
	if f.Language == "" {
		f.Language = selectLang(r.Header.Get("Accept-Language"))
	}
	h.runSearch(w, r, f, nil)
}

func (h *Handlers) searchBody(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Filters.Language == "" {
		req.Filters.Language = selectLang(r.Header.Get("Accept-Language"))
	}
	h.runSearch(w, r, req.Filters, req.Personalization)
}

func (h *Handlers) runSearch(w http.ResponseWriter, r *http.Request, f domain.FilterCriteria, p *domain.Personalization) {
	start := time.Now()
	res, err := h.Search.AdvancedSearch(r.Context(), f, p)
	if err != nil {
		writeError(w, err)
		return
	}
	sortKey := string(f.Sort)
	if sortKey == "" {
		sortKey = string(domain.SortRelevance)
	}
	observability.ObserveSearch(sortKey, time.Since(start))
	writeJSON(w, http.StatusOK, res)
}

func parseFilters(q url.Values) (domain.FilterCriteria, error) {
	var (
		f    domain.FilterCriteria
		errs []string
	)
	float := func(k string) *float64 {
		s := q.Get(k)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, k+" must be a number")
			return nil
		}
		return &v
	}
	integer := func(k string) *int {
		s := q.Get(k)
		if s == "" {
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, k+" must be an integer")
			return nil
		}
		return &v
	}
	list := func(k string) []string {
		var out []string
		for _, raw := range q[k] {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}

	f.Query = q.Get("q")
	f.Language = q.Get("lang")
	f.CategoryIDs = list("category")
	f.Features = list("features")
	f.VerifiedOnly = q.Get("verified") == "true"
	f.ClaimedOnly = q.Get("claimed") == "true"
	f.OpenNow = q.Get("open_now") == "true"
	f.Sort = domain.SortKey(q.Get("sort"))
	f.Order = domain.SortOrder(q.Get("order"))

	lat, lon, radius := float("lat"), float("lon"), float("radius_km")
	if (lat == nil) != (lon == nil) {
		errs = append(errs, "lat and lon go together")
	}
	if city, region := q.Get("city"), q.Get("region"); (lat != nil && lon != nil) || city != "" || region != "" {
		f.Geo = &domain.GeoFilter{CityID: city, Region: region}
		if lat != nil && lon != nil {
			f.Geo.Center = &domain.GeoPoint{Lat: *lat, Lon: *lon}
		}
		if radius != nil {
			f.Geo.RadiusKm = *radius
		}
	}
	if lo, hi := float("min_rating"), float("max_rating"); lo != nil || hi != nil {
		f.Rating = &domain.FloatRange{Min: lo, Max: hi}
	}
	if lo, hi := integer("min_price"), integer("max_price"); lo != nil || hi != nil {
		f.Price = &domain.IntRange{Min: lo, Max: hi}
	}
	if n := integer("min_reviews"); n != nil {
		f.MinReviews = *n
	}
	if n := integer("page"); n != nil {
		f.Page = *n
	}
	if n := integer("limit"); n != nil {
		f.Limit = *n
	}

	if len(errs) > 0 {
		return f, errors.New(strings.Join(errs, "; "))
	}
	return f, nil
}

func (h *Handlers) similar(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > domain.MaxPageLimit {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", fmt.Sprintf("limit must be an integer between 1 and %d", domain.MaxPageLimit))
			return
		}
		limit = l
	}
	out, err := h.Search.GetSimilarLocations(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

type recommendationsRequest struct {
	Personalization domain.Personalization `json:"personalization"`
	At              *time.Time             `json:"at,omitempty"`
	Limit           int                    `json:"limit,omitempty"`
}

func (h *Handlers) recommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	at := h.Now()
	if req.At != nil {
		at = *req.At
	}
	out, err := h.Search.GetSmartRecommendations(r.Context(), &req.Personalization, at, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) trending(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Search.GetTrendingData())
}

func (h *Handlers) analytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Search.GetSearchAnalytics())
}

// ---- sync ----

type syncRequest struct {
	ExternalID string `json:"external_id"`
}

func (h *Handlers) syncOne(p domain.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req syncRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ExternalID) == "" {
			writeProblem(w, http.StatusBadRequest, "Invalid Body", "external_id is required")
			return
		}
		id := chi.URLParam(r, "id")
		var res domain.PlatformSyncResult
		if p == domain.PlatformTripAdvisor {
			res = h.Sync.SyncFromTripAdvisor(r.Context(), id, req.ExternalID)
		} else {
			res = h.Sync.SyncFromGooglePlaces(r.Context(), id, req.ExternalID)
		}
		status := http.StatusOK
		if !res.Success {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, res)
	}
}

type bulkRequest struct {
	Items []domain.BulkSyncItem `json:"items"`
}

func (h *Handlers) bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 || len(req.Items) > maxBulkItems {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", fmt.Sprintf("items must hold 1 to %d locations", maxBulkItems))
		return
	}
	writeJSON(w, http.StatusOK, h.Sync.BulkSync(r.Context(), req.Items))
}

func (h *Handlers) snapshot(w http.ResponseWriter, r *http.Request) {
	var p domain.Platform
	switch chi.URLParam(r, "platform") {
	case "tripadvisor":
		p = domain.PlatformTripAdvisor
	case "google", string(domain.PlatformGooglePlaces):
		p = domain.PlatformGooglePlaces
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown platform")
		return
	}
	d, err := h.Sync.Snapshot(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, d)
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	rep := h.Sync.HealthCheck(r.Context())
	status := http.StatusOK
	if !rep.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sync.Statistics(r.Context()))
}
