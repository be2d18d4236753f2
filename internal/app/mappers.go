package app

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"travelhub/internal/domain"
)

/********** alias registries **********/

// Both platforms are read through one registry. Paths are dot separated and
// tried in order.
var locationAliases = map[string][]string{
	"external_id": {"location_id", "place_id", "id"},
	"name":        {"name"},
	"address":     {"formatted_address", "address_obj.address_string", "vicinity", "address"},
	"phone":       {"international_phone_number", "formatted_phone_number", "phone"},
	"website":     {"website"},
	"web_url":     {"web_url", "url"},
	"lat":         {"latitude", "geometry.location.lat", "lat"},
	"lon":         {"longitude", "geometry.location.lng", "lng", "lon"},
	"rating":      {"rating"},
	"reviews":     {"num_reviews", "user_ratings_total", "review_count"},
	"price":       {"price_level", "price"},
	"hours":       {"hours.weekday_text", "opening_hours.weekday_text", "current_opening_hours.weekday_text"},
}

var reviewAliases = map[string][]string{
	"author":    {"author_name", "user.username", "author", "username"},
	"title":     {"title", "review_title"},
	"text":      {"text", "review_text", "comment"},
	"lang":      {"lang", "language", "original_language"},
	"source_id": {"id", "review_id"},
	"rating":    {"rating", "rating.value"},
	"published": {"published_date", "travel_date", "time", "publish_time"},
}

var photoAliases = map[string][]string{
	"source_id": {"id", "photo_reference"},
	"url":       {"url", "images.original.url", "images.large.url", "images.medium.url"},
	"caption":   {"caption"},
	"width":     {"width", "images.original.width", "images.large.width"},
	"height":    {"height", "images.original.height", "images.large.height"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns a string, or a number rendered as one, at path.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func firstAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// getFloatFlexible: number from several paths (float64/int/string like "4,5").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func intOr0(m map[string]any, paths ...string) int {
	if f := getFloatFlexible(m, paths...); f != nil {
		return int(*f)
	}
	return 0
}

// stringsAt accepts []any of strings or of {name} objects.
func stringsAt(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, it := range raw {
			switch t := it.(type) {
			case string:
				if t != "" {
					out = append(out, t)
				}
			case map[string]any:
				if n, ok := t["name"].(string); ok && n != "" {
					out = append(out, n)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// priceLevel reads 0..4 numbers and "$$"-style strings ("$$ - $$$" takes the upper bound).
func priceLevel(m map[string]any) int {
	for _, p := range locationAliases["price"] {
		switch v := lookupAny(m, p).(type) {
		case float64:
			return clampTier(int(v))
		case string:
			parts := strings.Split(v, "-")
			last := strings.TrimSpace(parts[len(parts)-1])
			if n := strings.Count(last, "$"); n > 0 {
				return clampTier(n)
			}
			if n, err := strconv.Atoi(last); err == nil {
				return clampTier(n)
			}
		}
	}
	return 0
}

func clampTier(n int) int {
	switch {
	case n <= 0:
		return 0
	case n > 4:
		return 4
	}
	return n
}

// parseWhen reads RFC 3339 strings, plain dates and unix seconds.
func parseWhen(v any) *time.Time {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return nil
		}
		ts := time.Unix(int64(t), 0).UTC()
		return &ts
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02"} {
			if ts, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				ts = ts.UTC()
				return &ts
			}
		}
	}
	return nil
}

func rawJSON(v any, where string) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("context", where).Msg("marshal payload failed")
		return nil
	}
	return b
}

/********** location mapper **********/

func mapPlatformLocation(p domain.Platform, externalID string, m map[string]any) domain.PlatformLocation {
	loc := domain.PlatformLocation{
		Platform:     p,
		ExternalID:   firstAlias(m, locationAliases, "external_id"),
		Name:         firstAlias(m, locationAliases, "name"),
		Address:      firstAlias(m, locationAliases, "address"),
		Rating:       getFloatFlexible(m, locationAliases["rating"]...),
		ReviewCount:  intOr0(m, locationAliases["reviews"]...),
		PriceLevel:   priceLevel(m),
		Phone:        firstAlias(m, locationAliases, "phone"),
		Website:      firstAlias(m, locationAliases, "website"),
		WebURL:       firstAlias(m, locationAliases, "web_url"),
		Categories:   mapCategories(m),
		OpeningHours: stringsAt(m, locationAliases["hours"]...),
		RawJSON:      rawJSON(m, "mapPlatformLocation"),
	}
	if loc.ExternalID == "" {
		loc.ExternalID = externalID
	}
	lat := getFloatFlexible(m, locationAliases["lat"]...)
	lon := getFloatFlexible(m, locationAliases["lon"]...)
	if lat != nil && lon != nil {
		loc.Coords = &domain.GeoPoint{Lat: *lat, Lon: *lon}
	}
	return loc
}

// mapCategories merges the TripAdvisor category/subcategory objects with
// Google's types list.
func mapCategories(m map[string]any) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[strings.ToLower(s)]; dup {
			return
		}
		seen[strings.ToLower(s)] = struct{}{}
		out = append(out, s)
	}
	add(lookupStr(m, "category.name"))
	for _, s := range stringsAt(m, "subcategory", "types") {
		add(s)
	}
	return out
}

/********** reviews mapper **********/

func mapReviews(p domain.Platform, locationID string, in []map[string]any) []domain.Review {
	out := make([]domain.Review, 0, len(in))
	for _, r := range in {
		rv := domain.Review{
			Platform:   p,
			LocationID: locationID,
			Author:     ptrStr(firstAlias(r, reviewAliases, "author")),
			Title:      ptrStr(firstAlias(r, reviewAliases, "title")),
			Text:       ptrStr(firstAlias(r, reviewAliases, "text")),
			Lang:       ptrStr(firstAlias(r, reviewAliases, "lang")),
			Rating:     getFloatFlexible(r, reviewAliases["rating"]...),
			RawJSON:    rawJSON(r, "mapReviews"),
		}
		for _, path := range reviewAliases["published"] {
			if ts := parseWhen(lookupAny(r, path)); ts != nil {
				rv.PublishedAt = ts
				break
			}
		}

		// Google reviews carry no id; synthesize a stable one from the content.
		if id := firstAlias(r, reviewAliases, "source_id"); id != "" {
			rv.SourceID = id
		} else {
			rating := ""
			if rv.Rating != nil {
				rating = fmt.Sprintf("%.3f", *rv.Rating)
			}
			when := ""
			if rv.PublishedAt != nil {
				when = rv.PublishedAt.Format(time.RFC3339)
			}
			sig := strings.Join([]string{deref(rv.Author), deref(rv.Title), deref(rv.Text), deref(rv.Lang), rating, when}, "|")
			sum := sha1.Sum([]byte(sig))
			rv.SourceID = hex.EncodeToString(sum[:])
		}
		out = append(out, rv)
	}
	return out
}

/********** photos mapper **********/

func mapPhotos(p domain.Platform, locationID string, in []map[string]any) []domain.Photo {
	out := make([]domain.Photo, 0, len(in))
	for _, ph := range in {
		u := firstAlias(ph, photoAliases, "url")
		if u == "" {
			continue
		}
		id := firstAlias(ph, photoAliases, "source_id")
		if id == "" {
			sum := sha1.Sum([]byte(u))
			id = hex.EncodeToString(sum[:])
		}
		out = append(out, domain.Photo{
			Platform:   p,
			LocationID: locationID,
			SourceID:   id,
			URL:        u,
			Caption:    ptrStr(firstAlias(ph, photoAliases, "caption")),
			Width:      intOr0(ph, photoAliases["width"]...),
			Height:     intOr0(ph, photoAliases["height"]...),
		})
	}
	return out
}
