package app

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"travelhub/internal/domain"
)

// Relevance weights. Score comparisons drive the default sort, so these are
// part of the observable behavior.
const (
	weightRating       = 0.30
	weightReviews      = 0.20
	bonusVerified      = 0.10
	bonusClaimed       = 0.05
	weightDistance     = 0.15
	weightFeatureMatch = 0.10
	weightPersonal     = 0.20
)

// Personalization budget (max 1).
const (
	personalCategory = 0.4
	personalPrice    = 0.3
	personalFeatures = 0.3
)

const (
	recommendationThreshold = 0.3
	maxRecommendations      = 5
	nearbyKm                = 5.0
	highlyRated             = 4.5
	popularReviews          = 100
	earthRadiusKm           = 6371.0
)

// Haversine returns the great-circle distance in km.
func Haversine(a, b domain.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dlat := (b.Lat - a.Lat) * math.Pi / 180
	dlon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// reviewVolume has diminishing returns and saturates at 999 reviews.
func reviewVolume(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Min(math.Log(float64(n)+1)/math.Log(1000), 1)
}

// passesHardFilters is a conjunction: one failed constraint excludes the location.
func passesHardFilters(loc domain.Location, f domain.FilterCriteria) bool {
	if r := f.Rating; r != nil {
		if r.Min != nil && loc.AverageRating < *r.Min {
			return false
		}
		if r.Max != nil && loc.AverageRating > *r.Max {
			return false
		}
	}
	if p := f.Price; p != nil && (p.Min != nil || p.Max != nil) {
		if loc.PriceRange == 0 {
			return false
		}
		if p.Min != nil && loc.PriceRange < *p.Min {
			return false
		}
		if p.Max != nil && loc.PriceRange > *p.Max {
			return false
		}
	}
	for _, want := range f.Features {
		if !loc.HasFeature(want) {
			return false
		}
	}
	if f.VerifiedOnly && !loc.IsVerified {
		return false
	}
	if f.ClaimedOnly && !loc.IsClaimed {
		return false
	}
	if f.MinReviews > 0 && loc.TotalReviews < f.MinReviews {
		return false
	}
	// no opening-hours data counts as closed
	if f.OpenNow && len(loc.OpeningHours) == 0 {
		return false
	}
	return true
}

// relevanceScore adds the independently capped terms and clamps the total.
// The distance is returned when a geo center was supplied.
func relevanceScore(loc domain.Location, f domain.FilterCriteria, p *domain.Personalization) (float64, *float64) {
	score := clamp01(loc.AverageRating/5) * weightRating
	score += reviewVolume(loc.TotalReviews) * weightReviews
	if loc.IsVerified {
		score += bonusVerified
	}
	if loc.IsClaimed {
		score += bonusClaimed
	}

	var dist *float64
	if f.Geo != nil && f.Geo.Center != nil && loc.Coords != nil {
		d := Haversine(*f.Geo.Center, *loc.Coords)
		dist = &d
		score -= math.Min(d/math.Max(f.Geo.RadiusKm, 1), 1) * weightDistance
	}

	if len(f.Features) > 0 {
		matched := 0
		for _, want := range f.Features {
			if loc.HasFeature(want) {
				matched++
			}
		}
		score += float64(matched) / float64(len(f.Features)) * weightFeatureMatch
	}

	if p != nil {
		score += personalizationScore(loc, p) * weightPersonal
	}
	return clamp01(score), dist
}

// personalizationScore is 0 without a profile.
func personalizationScore(loc domain.Location, p *domain.Personalization) float64 {
	if p == nil {
		return 0
	}
	score := 0.0
	if matchesCategory(loc, p.PreferredCategories) {
		score += personalCategory
	}
	if p.PriceRange != 0 && p.PriceRange == loc.PriceRange {
		score += personalPrice
	}
	if len(p.FeaturePreferences) > 0 {
		matched := 0
		for _, f := range p.FeaturePreferences {
			if loc.HasFeature(f) {
				matched++
			}
		}
		score += float64(matched) / float64(len(p.FeaturePreferences)) * personalFeatures
	}
	return clamp01(score)
}

func matchesCategory(loc domain.Location, preferred []string) bool {
	for _, c := range preferred {
		if strings.EqualFold(c, loc.CategoryID) {
			return true
		}
		if loc.Category != nil && strings.EqualFold(c, loc.Category.Slug) {
			return true
		}
	}
	return false
}

// recommend annotates every candidate and returns all of them above the
// threshold, best first. Callers cap the list.
func recommend(candidates []domain.Location, p *domain.Personalization) []domain.Recommendation {
	if p == nil {
		return []domain.Recommendation{}
	}
	recs := make([]domain.Recommendation, 0)
	for i := range candidates {
		score := personalizationScore(candidates[i], p)
		candidates[i].RecommendationScore = score
		if score <= recommendationThreshold {
			continue
		}
		var dist *float64
		if p.CurrentLocation != nil && candidates[i].Coords != nil {
			d := Haversine(*p.CurrentLocation, *candidates[i].Coords)
			dist = &d
		}
		recs = append(recs, domain.Recommendation{
			Location: candidates[i],
			Score:    score,
			Reasons:  reasonsFor(candidates[i], p, dist),
			Distance: dist,
		})
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	return recs
}

func reasonsFor(loc domain.Location, p *domain.Personalization, dist *float64) []domain.Reason {
	var out []domain.Reason
	if loc.AverageRating >= highlyRated {
		out = append(out, domain.Reason{
			Type:   domain.ReasonRating,
			Text:   fmt.Sprintf("Highly rated (%.1f)", loc.AverageRating),
			Weight: clamp01(loc.AverageRating / 5),
		})
	}
	if loc.TotalReviews >= popularReviews {
		out = append(out, domain.Reason{
			Type:   domain.ReasonPopularity,
			Text:   fmt.Sprintf("Popular with %d reviews", loc.TotalReviews),
			Weight: reviewVolume(loc.TotalReviews),
		})
	}
	if matchesCategory(loc, p.PreferredCategories) {
		out = append(out, domain.Reason{Type: domain.ReasonPreference, Text: "Matches your interests", Weight: 0.8})
	}
	if dist != nil && *dist <= nearbyKm {
		out = append(out, domain.Reason{
			Type:   domain.ReasonProximity,
			Text:   fmt.Sprintf("Close to you (%.1f km)", *dist),
			Weight: clamp01(1 - *dist/nearbyKm),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// sortLocations is stable so equal keys keep the store's order.
func sortLocations(locs []domain.Location, key domain.SortKey, order domain.SortOrder) {
	asc := order == domain.OrderAsc
	var less func(a, b domain.Location) bool
	switch key {
	case domain.SortRating:
		less = func(a, b domain.Location) bool { return a.AverageRating < b.AverageRating }
	case domain.SortReviews:
		less = func(a, b domain.Location) bool { return a.TotalReviews < b.TotalReviews }
	case domain.SortPrice:
		less = func(a, b domain.Location) bool { return a.PriceRange < b.PriceRange }
	case domain.SortRecent:
		less = func(a, b domain.Location) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		less = func(a, b domain.Location) bool { return a.RelevanceScore < b.RelevanceScore }
	}
	sort.SliceStable(locs, func(i, j int) bool {
		if asc {
			return less(locs[i], locs[j])
		}
		return less(locs[j], locs[i])
	})
}
