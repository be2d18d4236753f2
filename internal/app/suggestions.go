package app

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"travelhub/internal/domain"
)

const (
	maxSuggestions        = 8
	maxHistorySuggestions = 3

	scoreLocation = 0.8
	scoreCategory = 0.7
	scoreFeature  = 0.6
	scoreQuery    = 0.5
)

// commonFeatures are the feature tags offered for autocomplete.
var commonFeatures = []string{
	"wifi", "parking", "outdoor-seating", "wheelchair-accessible", "pet-friendly",
	"family-friendly", "live-music", "breakfast", "coffee", "dinner", "bar",
	"delivery", "takeaway", "reservations", "vegetarian", "sea-view",
}

// Suggest matches query against city names, category names, the feature tags
// and recent searches. Catalog failures only shrink the list.
func (e *Engine) Suggest(ctx context.Context, query, lang string) []domain.Suggestion {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := []domain.Suggestion{}
	if needle == "" {
		return out
	}

	if e.catalog != nil {
		if cities, err := e.catalog.Cities(ctx); err != nil {
			log.Warn().Err(err).Msg("suggest: cities unavailable")
		} else {
			for _, c := range cities {
				if c.Name.Contains(needle) {
					out = append(out, domain.Suggestion{
						Type: domain.SuggestLocation, Text: c.Name.In(lang), Value: c.Slug,
						Score: scoreLocation, Icon: "map-pin",
					})
				}
			}
		}
		if cats, err := e.catalog.Categories(ctx); err != nil {
			log.Warn().Err(err).Msg("suggest: categories unavailable")
		} else {
			for _, c := range cats {
				if c.Name.Contains(needle) {
					icon := c.Icon
					if icon == "" {
						icon = "tag"
					}
					out = append(out, domain.Suggestion{
						Type: domain.SuggestCategory, Text: c.Name.In(lang), Value: c.Slug,
						Score: scoreCategory, Icon: icon,
					})
				}
			}
		}
	}

	for _, f := range commonFeatures {
		if strings.Contains(f, needle) {
			out = append(out, domain.Suggestion{
				Type: domain.SuggestFeature, Text: strings.ReplaceAll(f, "-", " "), Value: f,
				Score: scoreFeature, Icon: "check",
			})
		}
	}

	if e.history != nil {
		for _, q := range e.history.Matching(needle, maxHistorySuggestions) {
			out = append(out, domain.Suggestion{
				Type: domain.SuggestQuery, Text: q, Value: q,
				Score: scoreQuery, Icon: "clock",
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
