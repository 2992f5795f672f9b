// Package filter evaluates a declarative per-search filter spec against a
// raw listing. Match is a pure function of (listing, spec) so reconciliation
// stays deterministic and the predicates are testable in isolation.
package filter

import (
	"fmt"
	"strings"

	"carwatch/models"
)

// Spec is the filter block of a search config.
//
// TitleMustContain uses OR semantics: the listing passes if its title
// contains at least one keyword (keywords are typically alternative
// spellings of the same model name). TitleMustNotContain rejects on any
// match. Bounds are inclusive. A price bound with no parsed numeric price
// rejects the listing, and likewise for year/hand bounds with unknown
// values: "on request" ads are what the bounds exist to exclude.
type Spec struct {
	TitleMustContain    []string `yaml:"title_must_contain"`
	TitleMustNotContain []string `yaml:"title_must_not_contain"`
	PriceMin            *int     `yaml:"price_min"`
	PriceMax            *int     `yaml:"price_max"`
	YearMin             *int     `yaml:"year_min"`
	YearMax             *int     `yaml:"year_max"`
	HandMax             *int     `yaml:"hand_max"`
}

// Match reports whether the listing passes the spec, with a short reason
// when it does not. Keyword matching is case-insensitive.
func (s *Spec) Match(raw *models.RawListing) (bool, string) {
	title := strings.ToLower(raw.Title)

	if len(s.TitleMustContain) > 0 {
		found := false
		for _, kw := range s.TitleMustContain {
			if strings.Contains(title, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false, fmt.Sprintf("title missing required keywords (%s)", strings.Join(s.TitleMustContain, ", "))
		}
	}

	for _, kw := range s.TitleMustNotContain {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return false, fmt.Sprintf("title contains excluded keyword %q", kw)
		}
	}

	if s.PriceMin != nil || s.PriceMax != nil {
		if raw.PriceNumeric <= 0 {
			return false, "price bound set but listing has no numeric price"
		}
		if s.PriceMin != nil && raw.PriceNumeric < *s.PriceMin {
			return false, fmt.Sprintf("price %d below minimum %d", raw.PriceNumeric, *s.PriceMin)
		}
		if s.PriceMax != nil && raw.PriceNumeric > *s.PriceMax {
			return false, fmt.Sprintf("price %d above maximum %d", raw.PriceNumeric, *s.PriceMax)
		}
	}

	if s.YearMin != nil || s.YearMax != nil {
		if raw.Year <= 0 {
			return false, "year bound set but listing year unknown"
		}
		if s.YearMin != nil && raw.Year < *s.YearMin {
			return false, fmt.Sprintf("year %d below minimum %d", raw.Year, *s.YearMin)
		}
		if s.YearMax != nil && raw.Year > *s.YearMax {
			return false, fmt.Sprintf("year %d above maximum %d", raw.Year, *s.YearMax)
		}
	}

	if s.HandMax != nil {
		if raw.Hand < 0 {
			return false, "hand bound set but owner count unknown"
		}
		if raw.Hand > *s.HandMax {
			return false, fmt.Sprintf("hand %d above maximum %d", raw.Hand, *s.HandMax)
		}
	}

	return true, ""
}
