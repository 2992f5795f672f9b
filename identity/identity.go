// Package identity derives the stable identity key and content hash for a
// scraped listing. The key matches observations of the same ad across runs;
// the hash detects meaningful change without field-by-field comparison.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"carwatch/models"
)

// Yad2-style ad URLs carry the ad ID in the /item/<id> path segment.
var itemIDRegex = regexp.MustCompile(`/item/([a-zA-Z0-9]+)`)

var multiSpaceRegex = regexp.MustCompile(`\s+`)

// KeyError means the listing URL does not carry a recognizable ad ID.
// Callers skip the listing and log; a bad URL never aborts a run.
type KeyError struct {
	URL string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("no item id in listing url %q", e.URL)
}

// Key extracts the stable identity key from the listing URL.
func Key(raw *models.RawListing) (string, error) {
	m := itemIDRegex.FindStringSubmatch(raw.URL)
	if m == nil {
		return "", &KeyError{URL: raw.URL}
	}
	return m[1], nil
}

// Field is one meaningful (hashed and change-tracked) attribute.
type Field struct {
	Name  string
	Value string
}

// Fields returns the meaningful field set of an observation in canonical
// order. This is the explicit list of attributes whose change counts as an
// update; scrape timestamps and presentation-only fields stay out.
func Fields(raw *models.RawListing) []Field {
	return []Field{
		{"title", normalize(raw.Title)},
		{"price", priceValue(raw.PriceNumeric, raw.Price)},
		{"mileage", normalize(raw.Mileage)},
		{"description", normalize(raw.Description)},
		{"location", normalize(raw.Location)},
	}
}

// ListingFields returns the same canonical field set for a persisted
// record, used to diff a stored listing against a fresh observation.
func ListingFields(l *models.Listing) []Field {
	return []Field{
		{"title", normalize(l.Title)},
		{"price", priceValue(l.PriceNumeric, l.Price)},
		{"mileage", normalize(l.Mileage)},
		{"description", normalize(l.Description)},
		{"location", normalize(l.Location)},
	}
}

// ContentHash digests the meaningful fields. Identical field values yield
// an identical hash regardless of incidental whitespace.
func ContentHash(raw *models.RawListing) string {
	var b strings.Builder
	for i, f := range Fields(raw) {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func priceValue(numeric int, display string) string {
	if numeric > 0 {
		return strconv.Itoa(numeric)
	}
	return normalize(display)
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	return multiSpaceRegex.ReplaceAllString(s, " ")
}
