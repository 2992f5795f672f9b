package identity

import (
	"errors"
	"testing"

	"carwatch/models"
)

func TestKeyFromItemURL(t *testing.T) {
	raw := &models.RawListing{URL: "https://www.yad2.co.il/vehicles/item/ab12cd34?component-type=main_feed"}
	key, err := Key(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "ab12cd34" {
		t.Fatalf("expected key ab12cd34, got %s", key)
	}
}

func TestKeyRelativeURL(t *testing.T) {
	raw := &models.RawListing{URL: "/vehicles/item/Xy9"}
	key, err := Key(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "Xy9" {
		t.Fatalf("expected key Xy9, got %s", key)
	}
}

func TestKeyMissingID(t *testing.T) {
	raw := &models.RawListing{URL: "https://www.yad2.co.il/vehicles/cars?manufacturer=21"}
	_, err := Key(raw)
	if err == nil {
		t.Fatal("expected error for URL without item id")
	}
	var keyErr *KeyError
	if !errors.As(err, &keyErr) {
		t.Fatalf("expected *KeyError, got %T", err)
	}
	if keyErr.URL != raw.URL {
		t.Fatalf("error should carry the offending URL, got %q", keyErr.URL)
	}
}

func TestContentHashDeterministic(t *testing.T) {
	raw := &models.RawListing{
		Title:        "Hyundai Kona Hybrid",
		PriceNumeric: 89000,
		Mileage:      "42,000",
		Description:  "First owner, serviced",
		Location:     "Tel Aviv",
	}
	if ContentHash(raw) != ContentHash(raw) {
		t.Fatal("hash not deterministic for identical input")
	}
}

func TestContentHashIgnoresWhitespaceAndTimestamps(t *testing.T) {
	a := &models.RawListing{
		Title:        "Hyundai Kona",
		PriceNumeric: 89000,
		Description:  "well kept",
		Location:     "Haifa",
	}
	b := &models.RawListing{
		Title:        "  Hyundai   Kona ",
		PriceNumeric: 89000,
		Description:  "well kept\n",
		Location:     " Haifa",
	}
	b.ScrapedAt = a.ScrapedAt.AddDate(0, 0, 1)
	if ContentHash(a) != ContentHash(b) {
		t.Fatal("hash should ignore whitespace and scrape timestamps")
	}
}

func TestContentHashChangesWithPrice(t *testing.T) {
	a := &models.RawListing{Title: "Kia Niro", PriceNumeric: 89000}
	b := &models.RawListing{Title: "Kia Niro", PriceNumeric: 85000}
	if ContentHash(a) == ContentHash(b) {
		t.Fatal("hash should change when price changes")
	}
}

func TestContentHashIgnoresNonMeaningfulFields(t *testing.T) {
	a := &models.RawListing{Title: "Kia Niro", PriceNumeric: 89000, Images: []string{"a.jpg"}}
	b := &models.RawListing{Title: "Kia Niro", PriceNumeric: 89000, Images: []string{"b.jpg", "c.jpg"}, HasPhone: true}
	if ContentHash(a) != ContentHash(b) {
		t.Fatal("images and phone flag must not affect the hash")
	}
}

func TestFieldsCanonicalOrder(t *testing.T) {
	raw := &models.RawListing{Title: "t", PriceNumeric: 1, Mileage: "m", Description: "d", Location: "l"}
	fields := Fields(raw)
	want := []string{"title", "price", "mileage", "description", "location"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(fields))
	}
	for i, name := range want {
		if fields[i].Name != name {
			t.Fatalf("field %d: expected %s, got %s", i, name, fields[i].Name)
		}
	}
}

func TestListingFieldsMatchRawFields(t *testing.T) {
	raw := &models.RawListing{Title: "Mazda 3", PriceNumeric: 64000, Mileage: "80,000", Description: "d", Location: "Ramat Gan"}
	l := &models.Listing{Title: raw.Title, PriceNumeric: raw.PriceNumeric, Mileage: raw.Mileage, Description: raw.Description, Location: raw.Location}
	rf := Fields(raw)
	lf := ListingFields(l)
	for i := range rf {
		if rf[i] != lf[i] {
			t.Fatalf("field %s mismatch: raw %q vs listing %q", rf[i].Name, rf[i].Value, lf[i].Value)
		}
	}
}

func TestPriceValueFallsBackToDisplayString(t *testing.T) {
	a := &models.RawListing{Title: "x", Price: "לא צוין מחיר"}
	b := &models.RawListing{Title: "x", Price: "89,000 ₪"}
	if ContentHash(a) == ContentHash(b) {
		t.Fatal("display price should be hashed when numeric price is missing")
	}
}
