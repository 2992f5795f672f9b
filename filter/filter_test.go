package filter

import (
	"testing"

	"carwatch/models"
)

func intPtr(v int) *int { return &v }

func TestMatchEmptySpecAcceptsEverything(t *testing.T) {
	spec := &Spec{}
	ok, reason := spec.Match(&models.RawListing{Title: "anything", Hand: -1})
	if !ok {
		t.Fatalf("empty spec should accept, got reject: %s", reason)
	}
}

func TestMatchTitleMustContainOrSemantics(t *testing.T) {
	spec := &Spec{TitleMustContain: []string{"kona", "קונה"}}

	ok, _ := spec.Match(&models.RawListing{Title: "Hyundai Kona Hybrid 2021"})
	if !ok {
		t.Fatal("one matching keyword should be enough")
	}

	ok, _ = spec.Match(&models.RawListing{Title: "יונדאי קונה היברידי"})
	if !ok {
		t.Fatal("hebrew keyword alone should be enough")
	}

	ok, reason := spec.Match(&models.RawListing{Title: "Hyundai Tucson"})
	if ok {
		t.Fatal("no keyword matched, should reject")
	}
	if reason == "" {
		t.Fatal("rejection should carry a reason")
	}
}

func TestMatchTitleMustNotContain(t *testing.T) {
	spec := &Spec{TitleMustNotContain: []string{"לפירוק", "damaged"}}

	ok, _ := spec.Match(&models.RawListing{Title: "Kia Niro DAMAGED front"})
	if ok {
		t.Fatal("excluded keyword should reject, case-insensitively")
	}

	ok, _ = spec.Match(&models.RawListing{Title: "Kia Niro 2020"})
	if !ok {
		t.Fatal("clean title should pass")
	}
}

func TestMatchPriceBounds(t *testing.T) {
	spec := &Spec{PriceMin: intPtr(50000), PriceMax: intPtr(100000)}

	if ok, _ := spec.Match(&models.RawListing{Title: "a", PriceNumeric: 50000}); !ok {
		t.Fatal("price at minimum should pass (inclusive)")
	}
	if ok, _ := spec.Match(&models.RawListing{Title: "a", PriceNumeric: 100000}); !ok {
		t.Fatal("price at maximum should pass (inclusive)")
	}
	if ok, _ := spec.Match(&models.RawListing{Title: "a", PriceNumeric: 150000}); ok {
		t.Fatal("price above maximum should reject")
	}
	if ok, _ := spec.Match(&models.RawListing{Title: "a", PriceNumeric: 49999}); ok {
		t.Fatal("price below minimum should reject")
	}
}

func TestMatchMissingPriceRejected(t *testing.T) {
	spec := &Spec{PriceMax: intPtr(100000)}
	ok, reason := spec.Match(&models.RawListing{Title: "a", Price: "לא צוין מחיר"})
	if ok {
		t.Fatal("missing numeric price with a price bound should reject")
	}
	if reason == "" {
		t.Fatal("rejection should carry a reason")
	}

	// Without a bound, missing price is fine.
	spec = &Spec{}
	if ok, _ := spec.Match(&models.RawListing{Title: "a"}); !ok {
		t.Fatal("missing price without bounds should pass")
	}
}

func TestMatchYearBounds(t *testing.T) {
	spec := &Spec{YearMin: intPtr(2019), YearMax: intPtr(2023)}

	if ok, _ := spec.Match(&models.RawListing{Title: "a", Year: 2019}); !ok {
		t.Fatal("year at minimum should pass")
	}
	if ok, _ := spec.Match(&models.RawListing{Title: "a", Year: 2018}); ok {
		t.Fatal("year below minimum should reject")
	}
	if ok, _ := spec.Match(&models.RawListing{Title: "a", Year: 2024}); ok {
		t.Fatal("year above maximum should reject")
	}
	if ok, _ := spec.Match(&models.RawListing{Title: "a"}); ok {
		t.Fatal("unknown year with year bound should reject")
	}
}

func TestMatchHandMax(t *testing.T) {
	spec := &Spec{HandMax: intPtr(2)}

	if ok, _ := spec.Match(&models.RawListing{Title: "a", Hand: 2}); !ok {
		t.Fatal("hand at maximum should pass")
	}
	if ok, _ := spec.Match(&models.RawListing{Title: "a", Hand: 0}); !ok {
		t.Fatal("hand 0 (new vehicle) should pass")
	}
	if ok, _ := spec.Match(&models.RawListing{Title: "a", Hand: 3}); ok {
		t.Fatal("hand above maximum should reject")
	}
	if ok, _ := spec.Match(&models.RawListing{Title: "a", Hand: -1}); ok {
		t.Fatal("unknown hand with hand bound should reject")
	}
}

func TestMatchIsPure(t *testing.T) {
	spec := &Spec{TitleMustContain: []string{"kona"}, PriceMax: intPtr(100000)}
	raw := &models.RawListing{Title: "Hyundai Kona", PriceNumeric: 90000}
	first, _ := spec.Match(raw)
	for i := 0; i < 5; i++ {
		got, _ := spec.Match(raw)
		if got != first {
			t.Fatal("Match must return the same result for the same inputs")
		}
	}
}
