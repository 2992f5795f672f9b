package scraper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func TestParseFeedBasic(t *testing.T) {
	data := loadFixture(t, "feed_basic.html")

	listings, err := ParseFeed(bytes.NewReader(data), "https://www.yad2.co.il/vehicles/cars?manufacturer=21")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings (promo and duplicate skipped), got %d", len(listings))
	}

	first := listings[0]
	if first.URL != "https://www.yad2.co.il/vehicles/item/ab12cd34?component-type=main_feed" {
		t.Fatalf("relative href not resolved: %s", first.URL)
	}
	if first.Title != "יונדאי קונה היברידי" {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if first.PriceNumeric != 89000 || first.Price != "89,000 ₪" {
		t.Fatalf("price not parsed: %q / %d", first.Price, first.PriceNumeric)
	}
	if first.Year != 2021 || first.Hand != 1 {
		t.Fatalf("year/hand not parsed: %d / %d", first.Year, first.Hand)
	}
	if !first.IsPrivate {
		t.Fatal("private tags without agency name should mean private seller")
	}

	second := listings[1]
	if second.URL != "https://www.yad2.co.il/vehicles/item/ef56gh78" {
		t.Fatalf("absolute href changed: %s", second.URL)
	}
	if second.IsPrivate {
		t.Fatal("card with an agency name is a dealer listing")
	}
	if second.Year != 2022 || second.Hand != 2 {
		t.Fatalf("year/hand not parsed: %d / %d", second.Year, second.Hand)
	}

	third := listings[2]
	if third.PriceNumeric != 0 {
		t.Fatalf("price-on-request should parse to 0, got %d", third.PriceNumeric)
	}
	if third.Price != "לא צוין מחיר" {
		t.Fatalf("display price should be kept: %q", third.Price)
	}
	if third.Year != 0 || third.Hand != -1 {
		t.Fatalf("missing year/hand should stay unknown: %d / %d", third.Year, third.Hand)
	}
}

func TestParseFeedEmptyPage(t *testing.T) {
	listings, err := ParseFeed(bytes.NewReader([]byte("<html><body></body></html>")), "https://www.yad2.co.il/vehicles/cars")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("expected no listings, got %d", len(listings))
	}
}

func TestParsePrice(t *testing.T) {
	if got := parsePrice("89,000 ₪"); got != 89000 {
		t.Fatalf("expected 89000, got %d", got)
	}
	if got := parsePrice("לא צוין מחיר"); got != 0 {
		t.Fatalf("expected 0 for no digits, got %d", got)
	}
	if got := parsePrice(""); got != 0 {
		t.Fatalf("expected 0 for empty, got %d", got)
	}
}

func TestPageURL(t *testing.T) {
	if got := pageURL("https://x.test/cars?a=1", 1); got != "https://x.test/cars?a=1" {
		t.Fatalf("page 1 should be unmodified: %s", got)
	}
	if got := pageURL("https://x.test/cars?a=1", 3); got != "https://x.test/cars?a=1&page=3" {
		t.Fatalf("unexpected paged URL %s", got)
	}
	if got := pageURL("https://x.test/cars", 2); got != "https://x.test/cars?page=2" {
		t.Fatalf("unexpected paged URL %s", got)
	}
}

func TestCaptchaURL(t *testing.T) {
	if !captchaURL("https://validate.perfdrive.com/abc?ssa=1") {
		t.Fatal("perfdrive redirect should be detected")
	}
	if !captchaURL("https://www.yad2.co.il/PerimeterX/block") {
		t.Fatal("perimeterx URL should be detected")
	}
	if captchaURL("https://www.yad2.co.il/vehicles/cars") {
		t.Fatal("normal feed URL misdetected as captcha")
	}
}
