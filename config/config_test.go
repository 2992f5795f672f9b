package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSearchYAML(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSearchConfigs(t *testing.T) {
	dir := t.TempDir()
	writeSearchYAML(t, dir, "kona.yaml", `
id: kona
name: Hyundai Kona Hybrid
url: https://www.yad2.co.il/vehicles/cars?manufacturer=21&model=10338
handler: browser
max_pages: 3
filters:
  title_must_contain:
    - kona
    - קונה
  price_max: 100000
  year_min: 2020
  hand_max: 2
`)
	writeSearchYAML(t, dir, "notes.txt", "not a yaml file")

	cfg := &Config{Searches: make(map[string]*SearchConfig)}
	if err := cfg.loadSearchConfigs(dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Searches) != 1 {
		t.Fatalf("expected 1 search, got %d", len(cfg.Searches))
	}
	s := cfg.Searches["kona"]
	if s == nil {
		t.Fatal("search kona not loaded")
	}
	if s.Handler != "browser" || s.MaxPages != 3 {
		t.Fatalf("unexpected search config: %+v", s)
	}
	if len(s.Filters.TitleMustContain) != 2 {
		t.Fatalf("filters not parsed: %+v", s.Filters)
	}
	if s.Filters.PriceMax == nil || *s.Filters.PriceMax != 100000 {
		t.Fatal("price_max not parsed")
	}
	if s.Filters.HandMax == nil || *s.Filters.HandMax != 2 {
		t.Fatal("hand_max not parsed")
	}
}

func TestLoadSearchConfigsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeSearchYAML(t, dir, "minimal.yaml", `
id: minimal
url: https://www.yad2.co.il/vehicles/cars
`)

	cfg := &Config{Searches: make(map[string]*SearchConfig)}
	if err := cfg.loadSearchConfigs(dir); err != nil {
		t.Fatal(err)
	}
	s := cfg.Searches["minimal"]
	if s.Handler != "http" {
		t.Fatalf("expected default handler http, got %s", s.Handler)
	}
	if s.MaxPages != 5 {
		t.Fatalf("expected default max_pages 5, got %d", s.MaxPages)
	}
}

func TestLoadSearchConfigsMissingID(t *testing.T) {
	dir := t.TempDir()
	writeSearchYAML(t, dir, "bad.yaml", "url: https://example.test\n")

	cfg := &Config{Searches: make(map[string]*SearchConfig)}
	if err := cfg.loadSearchConfigs(dir); err == nil {
		t.Fatal("expected error for config without id")
	}
}

func TestSnapshotPath(t *testing.T) {
	s := &SearchConfig{ID: "kona"}
	if got := s.SnapshotPath("snapshots"); got != filepath.Join("snapshots", "kona.json") {
		t.Fatalf("unexpected default path %s", got)
	}

	s.Output = "data/custom.json"
	if got := s.SnapshotPath("snapshots"); got != "data/custom.json" {
		t.Fatalf("explicit output should win, got %s", got)
	}
}

func TestLoadMissingDirIsFine(t *testing.T) {
	cfg := &Config{Searches: make(map[string]*SearchConfig)}
	if err := cfg.loadSearchConfigs(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("missing config dir should not error: %v", err)
	}
}
