// Package snapshot persists one search's dataset as a JSON file and loads
// it back. Writes are atomic (temp file + rename) so an interrupted run
// leaves the previous snapshot intact.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"carwatch/models"
)

// CorruptError means the snapshot file exists but cannot be decoded into a
// valid dataset. Callers abort the search rather than overwrite history,
// unless an explicit fresh-start flag says otherwise.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt snapshot %s: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// File is the on-disk envelope around the listings.
type File struct {
	SearchName    string            `json:"search_name,omitempty"`
	SearchURL     string            `json:"search_url,omitempty"`
	LastScraped   time.Time         `json:"last_scraped"`
	TotalListings int               `json:"total_listings"`
	Listings      []*models.Listing `json:"listings"`

	// Older snapshots used "cars" for the listing array.
	LegacyCars []*models.Listing `json:"cars,omitempty"`
}

// Load reads the snapshot at path. A missing file is a normal first run
// and yields an empty dataset. A file that cannot be decoded, or that
// holds two records with the same item_id, returns a *CorruptError.
func Load(path string) (*models.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewDataset(), nil
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	listings, err := decode(data)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	ds := models.NewDataset()
	for _, l := range listings {
		if err := ds.Add(l); err != nil {
			return nil, &CorruptError{Path: path, Err: err}
		}
	}
	return ds, nil
}

// decode accepts the current envelope, the legacy "cars" key and the very
// first format, a bare listing array.
func decode(data []byte) ([]*models.Listing, error) {
	var f File
	if err := json.Unmarshal(data, &f); err == nil {
		if f.Listings != nil {
			return f.Listings, nil
		}
		if f.LegacyCars != nil {
			return f.LegacyCars, nil
		}
	}

	var bare []*models.Listing
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	return nil, errors.New("not a recognized snapshot format")
}

// Save writes the dataset to path atomically: the envelope is marshalled
// to a temp file in the same directory and renamed over the target, so a
// crash mid-write never leaves a truncated snapshot behind.
func Save(path, searchName, searchURL string, ds *models.Dataset) error {
	f := File{
		SearchName:    searchName,
		SearchURL:     searchURL,
		LastScraped:   time.Now(),
		TotalListings: ds.Len(),
		Listings:      ds.Listings(),
	}
	if f.Listings == nil {
		f.Listings = []*models.Listing{}
	}

	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing snapshot %s: %w", path, err)
	}
	return nil
}
