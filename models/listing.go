package models

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusNew     Status = "new"
	StatusUpdated Status = "updated"
	StatusActive  Status = "active"
	StatusRemoved Status = "removed"
)

// RawListing is one observation of an ad as it came off the page.
// Zero values mean "not scraped": PriceNumeric 0, Year 0 and Hand -1
// are all treated as unknown downstream.
type RawListing struct {
	URL           string            `json:"url"`
	Title         string            `json:"title"`
	MarketingName string            `json:"marketing_name,omitempty"`
	Price         string            `json:"price,omitempty"` // display string, e.g. "89,000 ₪"
	PriceNumeric  int               `json:"price_numeric,omitempty"`
	Year          int               `json:"year,omitempty"`
	Hand          int               `json:"hand,omitempty"` // prior-owner count, -1 when unknown
	Mileage       string            `json:"mileage,omitempty"`
	Location      string            `json:"location,omitempty"`
	Description   string            `json:"description,omitempty"`
	HasPhone      bool              `json:"has_phone_number,omitempty"`
	IsPrivate     bool              `json:"is_private,omitempty"`
	Images        []string          `json:"images,omitempty"`
	Specs         map[string]string `json:"specs,omitempty"`
	ScrapedAt     time.Time         `json:"scraped_at,omitempty"`
}

// FieldChange is one appended history entry: a single field's old and new
// value at the moment an update was observed.
type FieldChange struct {
	Timestamp time.Time `json:"timestamp"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
}

// Listing is the persisted record for one ad. The tracking block
// (ItemID, ContentHash, Status, FirstSeen, LastUpdate, UpdateCount,
// ChangeHistory) is universal; the scraped fields mirror RawListing and
// Specs stays open for site-specific attributes.
//
// JSON field names are the on-disk snapshot format and must stay stable.
type Listing struct {
	ItemID        string        `json:"item_id"`
	Status        Status        `json:"status"`
	ContentHash   string        `json:"content_hash"`
	FirstSeen     time.Time     `json:"first_seen"`
	LastUpdate    time.Time     `json:"last_update"`
	UpdateCount   int           `json:"update_count"`
	RemovedAt     *time.Time    `json:"removed_date,omitempty"`
	ChangeHistory []FieldChange `json:"change_history,omitempty"`

	URL           string            `json:"url"`
	Title         string            `json:"title"`
	MarketingName string            `json:"marketing_name,omitempty"`
	Price         string            `json:"price,omitempty"`
	PriceNumeric  int               `json:"price_numeric,omitempty"`
	Year          int               `json:"year,omitempty"`
	Hand          int               `json:"hand,omitempty"`
	Mileage       string            `json:"mileage,omitempty"`
	Location      string            `json:"location,omitempty"`
	Description   string            `json:"description,omitempty"`
	HasPhone      bool              `json:"has_phone_number,omitempty"`
	IsPrivate     bool              `json:"is_private,omitempty"`
	Images        []string          `json:"images,omitempty"`
	Specs         map[string]string `json:"specs,omitempty"`
}

// Dataset is the full collection for one named search: listings in
// discovery order, at most one per identity key.
type Dataset struct {
	listings []*Listing
	index    map[string]*Listing
}

func NewDataset() *Dataset {
	return &Dataset{index: make(map[string]*Listing)}
}

// Add appends a listing, rejecting duplicate identity keys.
func (d *Dataset) Add(l *Listing) error {
	if l.ItemID == "" {
		return fmt.Errorf("listing has empty item_id")
	}
	if _, ok := d.index[l.ItemID]; ok {
		return fmt.Errorf("duplicate item_id %s", l.ItemID)
	}
	d.listings = append(d.listings, l)
	d.index[l.ItemID] = l
	return nil
}

// Get returns the listing for an identity key, or nil.
func (d *Dataset) Get(itemID string) *Listing {
	return d.index[itemID]
}

func (d *Dataset) Len() int {
	return len(d.listings)
}

// Listings returns the records in insertion order. The slice is shared;
// callers must not reorder it.
func (d *Dataset) Listings() []*Listing {
	return d.listings
}

// RunSummary counts the lifecycle transitions of one reconciliation run.
// Filtered is run-scoped only and never persisted on a record.
type RunSummary struct {
	New      int `json:"new"`
	Updated  int `json:"updated"`
	Active   int `json:"active"`
	Removed  int `json:"removed"`
	Filtered int `json:"filtered"`
}

func (s RunSummary) String() string {
	return fmt.Sprintf("new=%d updated=%d active=%d removed=%d filtered=%d",
		s.New, s.Updated, s.Active, s.Removed, s.Filtered)
}
