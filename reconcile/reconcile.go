// Package reconcile merges one run's observations into a persisted dataset.
//
// Each listing's reconciliation is independent of the others, so the final
// dataset does not depend on processing order. A record is never deleted:
// disappearance becomes status "removed" with fields and history intact,
// and a re-observed removed record resumes tracking with its original
// first_seen.
package reconcile

import (
	"time"

	"carwatch/identity"
	"carwatch/models"
)

// Run owns a dataset for the duration of one reconciliation run and
// carries the run-scoped state: the set of identity keys observed so far
// and the transition counters.
type Run struct {
	ds        *models.Dataset
	now       func() time.Time
	seen      map[string]bool
	touched   map[string]bool
	summary   models.RunSummary
	finalized bool
}

// Result describes what Observe did with one observation.
type Result struct {
	ItemID     string
	Transition models.Status
	Duplicate  bool // same identity already observed this run; ignored
	Changes    []models.FieldChange
}

func NewRun(ds *models.Dataset) *Run {
	return &Run{
		ds:      ds,
		now:     time.Now,
		seen:    make(map[string]bool),
		touched: make(map[string]bool),
	}
}

// SetClock replaces the timestamp source, for tests.
func (r *Run) SetClock(now func() time.Time) {
	r.now = now
}

// Observe merges one raw listing into the dataset. An unparseable identity
// returns the error for the caller to log and skip; it never mutates the
// dataset. A duplicate identity within the same run is ignored, first
// observation wins.
func (r *Run) Observe(raw *models.RawListing) (*Result, error) {
	key, err := identity.Key(raw)
	if err != nil {
		return nil, err
	}

	if r.seen[key] {
		return &Result{ItemID: key, Duplicate: true}, nil
	}
	r.seen[key] = true
	r.touched[key] = true

	hash := identity.ContentHash(raw)
	existing := r.ds.Get(key)

	if existing == nil {
		l := newListing(key, raw)
		l.Status = models.StatusNew
		l.ContentHash = hash
		now := r.now()
		l.FirstSeen = now
		l.LastUpdate = now
		if err := r.ds.Add(l); err != nil {
			return nil, err
		}
		r.summary.New++
		return &Result{ItemID: key, Transition: models.StatusNew}, nil
	}

	if existing.ContentHash == hash {
		// Unchanged. Covers revival after removal too: tracking resumes
		// as if uninterrupted, first_seen and history untouched.
		existing.Status = models.StatusActive
		existing.RemovedAt = nil
		r.summary.Active++
		return &Result{ItemID: key, Transition: models.StatusActive}, nil
	}

	now := r.now()
	changes := diffFields(existing, raw, now)
	existing.ChangeHistory = append(existing.ChangeHistory, changes...)
	applyFields(existing, raw)
	existing.Status = models.StatusUpdated
	existing.ContentHash = hash
	existing.LastUpdate = now
	existing.UpdateCount++
	existing.RemovedAt = nil
	r.summary.Updated++
	return &Result{ItemID: key, Transition: models.StatusUpdated, Changes: changes}, nil
}

// CountFiltered records one listing rejected by the filter before it
// reached reconciliation.
func (r *Run) CountFiltered() {
	r.summary.Filtered++
}

// Finalize marks every persisted listing not observed this run as removed.
// Already-removed records stay as they are. Safe to call more than once.
func (r *Run) Finalize() {
	if r.finalized {
		return
	}
	r.finalized = true

	now := r.now()
	for _, l := range r.ds.Listings() {
		if r.seen[l.ItemID] || l.Status == models.StatusRemoved {
			continue
		}
		l.Status = models.StatusRemoved
		removedAt := now
		l.RemovedAt = &removedAt
		r.touched[l.ItemID] = true
		r.summary.Removed++
	}
}

// Summary returns the run's transition counts.
func (r *Run) Summary() models.RunSummary {
	return r.summary
}

// Touched returns the identity keys whose status was set this run:
// everything observed plus everything newly marked removed.
func (r *Run) Touched() map[string]bool {
	return r.touched
}

// diffFields produces one history entry per meaningful field whose value
// changed, in canonical field order.
func diffFields(old *models.Listing, raw *models.RawListing, at time.Time) []models.FieldChange {
	oldFields := identity.ListingFields(old)
	newFields := identity.Fields(raw)

	var changes []models.FieldChange
	for i := range oldFields {
		if oldFields[i].Value == newFields[i].Value {
			continue
		}
		changes = append(changes, models.FieldChange{
			Timestamp: at,
			Field:     oldFields[i].Name,
			OldValue:  oldFields[i].Value,
			NewValue:  newFields[i].Value,
		})
	}
	return changes
}

func newListing(key string, raw *models.RawListing) *models.Listing {
	l := &models.Listing{ItemID: key}
	applyFields(l, raw)
	return l
}

// applyFields copies the scraped attributes onto the record, tracking
// block excluded.
func applyFields(l *models.Listing, raw *models.RawListing) {
	l.URL = raw.URL
	l.Title = raw.Title
	l.MarketingName = raw.MarketingName
	l.Price = raw.Price
	l.PriceNumeric = raw.PriceNumeric
	l.Year = raw.Year
	l.Hand = raw.Hand
	l.Mileage = raw.Mileage
	l.Location = raw.Location
	l.Description = raw.Description
	l.HasPhone = raw.HasPhone
	l.IsPrivate = raw.IsPrivate
	l.Images = raw.Images
	l.Specs = raw.Specs
}
