package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"carwatch/config"
	"carwatch/identity"
	"carwatch/models"
	"carwatch/reconcile"
	"carwatch/snapshot"
	"carwatch/storage"
)

// Orchestrator runs the full per-search cycle: load the snapshot, extract,
// filter, reconcile, save, record. One search failing never stops the
// others.
type Orchestrator struct {
	cfg      *config.Config
	store    *storage.SQLiteStore
	handlers map[string]Handler
	paused   bool

	pgStore *storage.PostgresStore

	// forces a fresh dataset on corrupt snapshots when set, either via
	// the -fresh flag or FRESH_ON_CORRUPT
	freshStart bool
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, client *http.Client) *Orchestrator {
	handlers := make(map[string]Handler)
	for id, search := range cfg.Searches {
		handlers[id] = NewHandler(search, client)
	}

	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		handlers:   handlers,
		freshStart: cfg.FreshOnCorrupt,
	}
}

// SetPostgres enables the optional mirror. Mirror errors are logged and
// never fail a run.
func (o *Orchestrator) SetPostgres(pg *storage.PostgresStore) {
	o.pgStore = pg
}

// SetFreshStart overrides the corrupt-snapshot policy for this process.
func (o *Orchestrator) SetFreshStart(fresh bool) {
	o.freshStart = fresh
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused {
		log.Println("Scraper is paused, skipping run")
		return nil
	}

	for searchID := range o.cfg.Searches {
		if err := o.RunSearch(ctx, searchID); err != nil {
			log.Printf("Error running search %s: %v", searchID, err)
		}
	}

	return nil
}

func (o *Orchestrator) RunSearch(ctx context.Context, searchID string) error {
	search, ok := o.cfg.Searches[searchID]
	if !ok {
		return fmt.Errorf("unknown search: %s", searchID)
	}
	handler, ok := o.handlers[searchID]
	if !ok {
		return fmt.Errorf("no handler for search: %s", searchID)
	}

	snapPath := search.SnapshotPath(o.cfg.SnapshotDir)
	ds, err := snapshot.Load(snapPath)
	if err != nil {
		var corrupt *snapshot.CorruptError
		if errors.As(err, &corrupt) && o.freshStart {
			log.Printf("[%s] snapshot corrupt, starting fresh: %v", searchID, corrupt)
			ds = models.NewDataset()
		} else {
			return fmt.Errorf("loading snapshot: %w", err)
		}
	}

	run := &models.ScrapeRun{
		SearchID:  searchID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s (%d known listings)", search.Name, ds.Len()), searchID)

	rec := reconcile.NewRun(ds)
	changesByID := make(map[string][]models.FieldChange)

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		o.store.UpdateRun(run)

		active, removed := 0, 0
		for _, l := range ds.Listings() {
			if l.Status == models.StatusRemoved {
				removed++
			} else {
				active++
			}
		}
		o.store.UpdateSearchStats(searchID, ds.Len(), active, removed)
	}()

	listings, extractErr := handler.Extract(ctx, search)
	run.ListingsFound = len(listings)
	if extractErr != nil {
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Extraction stopped early: %v", extractErr), searchID)
		run.ErrorsCount++
	}

	for i := range listings {
		raw := &listings[i]

		if ok, reason := search.Filters.Match(raw); !ok {
			rec.CountFiltered()
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Filtered out %s: %s", raw.Title, reason), searchID)
			continue
		}

		result, err := rec.Observe(raw)
		if err != nil {
			var keyErr *identity.KeyError
			if errors.As(err, &keyErr) {
				o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Skipping listing without item id: %s", keyErr.URL), searchID)
				run.ErrorsCount++
				continue
			}
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Reconcile error for %s: %v", raw.URL, err), searchID)
			run.ErrorsCount++
			continue
		}
		if result.Duplicate {
			continue
		}
		if len(result.Changes) > 0 {
			changesByID[result.ItemID] = result.Changes
		}
	}

	// Removal sweep only makes sense against a full observation set. A
	// truncated extraction must not mark everything unseen as removed.
	if extractErr == nil {
		rec.Finalize()
	} else {
		o.log(run.ID, models.LogLevelWarn, "Partial extraction, skipping removal sweep", searchID)
	}

	summary := rec.Summary()
	run.ListingsNew = summary.New
	run.ListingsUpdated = summary.Updated
	run.ListingsRemoved = summary.Removed
	run.ListingsFiltered = summary.Filtered

	// The snapshot is written even after a partial run; it is still a
	// consistent dataset.
	if err := snapshot.Save(snapPath, search.Name, search.URL, ds); err != nil {
		run.Status = models.RunStatusFailed
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Snapshot save failed: %v", err), searchID)
		return err
	}

	o.mirror(ctx, run, searchID, ds, rec.Touched(), changesByID)

	if extractErr != nil {
		run.Status = models.RunStatusPartial
	} else {
		run.Status = models.RunStatusCompleted
	}
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Completed %s: %s", search.Name, summary), searchID)

	return nil
}

// mirror pushes this run's touched records to Postgres, best effort.
func (o *Orchestrator) mirror(ctx context.Context, run *models.ScrapeRun, searchID string, ds *models.Dataset, touched map[string]bool, changesByID map[string][]models.FieldChange) {
	if o.pgStore == nil {
		return
	}

	for itemID := range touched {
		l := ds.Get(itemID)
		if l == nil {
			continue
		}
		rowID, err := o.pgStore.UpsertListing(ctx, searchID, l)
		if err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Postgres mirror failed for %s: %v", itemID, err), searchID)
			continue
		}
		if changes := changesByID[itemID]; len(changes) > 0 {
			if err := o.pgStore.AppendChanges(ctx, rowID, changes); err != nil {
				o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Postgres change mirror failed for %s: %v", itemID, err), searchID)
			}
		}
	}
}

func (o *Orchestrator) HandleCommand(cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch cmd.Command {
	case models.CmdScrapeNow:
		return o.RunAll(ctx)
	case models.CmdScrapeSearch:
		if params.Search != "" {
			return o.RunSearch(ctx, params.Search)
		}
		return o.RunAll(ctx)
	case models.CmdPause:
		o.paused = true
		log.Println("Scraper paused")
	case models.CmdResume:
		o.paused = false
		log.Println("Scraper resumed")
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, searchID string) {
	log.Printf("[%s] %s: %s", level, searchID, message)
	o.store.Log(&runID, level, message, searchID)
}

func (o *Orchestrator) GetSearchIDs() []string {
	var ids []string
	for id := range o.cfg.Searches {
		ids = append(ids, id)
	}
	return ids
}
