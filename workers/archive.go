// Package workers holds the background loops that run beside the
// scheduler. Currently that is the snapshot archiver.
package workers

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"time"

	"carwatch/config"
	"carwatch/storage"
)

// Uploader is the slice of the S3 client the archiver needs.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ArchiveWorker periodically copies each search's snapshot file to
// S3-compatible storage, building a timestamped history of datasets
// beyond the single current snapshot on disk.
type ArchiveWorker struct {
	cfg       *config.Config
	uploader  Uploader
	triggerCh chan struct{}
}

func NewArchiveWorker(cfg *config.Config, uploader Uploader) *ArchiveWorker {
	return &ArchiveWorker{
		cfg:       cfg,
		uploader:  uploader,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run immediately
func (w *ArchiveWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the archive loop
func (w *ArchiveWorker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Archive worker stopping")
			return
		case <-ticker.C:
			w.archiveAll(ctx)
		case <-w.triggerCh:
			log.Println("Archive worker triggered manually")
			w.archiveAll(ctx)
		}
	}
}

func (w *ArchiveWorker) archiveAll(ctx context.Context) {
	now := time.Now()
	var uploaded int

	for id, search := range w.cfg.Searches {
		path := search.SnapshotPath(w.cfg.SnapshotDir)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("Archive: read %s: %v", path, err)
			}
			continue
		}

		key := storage.ArchiveKey(id, now)
		if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
			log.Printf("Archive: upload %s: %v", key, err)
			continue
		}
		uploaded++
	}

	if uploaded > 0 {
		log.Printf("Archive: uploaded %d snapshots", uploaded)
	}
}
