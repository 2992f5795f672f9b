// Package scheduler runs scrape cycles on a cron expression or a fixed
// interval and polls the SQLite command queue so external tools can
// trigger or pause the daemon.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"carwatch/config"
	"carwatch/models"
	"carwatch/scraper"
	"carwatch/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	store        *storage.SQLiteStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}

	archiveWorker Triggerable
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, store *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(archive Triggerable) {
	s.archiveWorker = archive
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.orchestrator.RunAll(ctx); err != nil {
				log.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx); err != nil {
						log.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.store.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(&cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunArchive:
		if s.archiveWorker != nil {
			s.archiveWorker.Trigger()
			log.Println("Archive worker triggered via command")
		}
		return nil
	default:
		return s.orchestrator.HandleCommand(cmd)
	}
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orchestrator.RunAll(ctx)
}
