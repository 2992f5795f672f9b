package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"carwatch/config"
	"carwatch/httputil"
	"carwatch/logging"
	"carwatch/scheduler"
	"carwatch/scraper"
	"carwatch/storage"
	"carwatch/workers"
)

var (
	scrapeNow  = flag.Bool("scrape", false, "Run all searches once and exit")
	scrapeOne  = flag.String("search", "", "Run a single search by id and exit")
	freshStart = flag.Bool("fresh", false, "Start a fresh dataset when a snapshot is corrupt")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("carwatch.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting carwatch...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d search configs", len(cfg.Searches))
	for id, search := range cfg.Searches {
		log.Printf("  - %s (%s, handler=%s)", search.Name, id, search.Handler)
	}

	clients := httputil.NewClients(cfg.ProxyURL)
	if cfg.ProxyURL != "" {
		log.Printf("Proxy configured for scraping client")
	}

	ctx := context.Background()

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore, clients.Scraping)
	if *freshStart {
		orchestrator.SetFreshStart(true)
	}

	// Optional Postgres mirror
	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Postgres mirror unavailable: %v", err)
		} else {
			defer pgStore.Close()
			orchestrator.SetPostgres(pgStore)
			log.Printf("Postgres mirror: %s", maskConnectionString(cfg.DatabaseURL))
		}
	}

	// One-shot modes
	if *scrapeOne != "" {
		log.Printf("Running search %s...", *scrapeOne)
		if err := orchestrator.RunSearch(ctx, *scrapeOne); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}
	if *scrapeNow {
		log.Println("Running all searches...")
		if err := orchestrator.RunAll(ctx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.S3.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			log.Printf("Warning: snapshot archiver unavailable: %v", err)
		} else {
			archiveWorker := workers.NewArchiveWorker(cfg, uploader)
			go archiveWorker.Run(ctx, cfg.S3.ArchiveInterval)
			sched.SetWorkers(archiveWorker)
			log.Println("Archive worker started")
		}
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
