package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

type ScrapeRun struct {
	ID               int64      `json:"id" db:"id"`
	SearchID         string     `json:"search_id" db:"search_id"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	FinishedAt       *time.Time `json:"finished_at" db:"finished_at"`
	Status           RunStatus  `json:"status" db:"status"`
	ListingsFound    int        `json:"listings_found" db:"listings_found"`
	ListingsNew      int        `json:"listings_new" db:"listings_new"`
	ListingsUpdated  int        `json:"listings_updated" db:"listings_updated"`
	ListingsRemoved  int        `json:"listings_removed" db:"listings_removed"`
	ListingsFiltered int        `json:"listings_filtered" db:"listings_filtered"`
	ErrorsCount      int        `json:"errors_count" db:"errors_count"`
}

type SearchStats struct {
	SearchID          string     `json:"search_id" db:"search_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalListings     int        `json:"total_listings" db:"total_listings"`
	ActiveListings    int        `json:"active_listings" db:"active_listings"`
	RemovedListings   int        `json:"removed_listings" db:"removed_listings"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
