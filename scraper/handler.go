package scraper

import (
	"context"
	"net/http"

	"carwatch/config"
	"carwatch/models"
)

// Handler extracts the raw listings for one search. An error after some
// pages succeeded still returns the listings collected so far; the
// caller reconciles what it got and marks the run partial.
type Handler interface {
	ID() string
	Extract(ctx context.Context, search *config.SearchConfig) ([]models.RawListing, error)
}

func NewHandler(search *config.SearchConfig, client *http.Client) Handler {
	switch search.Handler {
	case "browser":
		return NewBrowserHandler(search)
	case "http":
		return NewHTTPHandler(search, client)
	default:
		return NewHTTPHandler(search, client)
	}
}
