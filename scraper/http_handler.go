package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"carwatch/config"
	"carwatch/models"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPHandler fetches feed pages with a plain (optionally proxied) HTTP
// client and parses the cards with goquery. It never visits item pages,
// so records carry only what the feed shows.
type HTTPHandler struct {
	cfg    *config.SearchConfig
	client *http.Client
}

func NewHTTPHandler(cfg *config.SearchConfig, client *http.Client) *HTTPHandler {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPHandler{cfg: cfg, client: client}
}

func (h *HTTPHandler) ID() string {
	return h.cfg.ID
}

func (h *HTTPHandler) Extract(ctx context.Context, search *config.SearchConfig) ([]models.RawListing, error) {
	var all []models.RawListing

	for page := 1; page <= search.MaxPages; page++ {
		listings, err := h.fetchPage(ctx, pageURL(search.URL, page))
		if err != nil {
			// Keep what earlier pages produced.
			return all, fmt.Errorf("page %d: %w", page, err)
		}
		if len(listings) == 0 {
			log.Printf("[%s] no listings on page %d, stopping", search.ID, page)
			break
		}

		all = append(all, listings...)
		log.Printf("[%s] page %d: %d listings (total: %d)", search.ID, page, len(listings), len(all))

		if page < search.MaxPages && search.RateLimitMS > 0 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(time.Duration(search.RateLimitMS) * time.Millisecond):
			}
		}
	}

	return all, nil
}

func (h *HTTPHandler) fetchPage(ctx context.Context, url string) ([]models.RawListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "he-IL,he;q=0.9,en;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return ParseFeed(resp.Body, url)
}
