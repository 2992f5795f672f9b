package scraper

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"carwatch/models"
)

// Feed page selectors. The site ships hashed CSS module class names, so
// these break when the frontend redeploys; the data-testid hooks are the
// more durable half.
const (
	selFeedLink     = `a[href*='item/']`
	selFeedItemInfo = `[data-testid='feed-item-info']`
	selFeedTitle    = `.feed-item-info-section_heading__Bp32t`
	selFeedPrice    = `.price_price__xQt90`
	selFeedYearHand = `.feed-item-info-section_yearAndHandBox__H5oQ0`
	selPrivateTags  = `.private-item_tags__BaT6z`
	selAgencyName   = `.feed-item-image-section_agencyName__U_wJp`
)

var digitsRe = regexp.MustCompile(`\d+`)

// ParseFeed extracts the ad cards from one feed page. Cards without the
// feed-item-info block are promos and skipped; duplicate hrefs within the
// page are collapsed to the first occurrence.
func ParseFeed(r io.Reader, pageURL string) ([]models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool)
	var listings []models.RawListing

	doc.Find(selFeedLink).Each(func(_ int, link *goquery.Selection) {
		if link.Find(selFeedItemInfo).Length() == 0 {
			return
		}
		href, ok := link.Attr("href")
		if !ok || !strings.Contains(href, "item/") {
			return
		}

		fullURL := resolveURL(base, href)
		if seen[fullURL] {
			return
		}
		seen[fullURL] = true

		raw := models.RawListing{
			URL:       fullURL,
			Title:     strings.TrimSpace(link.Find(selFeedTitle).Text()),
			Hand:      -1,
			ScrapedAt: time.Now(),
		}

		if priceText := strings.TrimSpace(link.Find(selFeedPrice).Text()); priceText != "" {
			raw.Price = priceText
			raw.PriceNumeric = parsePrice(priceText)
		}

		// "2021 • יד 1"
		if yh := strings.TrimSpace(link.Find(selFeedYearHand).Text()); yh != "" {
			parts := strings.Split(yh, "•")
			if len(parts) >= 1 {
				if year, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
					raw.Year = year
				}
			}
			if len(parts) >= 2 {
				if m := digitsRe.FindString(parts[1]); m != "" {
					if hand, err := strconv.Atoi(m); err == nil {
						raw.Hand = hand
					}
				}
			}
		}

		hasPrivateTags := link.Find(selPrivateTags).Length() > 0
		hasAgencyName := link.Find(selAgencyName).Length() > 0
		raw.IsPrivate = hasPrivateTags && !hasAgencyName

		listings = append(listings, raw)
	})

	return listings, nil
}

// parsePrice strips everything but digits: "89,000 ₪" -> 89000. Returns
// 0 when no digits remain ("on request" prices).
func parsePrice(s string) int {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}

func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// pageURL appends or bumps the page query parameter for feed pagination.
func pageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}
	if strings.Contains(searchURL, "?") {
		return searchURL + "&page=" + strconv.Itoa(page)
	}
	return searchURL + "?page=" + strconv.Itoa(page)
}
