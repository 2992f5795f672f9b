package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"carwatch/config"
	"carwatch/models"
)

// ErrCaptcha means the site redirected to a bot-check page. The page
// sequence stops there; whatever was collected before it still counts.
var ErrCaptcha = errors.New("captcha challenge encountered")

var (
	yearRe    = regexp.MustCompile(`^\d{4}$`)
	mileageRe = regexp.MustCompile(`[\d,]+`)
)

// BrowserHandler drives a real Chromium via playwright: feed pages for
// discovery, then each ad's item page for the full detail set (location,
// description, mileage, specs, images) that the feed cards don't carry.
type BrowserHandler struct {
	cfg *config.SearchConfig

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	initialized bool
}

func NewBrowserHandler(cfg *config.SearchConfig) *BrowserHandler {
	return &BrowserHandler{cfg: cfg}
}

func (h *BrowserHandler) ID() string {
	return h.cfg.ID
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	h.browser, err = h.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	h.context, err = h.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:   &playwright.Size{Width: 1920, Height: 1080},
		UserAgent:  playwright.String(defaultUserAgent),
		Locale:     playwright.String("he-IL"),
		TimezoneId: playwright.String("Asia/Jerusalem"),
	})
	if err != nil {
		return fmt.Errorf("failed to create context: %w", err)
	}

	// Hide the automation flag before any page script runs.
	h.context.AddInitScript(playwright.Script{
		Content: playwright.String(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`),
	})

	h.initialized = true
	return nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.context != nil {
		h.context.Close()
	}
	if h.browser != nil {
		h.browser.Close()
	}
	if h.pw != nil {
		h.pw.Stop()
	}
	h.initialized = false
}

func (h *BrowserHandler) Extract(ctx context.Context, search *config.SearchConfig) ([]models.RawListing, error) {
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}
	defer h.Close()

	cards, err := h.collectFeed(ctx, search)
	if err != nil && len(cards) == 0 {
		return nil, err
	}
	feedErr := err

	var all []models.RawListing
	for i := range cards {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		enriched, err := h.visitItemPage(&cards[i])
		if err != nil {
			if errors.Is(err, ErrCaptcha) {
				log.Printf("[%s] captcha on %s, stopping item visits", search.ID, cards[i].URL)
				return all, err
			}
			// The feed card alone is still a usable observation.
			log.Printf("[%s] detail extraction failed for %s: %v", search.ID, cards[i].URL, err)
			all = append(all, cards[i])
			continue
		}
		all = append(all, *enriched)

		if search.RateLimitMS > 0 && i < len(cards)-1 {
			time.Sleep(time.Duration(search.RateLimitMS) * time.Millisecond)
		}
	}

	return all, feedErr
}

// collectFeed walks the paginated feed and returns the discovered cards.
func (h *BrowserHandler) collectFeed(ctx context.Context, search *config.SearchConfig) ([]models.RawListing, error) {
	page, err := h.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	var cards []models.RawListing
	for pageNum := 1; pageNum <= search.MaxPages; pageNum++ {
		select {
		case <-ctx.Done():
			return cards, ctx.Err()
		default:
		}

		_, err := page.Goto(pageURL(search.URL, pageNum), playwright.PageGotoOptions{
			Timeout:   playwright.Float(60000),
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		})
		if err != nil {
			return cards, fmt.Errorf("feed page %d: %w", pageNum, err)
		}

		if captchaURL(page.URL()) {
			return cards, ErrCaptcha
		}
		if title, _ := page.Title(); strings.Contains(strings.ToLower(title), "captcha") {
			return cards, ErrCaptcha
		}

		page.WaitForSelector(selFeedLink, playwright.PageWaitForSelectorOptions{
			Timeout: playwright.Float(10000),
		})

		content, err := page.Content()
		if err != nil {
			return cards, fmt.Errorf("feed page %d content: %w", pageNum, err)
		}
		pageCards, err := ParseFeed(strings.NewReader(content), page.URL())
		if err != nil {
			return cards, fmt.Errorf("feed page %d parse: %w", pageNum, err)
		}
		if len(pageCards) == 0 {
			log.Printf("[%s] no listings on feed page %d, stopping", search.ID, pageNum)
			break
		}

		cards = append(cards, pageCards...)
		log.Printf("[%s] feed page %d: %d listings (total: %d)", search.ID, pageNum, len(pageCards), len(cards))
	}

	return dedupeByURL(cards), nil
}

// visitItemPage opens the ad's own page and merges its richer fields over
// the feed card. Feed values win only where the page has nothing.
func (h *BrowserHandler) visitItemPage(card *models.RawListing) (*models.RawListing, error) {
	page, err := h.context.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	_, err = page.Goto(card.URL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, err
	}
	if captchaURL(page.URL()) {
		return nil, ErrCaptcha
	}

	raw := *card
	raw.ScrapedAt = time.Now()

	if title := firstText(page,
		"h1.heading_heading__6RE1P",
		`h1[data-nagish='upper-heading-title']`,
		"h1",
	); title != "" {
		raw.Title = title
	}

	raw.MarketingName = firstText(page,
		"h2.marketing-name_marketingName__VoALw",
		`h2[data-nagish='name-section-title']`,
	)

	if price := h.extractPrice(page); price != "" {
		raw.Price = price
		if n := parsePrice(price); n > 0 {
			raw.PriceNumeric = n
		}
	}

	raw.Location = firstText(page,
		"span.location_location__r6h8_",
		`span[data-testid='location']`,
	)
	raw.Description = firstText(page,
		"p.description_description__xxZXs",
		".description",
		`[data-testid='description']`,
	)

	h.extractDetailItems(page, &raw)
	h.extractSpecs(page, &raw)
	raw.Images = extractImages(page)

	return &raw, nil
}

// extractPrice prefers the finance box price, then the plain ad price,
// skipping monthly-payment figures in the generic fallback.
func (h *BrowserHandler) extractPrice(page playwright.Page) string {
	for _, sel := range []string{
		`.car-finance_priceBox__VuZk3 span[data-testid='price']`,
		`.ad-price_price__9rK1w span[data-testid='price']`,
	} {
		if text := firstText(page, sel); text != "" {
			return text
		}
	}

	entries, err := page.Locator(`span[data-testid='price']`).All()
	if err != nil {
		return ""
	}
	for _, el := range entries {
		parentHTML, err := el.Evaluate("el => el.parentElement.parentElement.outerHTML", nil)
		if err != nil {
			continue
		}
		if html, ok := parentHTML.(string); ok {
			if strings.Contains(html, "monthlyPayment") || strings.Contains(html, "לחודש") {
				continue
			}
		}
		if text, err := el.TextContent(); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

// extractDetailItems reads the year / hand / mileage boxes. Year is the
// 4-digit item, hand the one containing "יד", mileage the one with km.
func (h *BrowserHandler) extractDetailItems(page playwright.Page, raw *models.RawListing) {
	items, err := page.Locator(".details-item_detailsItemBox__blPEY").All()
	if err != nil {
		return
	}
	for _, item := range items {
		text, err := item.TextContent()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)

		switch {
		case yearRe.MatchString(text):
			if year, err := strconv.Atoi(text); err == nil {
				raw.Year = year
			}
		case strings.Contains(text, "יד"):
			if m := digitsRe.FindString(text); m != "" {
				if hand, err := strconv.Atoi(m); err == nil {
					raw.Hand = hand
				}
			}
		case strings.Contains(text, `ק"מ`) || strings.Contains(text, "קמ"):
			if m := mileageRe.FindString(text); m != "" {
				raw.Mileage = m
			}
		}
	}
}

func (h *BrowserHandler) extractSpecs(page playwright.Page, raw *models.RawListing) {
	labels, err := page.Locator("dd.item-detail_label__FnhAu").All()
	if err != nil {
		return
	}
	values, err := page.Locator("dt.item-detail_value__QHPml").All()
	if err != nil {
		return
	}

	specs := make(map[string]string)
	for i, labelEl := range labels {
		if i >= len(values) {
			break
		}
		label, err1 := labelEl.TextContent()
		value, err2 := values[i].TextContent()
		if err1 != nil || err2 != nil {
			continue
		}
		label = strings.TrimSpace(label)
		value = strings.TrimSpace(value)
		specs[label] = value

		if raw.Mileage == "" && strings.Contains(label, "קילומטר") {
			raw.Mileage = value
		}
	}
	if len(specs) > 0 {
		raw.Specs = specs
	}
}

const maxImages = 10

func extractImages(page playwright.Page) []string {
	imgs, err := page.Locator("img").All()
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var urls []string
	for _, img := range imgs {
		src, err := img.GetAttribute("src")
		if err != nil || src == "" {
			src, _ = img.GetAttribute("data-src")
		}
		if src == "" || !strings.Contains(src, "yad2") {
			continue
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		urls = append(urls, src)
		if len(urls) >= maxImages {
			break
		}
	}
	return urls
}

func firstText(page playwright.Page, selectors ...string) string {
	for _, sel := range selectors {
		el := page.Locator(sel).First()
		if count, err := el.Count(); err != nil || count == 0 {
			continue
		}
		text, err := el.TextContent()
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func captchaURL(u string) bool {
	return strings.Contains(u, "validate.perfdrive.com") ||
		strings.Contains(strings.ToLower(u), "perimeterx") ||
		strings.Contains(u, "/validate")
}

func dedupeByURL(listings []models.RawListing) []models.RawListing {
	seen := make(map[string]bool)
	out := listings[:0]
	for _, l := range listings {
		if seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
	}
	return out
}
