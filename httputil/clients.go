// Package httputil builds the two HTTP clients the scraper uses: a
// proxied one for the target sites and a direct one for everything else.
package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // proxied when a proxy is configured
	API      *http.Client // always direct
}

// NewClients builds the client pair. With an empty proxy URL the scraping
// client goes direct too. HTTP/2 is disabled on the scraping client since
// some residential proxies mangle it.
func NewClients(proxyURL string) *Clients {
	scraping := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			scraping.Transport = &http.Transport{
				Proxy:             http.ProxyURL(parsed),
				ForceAttemptHTTP2: false,
				TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
			}
		}
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
