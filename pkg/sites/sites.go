// Package sites holds the selector table for supported sites.
package sites

import (
	"net/url"
	"strings"
)

// Site describes where posts and their titles live on a page.
type Site struct {
	// Key is the hostname fragment the site is registered under. Settings
	// use the same key to enable or disable the site.
	Key string
	// PostContainer selects the element that is hidden or badged.
	PostContainer string
	// TitleSelector selects the element whose text is classified.
	TitleSelector string
}

const (
	bbcPostContainer = `[data-testid="promo"], .gel-promo, [class*="promo"]`
	bbcTitleSelector = `[data-testid="promo-headline"], .gel-promo__headline, [class*="promo-headline"], h3 a, h2 a`
)

// table is ordered; Lookup returns the first entry whose key is contained
// in the hostname.
var table = []Site{
	{
		Key:           "reddit.com",
		PostContainer: "article",
		TitleSelector: "faceplate-screen-reader-content",
	},
	{
		Key:           "bbc.com",
		PostContainer: bbcPostContainer,
		TitleSelector: bbcTitleSelector,
	},
	{
		Key:           "bbc.co.uk",
		PostContainer: bbcPostContainer,
		TitleSelector: bbcTitleSelector,
	},
	{
		Key:           "youtube.com",
		PostContainer: "ytd-rich-item-renderer, ytd-video-renderer, ytd-compact-video-renderer",
		TitleSelector: "#video-title",
	},
}

// All returns a copy of the table in match order.
func All() []Site {
	out := make([]Site, len(table))
	copy(out, table)
	return out
}

// Lookup finds the site for a hostname. A leading "www." is ignored and
// subdomains match their parent entry, so "old.reddit.com" resolves to
// reddit.com.
func Lookup(hostname string) (Site, bool) {
	host := NormalizeHost(hostname)
	if host == "" {
		return Site{}, false
	}
	for _, s := range table {
		if strings.Contains(host, s.Key) {
			return s, true
		}
	}
	return Site{}, false
}

// NormalizeHost lowercases the host and drops a leading "www.".
func NormalizeHost(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	return strings.TrimPrefix(host, "www.")
}

// Hostname extracts the host part of rawURL without port.
func Hostname(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
