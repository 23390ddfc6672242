package linkscore

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

// LinkType is the coarse role of a link
type LinkType string

const (
	LinkPurchase LinkType = "purchase"
	LinkInfo     LinkType = "info"
	LinkVenue    LinkType = "venue"
)

// Listing, search and category pages that never identify a single event
var genericPatterns = compileAll(
	`/eventos/[^/]+\?`,
	`/eventos\?`,
	`/eventos/?$`,
	`/shows/?$`,
	`/agenda/?$`,
	`/programacao/?$`,
	`/calendar/?$`,
	`/schedule/?$`,
	`/busca\?`,
	`/search\?`,
	`[?&]city=`,
	`[?&]partnership=`,
	`/d/brazil--`,
	`/eventos/rio-de-janeiro`,
	`/events/rio-de-janeiro`,
)

var genericSegments = map[string]bool{
	"shows": true, "eventos": true, "events": true, "agenda": true,
	"programacao": true, "calendar": true, "schedule": true,
}

// Listing pages that are nevertheless specific enough to trust
var trustedListingPages = []string{
	"bluenoterio.com.br/shows",
	"eventim.com.br/artist/blue-note-rio",
}

// PurchasePlatforms are ticketing sites whose links count as purchase links.
var PurchasePlatforms = []string{
	"sympla.com",
	"eventbrite.com",
	"ticketmaster.com",
	"ingresso.com",
	"ingressodigital.com",
	"tickets.com",
	"eventim.com.br/artist",
	"eleventickets.com",
}

// Domains that are platforms, never an artist's own site
var knownPlatforms = []string{
	"sympla", "eventbrite", "ticketmaster", "ingresso", "ticket",
	"bluenoterio", "eleventickets", "ingressodigital", "gov.br",
}

// ScraperVenueDomains have dedicated scrapers, so a generic link pointing at
// them means the source failed to find the specific page.
var ScraperVenueDomains = []string{
	"bluenoterio.com.br",
	"salaceciliameireles.rj.gov.br",
	"theatromunicipal.rj.gov.br",
	"teatromunicipal.rj.gov.br",
	"ccbb.com.br",
	"osb.org.br",
}

var stopWords = map[string]bool{
	"e": true, "de": true, "da": true, "do": true, "para": true, "com": true,
	"ao": true, "a": true, "o": true, "no": true, "na": true,
	"the": true, "and": true, "with": true,
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// IsGenericLink detects search, category, listing and home pages.
func IsGenericLink(link string) bool {
	if link == "" {
		return false
	}
	lower := strings.ToLower(link)
	for _, trusted := range trustedListingPages {
		if strings.Contains(lower, trusted) {
			return false
		}
	}
	for _, re := range genericPatterns {
		if re.MatchString(link) {
			return true
		}
	}

	path := strings.SplitN(lower, "?", 2)[0]
	parts := make([]string, 0, 4)
	for _, p := range strings.Split(path, "/") {
		if p == "" || p == "http:" || p == "https:" {
			continue
		}
		parts = append(parts, p)
	}
	switch len(parts) {
	case 1:
		return true
	case 2:
		return genericSegments[parts[1]]
	}
	return false
}

// IsPurchasePlatform reports whether link points at a known ticketing platform.
func IsPurchasePlatform(link string) bool {
	lower := strings.ToLower(link)
	for _, p := range PurchasePlatforms {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsScraperVenueDomain reports whether link belongs to a venue with a dedicated scraper.
func IsScraperVenueDomain(link string) bool {
	host := hostOf(link)
	for _, d := range ScraperVenueDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

func hostOf(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// domainLabel returns the host without its public suffix, e.g.
// "www.joaobosco.com.br" becomes "www.joaobosco".
func domainLabel(host string) string {
	suffix, _ := publicsuffix.PublicSuffix(host)
	if suffix == "" || suffix == host {
		return host
	}
	return strings.TrimSuffix(host, "."+suffix)
}

// IsArtistOrVenueSite flags institutional sites of the artist or venue: a
// domain that is not a known platform and that contains more than 40% of the
// significant title words.
func IsArtistOrVenueSite(link, title string) bool {
	host := hostOf(link)
	if host == "" || title == "" {
		return false
	}
	for _, p := range knownPlatforms {
		if strings.Contains(host, p) {
			return false
		}
	}

	label := strings.NewReplacer(".", " ", "-", " ").Replace(domainLabel(host))
	compact := strings.ReplaceAll(label, " ", "")

	words := significantWords(title)
	if len(words) == 0 || compact == "" {
		return false
	}
	common := 0
	for w := range words {
		if strings.Contains(compact, w) {
			common++
		}
	}
	return float64(common)/float64(len(words)) > 0.4
}

func significantWords(title string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range tokens(title) {
		if len(w) > 3 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

// ClassifyLink assigns a coarse role to link.
func ClassifyLink(link, title string) LinkType {
	if link == "" || event.IsPlaceholderLink(link) {
		return LinkInfo
	}
	lower := strings.ToLower(link)
	if IsPurchasePlatform(lower) {
		return LinkPurchase
	}

	// venue pages with an event slug behave like purchase pages
	for _, prefix := range []string{"bluenoterio.com.br/shows/", "salaceciliameireles.rj.gov.br/programacao/"} {
		if strings.Contains(lower, prefix) {
			parts := strings.Split(strings.TrimRight(lower, "/"), "/")
			if slug := parts[len(parts)-1]; len(slug) > 5 {
				return LinkPurchase
			}
		}
	}

	if IsGenericLink(link) {
		return LinkVenue
	}
	if IsArtistOrVenueSite(link, title) {
		return LinkInfo
	}
	if strings.Contains(lower, ".gov.br") {
		return LinkVenue
	}
	return LinkInfo
}
