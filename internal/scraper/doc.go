// Package scraper reads candidate events from venue listing pages.
//
// Each venue is described by CSS selectors for the repeated event block and
// the fields inside it. Links found on a venue's own listing are trusted, so
// scraped candidates carry LinkValid. Dates are accepted in the numeric,
// ISO and textual forms the link fetcher understands; blocks without a
// recognizable date are dropped.
package scraper
