// Package source defines where candidate events come from.
//
// A CandidateSource answers a Query (the whole window, or a targeted
// supplementary search for a venue, day or category) with raw candidates.
// FileSource reads exported JSON records, SearchSource asks a generative
// search model, and Multi fans a query out to several sources. Venue listing
// pages are handled by package scraper.
package source
