// Package linkscore scores how well a fetched page corroborates a candidate
// event and classifies links (purchase platform, generic listing, artist or
// venue institutional site).
//
// Scoring is additive and pure: the same evidence and candidate always give
// the same Report.
package linkscore
