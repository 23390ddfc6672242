// Package linkfetch fetches event destination pages and extracts the
// evidence the scorer and adjudicator weigh: page title, dates, clock time,
// performers, price and ticket purchase affordances.
//
// Transient failures (timeouts, refused connections, 5xx and 429 responses)
// are retried with exponential backoff. 404, 403 and 410 are permanent and
// return immediately. Parsing is defensive: malformed markup yields partial
// evidence rather than an error.
package linkfetch
