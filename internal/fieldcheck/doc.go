// Package fieldcheck runs the deterministic field checks every candidate must
// pass before any network work is spent on it.
//
// The checks run in a fixed order and stop at the first failure: date format,
// date window, time format, geographic scope and same-day lead time. A passing
// candidate has its date and time rewritten to the canonical literals.
package fieldcheck
