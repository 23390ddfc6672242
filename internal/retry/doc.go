// Package retry closes coverage gaps with targeted supplementary searches.
//
// A Coordinator turns a gaps.Report into prioritized search requests
// (required venues first, then uncovered days, category minimums and finally
// a generic top-up), spending one unit of a shared Budget per request. It
// also re-admits rejected events whose only fault was a non-specific link.
//
// LinkSearch looks for a better link for a single event in a bounded loop;
// every attempt spends one budget unit.
package retry
