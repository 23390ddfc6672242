// Package cli implements the command-line interface for event-vetting.
//
// The cli package provides the Cobra-based CLI: run executes a full
// validation run (search, validate, chase gaps, consolidate), validate vets
// a candidates file without supplementary searches, and calendar exports the
// last approved agenda as iCalendar. It wires configuration into the
// pipeline, persists results with storage and optionally publishes them to
// PostgreSQL.
package cli
