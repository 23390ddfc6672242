// Package event provides the candidate event model shared by every pipeline stage.
//
// Raw records arrive as loosely-typed maps from search providers, scrapers and
// JSON files. FromRecord resolves the field aliases those sources use once, at
// ingestion, so the rest of the pipeline only sees the typed Candidate.
//
// The package also owns the canonical date literal (DD/MM/YYYY), clock-time
// parsing, the deduplication identity key and snapshot diffing between runs.
package event
