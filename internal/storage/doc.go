// Package storage persists run output as JSON files.
//
// The data directory holds one snapshot of the last approved agenda
// (snapshot.json), used to report what changed between runs, and one result
// file per run under runs/. latest.json always mirrors the newest result.
package storage
