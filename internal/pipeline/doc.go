// Package pipeline runs candidate events through validation and assembles
// the final approved and rejected lists.
//
// The Orchestrator decides one candidate at a time: field checks, then the
// link (fetch, date reconciliation, quality score) and finally the external
// judge. Each candidate moves through an explicit state machine and ends in
// exactly one of Approved or Rejected.
//
// The Runner drives a whole run: initial validation, gap analysis with
// supplementary searches until the gaps close or the budget runs out,
// recovery of link-only rejections, deduplication, consolidation and the
// per-venue cap.
package pipeline
