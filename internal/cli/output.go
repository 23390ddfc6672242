package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/filter"
	"github.com/pfrederiksen/event-vetting/internal/gaps"
	"github.com/pfrederiksen/event-vetting/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output
type OutputResult struct {
	RunID       string                        `json:"run_id"`
	CheckedAt   time.Time                     `json:"checked_at"`
	WindowStart string                        `json:"window_start"`
	WindowEnd   string                        `json:"window_end"`
	Approved    []*event.Candidate            `json:"approved"`
	Rejected    []*event.Candidate            `json:"rejected"`
	NewEvents   []*event.Candidate            `json:"new_events"`
	ByVenue     map[string][]*event.Candidate `json:"by_venue,omitempty"`
	Warnings    []string                      `json:"warnings,omitempty"`
	Filter      string                        `json:"filter,omitempty"`
	Gaps        gaps.Report                   `json:"gaps"`
	Stats       pipeline.Stats                `json:"stats"`
}

// newOutputResult prepares a run for display. The listing filter narrows the
// approved and new events only; stats and gaps describe the whole run.
func newOutputResult(res *pipeline.Result, diff *event.DiffResult, start, end time.Time, lf *filter.Filter) *OutputResult {
	if lf == nil {
		lf = filter.NewFilter()
	}
	out := &OutputResult{
		RunID:       res.RunID,
		CheckedAt:   res.FinishedAt,
		WindowStart: event.FormatDate(start),
		WindowEnd:   event.FormatDate(end),
		Approved:    lf.Apply(res.Approved),
		Rejected:    res.Rejected,
		NewEvents:   make([]*event.Candidate, 0),
		Warnings:    res.Warnings,
		Gaps:        res.Gaps,
		Stats:       res.Stats,
	}
	if diff != nil {
		out.NewEvents = lf.Apply(diff.NewEvents)
	}
	if !lf.IsEmpty() {
		out.Filter = lf.String()
	}
	if len(out.Approved) > 0 {
		out.ByVenue = make(map[string][]*event.Candidate)
		for _, c := range out.Approved {
			venue := c.Venue
			if venue == "" {
				venue = "(no venue)"
			}
			out.ByVenue[venue] = append(out.ByVenue[venue], c)
		}
	}
	return out
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	fmt.Fprintf(w, "Window %s - %s\n", result.WindowStart, result.WindowEnd)
	if result.Filter != "" {
		fmt.Fprintf(w, "Filter: %s\n", result.Filter)
	}

	if len(result.Approved) == 0 {
		fmt.Fprintln(w, "No events approved.")
	} else {
		isNew := make(map[string]bool, len(result.NewEvents))
		for _, evt := range result.NewEvents {
			isNew[evt.Key()] = true
		}

		venues := make([]string, 0, len(result.ByVenue))
		for venue := range result.ByVenue {
			venues = append(venues, venue)
		}
		sort.Strings(venues)

		for _, venue := range venues {
			events := result.ByVenue[venue]
			fmt.Fprintf(w, "\n%s (%d):\n", venue, len(events))
			for _, evt := range events {
				prefix := "    "
				if isNew[evt.Key()] {
					prefix = "NEW "
				}
				fmt.Fprintf(w, "  %s%s  %s\n", prefix, when(evt), evt.Title)
				if verbose {
					fmt.Fprintf(w, "       ID: %s\n", evt.ID)
					if evt.Link != "" {
						fmt.Fprintf(w, "       Link: %s\n", evt.Link)
					}
					if evt.Reason != "" {
						fmt.Fprintf(w, "       Reason: %s (confidence %d)\n", evt.Reason, evt.Confidence)
					}
				}
			}
		}
	}

	if verbose && len(result.Rejected) > 0 {
		fmt.Fprintf(w, "\nRejected (%d):\n", len(result.Rejected))
		for _, evt := range result.Rejected {
			fmt.Fprintf(w, "  %s  %s: %s\n", when(evt), evt.Title, evt.Reason)
		}
	}

	if result.Gaps.HasGaps() {
		fmt.Fprintf(w, "\nCoverage gaps: %s\n", result.Gaps)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}

	s := result.Stats
	fmt.Fprintf(w, "\nTotal: %d approved (%d new), %d rejected of %d candidates; %d searches, %d duplicates removed, %d consolidated\n",
		s.Approved, len(result.NewEvents), s.Rejected, s.Candidates, s.RetriesUsed, s.DuplicatesRemoved, s.Consolidated)
	return nil
}

// when renders the date, time and span of an event for the text listing
func when(evt *event.Candidate) string {
	out := evt.Date
	if evt.Continuous && evt.EndDate != "" {
		out += " to " + evt.EndDate
	}
	if evt.Time != "" {
		out += " " + evt.Time
	}
	if evt.IsRecurring && len(evt.Occurrences) > 1 {
		out += fmt.Sprintf(" (+%d dates)", len(evt.Occurrences)-1)
	}
	return out
}
