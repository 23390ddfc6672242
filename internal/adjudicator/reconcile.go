package adjudicator

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

// Reconcile compares the candidate date with the dates found on its link
// before the judge is consulted. When they disagree, strict mode rejects and
// permissive mode moves the candidate to the first page date inside the
// window, recording the original. It reports true when c must be rejected.
//
// Continuous events are left alone: their pages list the season, not the
// listed day.
func Reconcile(c *event.Candidate, ev *event.LinkEvidence, mode Strictness, start, end time.Time) (event.Verdict, bool) {
	if c.Continuous || !ev.Fetched() || len(ev.Dates) == 0 || ev.HasDate(c.Date) {
		return event.Verdict{}, false
	}

	found := strings.Join(ev.Dates, ", ")
	if mode == Strict {
		return event.Reject(fmt.Sprintf("date mismatch: event says %s but link shows %s", c.Date, ev.Dates[0])), true
	}

	for _, d := range ev.Dates {
		if (start.IsZero() && end.IsZero()) || event.InWindow(d, start, end) {
			c.OriginalDate = c.Date
			c.Date = d
			c.DateCorrected = true
			c.AddNote(fmt.Sprintf("date corrected from %s to %s using the link", c.OriginalDate, d))
			return event.Verdict{}, false
		}
	}
	return event.Reject(fmt.Sprintf("date mismatch: event says %s, link dates %s are outside the search window", c.Date, found)), true
}
