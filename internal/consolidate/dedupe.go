package consolidate

import "github.com/pfrederiksen/event-vetting/internal/event"

// Dedupe keeps the first event for each identity key and returns the result
// and the number of events removed. The input slice is not modified.
// Dedupe(Dedupe(x)) == Dedupe(x).
func Dedupe(events []*event.Candidate) ([]*event.Candidate, int) {
	seen := make(map[string]bool, len(events))
	out := make([]*event.Candidate, 0, len(events))
	for _, ev := range events {
		key := ev.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ev)
	}
	return out, len(events) - len(out)
}

// CapPerVenue keeps at most limit events per canonical venue, in input order.
// Events without a venue are never capped. A non-positive limit disables the cap.
func CapPerVenue(events []*event.Candidate, limit int, venues *VenueResolver) (kept, dropped []*event.Candidate) {
	if limit <= 0 {
		return events, nil
	}
	if venues == nil {
		venues = NewVenueResolver(nil)
	}
	counts := make(map[string]int)
	for _, ev := range events {
		v := venues.Canonical(ev.Venue)
		if v == "" {
			kept = append(kept, ev)
			continue
		}
		if counts[v] >= limit {
			dropped = append(dropped, ev)
			continue
		}
		counts[v]++
		kept = append(kept, ev)
	}
	return kept, dropped
}
