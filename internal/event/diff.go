package event

import (
	"sort"
	"time"
)

// Snapshot represents the approved events of one pipeline run
type Snapshot struct {
	RunID     string                `json:"run_id,omitempty"`
	Events    map[string]*Candidate `json:"events"`     // keyed by Candidate.Key()
	UpdatedAt string                `json:"updated_at"` // RFC3339 timestamp
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Events: make(map[string]*Candidate),
	}
}

// CreateSnapshot creates a snapshot from a list of approved events
func CreateSnapshot(runID string, events []*Candidate, updatedAt string) *Snapshot {
	snap := NewSnapshot()
	snap.RunID = runID
	snap.UpdatedAt = updatedAt
	for _, evt := range events {
		snap.Events[evt.Key()] = evt
	}
	return snap
}

// DiffResult contains the results of comparing a run against the previous one
type DiffResult struct {
	NewEvents     []*Candidate
	DroppedEvents []*Candidate
	Changes       []*EventChange
}

// Diff compares current approved events against a previous snapshot. Events
// are matched by identity key; an event whose key is absent from the previous
// snapshot is new. Changes are detected between records sharing the same
// (source, title, date, venue) ID but a different key, e.g. a time change.
func Diff(previous *Snapshot, current []*Candidate) *DiffResult {
	result := &DiffResult{
		NewEvents: make([]*Candidate, 0),
	}
	if previous == nil {
		previous = NewSnapshot()
	}

	byID := make(map[string]*Candidate, len(previous.Events))
	for _, evt := range previous.Events {
		byID[evt.ID] = evt
	}

	seen := make(map[string]bool, len(current))
	for _, evt := range current {
		key := evt.Key()
		seen[key] = true
		if _, exists := previous.Events[key]; exists {
			continue
		}
		if old, ok := byID[evt.ID]; ok {
			result.Changes = append(result.Changes, DetectChanges(old, evt)...)
			continue
		}
		result.NewEvents = append(result.NewEvents, evt)
	}

	for key, evt := range previous.Events {
		if !seen[key] {
			result.DroppedEvents = append(result.DroppedEvents, evt)
		}
	}

	SortByDate(result.NewEvents)
	SortByDate(result.DroppedEvents)
	return result
}

// EventChange represents a change detected in an event between runs
type EventChange struct {
	EventID    string    `json:"event_id"`
	ChangeType string    `json:"change_type"` // "time", "link", "price", "new"
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// DetectChanges compares two versions of an event and returns detected changes
func DetectChanges(previous, current *Candidate) []*EventChange {
	now := time.Now().UTC()
	if previous == nil {
		return []*EventChange{{
			EventID:    current.ID,
			ChangeType: "new",
			NewValue:   current.Title,
			DetectedAt: now,
		}}
	}

	var changes []*EventChange
	add := func(kind, oldValue, newValue string) {
		if oldValue != newValue {
			changes = append(changes, &EventChange{
				EventID:    current.ID,
				ChangeType: kind,
				OldValue:   oldValue,
				NewValue:   newValue,
				DetectedAt: now,
			})
		}
	}
	add("time", previous.Time, current.Time)
	add("link", previous.Link, current.Link)
	add("price", previous.Price, current.Price)
	return changes
}

// SortByDate orders events by date, then start time, then title. Events with
// an unparseable date sort last.
func SortByDate(events []*Candidate) {
	sort.SliceStable(events, func(i, j int) bool {
		return Less(events[i], events[j])
	})
}

// Less reports whether a should come before b in chronological output.
func Less(a, b *Candidate) bool {
	da, db := ParseDate(a.Date), ParseDate(b.Date)
	if !da.Equal(db) {
		if da.IsZero() {
			return false
		}
		if db.IsZero() {
			return true
		}
		return da.Before(db)
	}
	ma, okA := ClockMinutes(a.Time)
	mb, okB := ClockMinutes(b.Time)
	if okA != okB {
		return okA
	}
	if ma != mb {
		return ma < mb
	}
	return NormalizeTitle(a.Title) < NormalizeTitle(b.Title)
}
