package event

import (
	"testing"
	"time"
)

func TestDiff(t *testing.T) {
	evt1 := NewCandidate("Jazz Night", "15/11/2025", "20:00", "Blue Note Rio", "scraper")
	evt2 := NewCandidate("Roda de Choro", "16/11/2025", "18:00", "Casa do Choro", "search")
	evt3 := NewCandidate("Sarau", "08/11/2025", "19:00", "Livraria", "search")

	previous := CreateSnapshot("run-1", []*Candidate{evt1}, time.Now().UTC().Format(time.RFC3339))

	t.Run("finds new events", func(t *testing.T) {
		result := Diff(previous, []*Candidate{evt1, evt2, evt3})

		if len(result.NewEvents) != 2 {
			t.Fatalf("expected 2 new events, got %d", len(result.NewEvents))
		}
		// sorted by date
		if result.NewEvents[0].Title != "Sarau" || result.NewEvents[1].Title != "Roda de Choro" {
			t.Errorf("unexpected order: %s, %s", result.NewEvents[0].Title, result.NewEvents[1].Title)
		}
	})

	t.Run("nil previous treats everything as new", func(t *testing.T) {
		result := Diff(nil, []*Candidate{evt1})
		if len(result.NewEvents) != 1 {
			t.Errorf("expected 1 new event, got %d", len(result.NewEvents))
		}
	})

	t.Run("detects dropped events", func(t *testing.T) {
		result := Diff(previous, []*Candidate{evt2})
		if len(result.DroppedEvents) != 1 || result.DroppedEvents[0].Title != "Jazz Night" {
			t.Errorf("expected Jazz Night to be dropped, got %v", result.DroppedEvents)
		}
	})

	t.Run("time change is a change not a new event", func(t *testing.T) {
		moved := evt1.Clone()
		moved.Time = "21:00"
		result := Diff(previous, []*Candidate{moved})
		if len(result.NewEvents) != 0 {
			t.Errorf("expected no new events, got %d", len(result.NewEvents))
		}
		if len(result.Changes) != 1 || result.Changes[0].ChangeType != "time" {
			t.Errorf("expected one time change, got %+v", result.Changes)
		}
	})
}

func TestDetectChanges(t *testing.T) {
	prev := NewCandidate("Show", "15/11/2025", "20:00", "Venue", "src")
	prev.Price = "R$ 50"
	cur := prev.Clone()
	cur.Price = "R$ 60"
	cur.Link = "https://sympla.com.br/e/1"

	changes := DetectChanges(prev, cur)
	if len(changes) != 2 {
		t.Fatalf("DetectChanges() returned %d changes, want 2", len(changes))
	}

	if got := DetectChanges(nil, cur); len(got) != 1 || got[0].ChangeType != "new" {
		t.Errorf("DetectChanges(nil) = %+v, want one new change", got)
	}
}

func TestSortByDate(t *testing.T) {
	events := []*Candidate{
		{Title: "C", Date: "20/11/2025", Time: "10:00"},
		{Title: "B", Date: "15/11/2025", Time: "21:00"},
		{Title: "Z", Date: "not a date"},
		{Title: "A", Date: "15/11/2025", Time: "19:00"},
	}
	SortByDate(events)

	want := []string{"A", "B", "C", "Z"}
	for i, w := range want {
		if events[i].Title != w {
			t.Errorf("position %d = %s, want %s", i, events[i].Title, w)
		}
	}
}
