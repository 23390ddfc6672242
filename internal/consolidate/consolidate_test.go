package consolidate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

func ev(title, date, clock, venue string) *event.Candidate {
	return event.NewCandidate(title, date, clock, venue, "test")
}

func titles(events []*event.Candidate) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}

func TestDedupe(t *testing.T) {
	input := []*event.Candidate{
		ev("Jazz Night", "15/11/2025", "20:00", "Venue A"),
		ev("JAZZ NIGHT", "15/11/2025", "20:00", "venue a"),
		ev("Jazz Night", "15/11/2025", "22:00", "Venue A"),
		ev("Jazz  Night", "15/11/2025", "20h", "Venue A"),
		ev("Café Concerto", "16/11/2025", "18:00", "Venue B"),
		ev("Cafe Concerto", "16/11/2025", "18:00", "Venue B"),
	}

	got, removed := Dedupe(input)
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	want := []string{"Jazz Night", "Jazz Night", "Café Concerto"}
	if diff := cmp.Diff(want, titles(got)); diff != "" {
		t.Errorf("Dedupe() mismatch (-want +got):\n%s", diff)
	}
	if got[1].Time != "22:00" {
		t.Errorf("second kept event time = %q, want 22:00", got[1].Time)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	input := []*event.Candidate{
		ev("A", "15/11/2025", "20:00", "X"),
		ev("a", "15/11/2025", "20:00", "X"),
		ev("B", "16/11/2025", "", "X"),
		ev("B", "16/11/2025", "", "Y"),
	}
	once, _ := Dedupe(input)
	twice, removed := Dedupe(once)
	if removed != 0 {
		t.Errorf("second pass removed %d, want 0", removed)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Dedupe not idempotent (-once +twice):\n%s", diff)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Jazz Night - 15/11/2025", "Jazz Night - 22/11/2025", true},
		{"Samba de Roda (Sábado)", "Samba de Roda", true},
		{"Quarteto de Cordas", "Quarteto de Cordas Sexta-feira", true},
		{"Concerto Jazz Night", "Concerto Jazz Nights", true},
		{"Jazz Night", "Rock Night", false},
		{"Orquestra Sinfônica", "Orquestra Sinfônica Brasileira", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			got := Similarity(tt.a, tt.b) >= DefaultSimilarity
			if got != tt.same {
				t.Errorf("Similarity(%q, %q) = %.3f, same = %v, want %v", tt.a, tt.b, Similarity(tt.a, tt.b), got, tt.same)
			}
		})
	}
}

func TestConsolidateRecurring(t *testing.T) {
	first := ev("Noite de Choro", "22/11/2025", "20:00", "Bar do Zé")
	first.Description = "short"
	second := ev("Noite de Choro", "15/11/2025", "19:30", "bar do zé")
	third := ev("Noite de Choro - 08/11/2025", "08/11/2025", "19:00", "Bar do Zé")
	third.Description = "the longest description of them all"
	other := ev("Rock Night", "10/11/2025", "21:00", "Bar do Zé")

	c := New(Options{})
	got, stats := c.Consolidate([]*event.Candidate{first, second, other, third})

	if len(got) != 2 {
		t.Fatalf("Consolidate() returned %d events, want 2: %v", len(got), titles(got))
	}
	rep := got[0]
	if rep.Title != "Noite de Choro" || rep.Date != "08/11/2025" {
		t.Errorf("representative = %q on %s, want Noite de Choro on 08/11/2025", rep.Title, rep.Date)
	}
	if !rep.IsRecurring {
		t.Error("IsRecurring = false, want true")
	}
	wantOcc := []event.Occurrence{
		{Date: "08/11/2025", Time: "19:00"},
		{Date: "15/11/2025", Time: "19:30"},
		{Date: "22/11/2025", Time: "20:00"},
	}
	if diff := cmp.Diff(wantOcc, rep.Occurrences); diff != "" {
		t.Errorf("occurrences mismatch (-want +got):\n%s", diff)
	}
	if rep.Time != "19:00-20:00" {
		t.Errorf("Time = %q, want 19:00-20:00", rep.Time)
	}
	if rep.Description != third.Description {
		t.Errorf("Description = %q, want the longest one", rep.Description)
	}
	if got[1].Title != "Rock Night" || got[1].IsRecurring {
		t.Errorf("second event = %+v, want untouched Rock Night", got[1])
	}
	if diff := cmp.Diff(Stats{Merged: 2, Recurring: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if third.IsRecurring || third.Title != "Noite de Choro - 08/11/2025" {
		t.Error("Consolidate modified its input")
	}
}

func TestConsolidateSeparatesGroups(t *testing.T) {
	tests := []struct {
		name  string
		input []*event.Candidate
		want  int
	}{
		{
			name: "different venue",
			input: []*event.Candidate{
				ev("Jazz Night", "15/11/2025", "20:00", "Venue A"),
				ev("Jazz Night", "22/11/2025", "20:00", "Venue B"),
			},
			want: 2,
		},
		{
			name: "outside time tolerance",
			input: []*event.Candidate{
				ev("Jazz Night", "15/11/2025", "18:00", "Venue A"),
				ev("Jazz Night", "22/11/2025", "21:00", "Venue A"),
			},
			want: 2,
		},
		{
			name: "missing time",
			input: []*event.Candidate{
				ev("Jazz Night", "15/11/2025", "", "Venue A"),
				ev("Jazz Night", "22/11/2025", "", "Venue A"),
			},
			want: 2,
		},
		{
			name: "venue alias",
			input: []*event.Candidate{
				ev("Quarteto", "15/11/2025", "19:00", "CCBB Teatro I"),
				ev("Quarteto", "22/11/2025", "19:00", "CCBB Rio - Centro Cultural Banco do Brasil"),
			},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := New(Options{}).Consolidate(tt.input)
			if len(got) != tt.want {
				t.Errorf("Consolidate() returned %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func occurrenceCount(events []*event.Candidate) int {
	n := 0
	for _, e := range events {
		if len(e.Occurrences) > 0 {
			n += len(e.Occurrences)
		} else {
			n++
		}
	}
	return n
}

func TestConsolidatePreservesOccurrences(t *testing.T) {
	input := []*event.Candidate{
		ev("Jazz Night", "08/11/2025", "20:00", "Venue A"),
		ev("Jazz Night", "15/11/2025", "20:00", "Venue A"),
		ev("Jazz Night", "22/11/2025", "20:30", "Venue A"),
		ev("Samba", "09/11/2025", "17:00", "Venue B"),
		ev("Samba", "16/11/2025", "17:00", "Venue B"),
		ev("Solo Show", "10/11/2025", "21:00", "Venue C"),
	}

	c := New(Options{})
	once, _ := c.Consolidate(input)
	if got := occurrenceCount(once); got != len(input) {
		t.Errorf("occurrence count = %d, want %d", got, len(input))
	}
	if len(once) != 3 {
		t.Errorf("Consolidate() returned %d events, want 3", len(once))
	}

	twice, stats := c.Consolidate(once)
	if diff := cmp.Diff(once, twice, cmpopts.IgnoreFields(event.Candidate{}, "Notes")); diff != "" {
		t.Errorf("second pass changed the result (-once +twice):\n%s", diff)
	}
	if stats.Merged != 0 {
		t.Errorf("second pass merged %d events", stats.Merged)
	}
}

func TestConsolidateContinuous(t *testing.T) {
	a := ev("Exposição Tarsila", "08/11/2025", "", "CCBB Teatro I")
	b := ev("Exposição Tarsila", "20/11/2025", "", "CCBB Rio - Centro Cultural Banco do Brasil")
	b.Description = "retrospective of the painter's work"
	c := ev("Exposição Tarsila", "14/11/2025", "", "CCBB Cinema")
	single := ev("Peça", "12/11/2025", "20:00", "Teatro")
	single.Description = "temporada de estreia"

	got, stats := New(Options{}).Consolidate([]*event.Candidate{b, a, c, single})
	if len(got) != 2 {
		t.Fatalf("Consolidate() returned %d events, want 2", len(got))
	}
	exhibit := got[0]
	if !exhibit.Continuous || exhibit.Date != "08/11/2025" || exhibit.EndDate != "20/11/2025" {
		t.Errorf("exhibit = continuous %v, %s..%s; want 08/11/2025..20/11/2025", exhibit.Continuous, exhibit.Date, exhibit.EndDate)
	}
	if exhibit.Description != b.Description {
		t.Errorf("Description = %q", exhibit.Description)
	}
	if !got[1].Continuous || got[1].EndDate != "" {
		t.Errorf("single season = %+v, want continuous without end date", got[1])
	}
	if diff := cmp.Diff(Stats{Merged: 2, Continuous: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestCapPerVenue(t *testing.T) {
	input := []*event.Candidate{
		ev("A", "08/11/2025", "20:00", "Blue Note"),
		ev("B", "09/11/2025", "20:00", "blue note"),
		ev("C", "10/11/2025", "20:00", "Blue Note"),
		ev("D", "10/11/2025", "20:00", ""),
		ev("E", "10/11/2025", "20:00", "Other"),
	}
	kept, dropped := CapPerVenue(input, 2, nil)
	if diff := cmp.Diff([]string{"A", "B", "D", "E"}, titles(kept)); diff != "" {
		t.Errorf("kept mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"C"}, titles(dropped)); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}

	all, none := CapPerVenue(input, 0, nil)
	if len(all) != len(input) || len(none) != 0 {
		t.Errorf("CapPerVenue(0) = %d kept, %d dropped", len(all), len(none))
	}
}
