package gaps

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

var (
	start = time.Date(2025, 11, 8, 0, 0, 0, 0, time.UTC)  // Saturday
	end   = time.Date(2025, 11, 29, 0, 0, 0, 0, time.UTC) // Saturday
)

func ev(title, date, venue, category string) *event.Candidate {
	c := event.NewCandidate(title, date, "20:00", venue, "test")
	c.Category = category
	return c
}

func TestAnalyzeGlobal(t *testing.T) {
	tests := []struct {
		name        string
		approved    []*event.Candidate
		countedDays []time.Weekday
		minCounted  int
		minTotal    int
		wantCounted int
		wantDeficit int
	}{
		{
			name:        "weekend minimum met",
			approved:    []*event.Candidate{ev("A", "15/11/2025", "X", ""), ev("B", "16/11/2025", "X", "")},
			countedDays: []time.Weekday{time.Saturday, time.Sunday},
			minCounted:  2,
			minTotal:    2,
			wantCounted: 2,
			wantDeficit: 0,
		},
		{
			name:        "weekday events are not counted",
			approved:    []*event.Candidate{ev("A", "12/11/2025", "X", ""), ev("B", "13/11/2025", "X", ""), ev("C", "14/11/2025", "X", "")},
			countedDays: []time.Weekday{time.Saturday, time.Sunday},
			minCounted:  2,
			minTotal:    2,
			wantCounted: 0,
			wantDeficit: 2,
		},
		{
			name:        "empty counted set counts all days",
			approved:    []*event.Candidate{ev("A", "12/11/2025", "X", ""), ev("B", "13/11/2025", "X", "")},
			minCounted:  2,
			minTotal:    2,
			wantCounted: 2,
			wantDeficit: 0,
		},
		{
			name:        "total minimum dominates",
			approved:    []*event.Candidate{ev("A", "15/11/2025", "X", ""), ev("B", "16/11/2025", "X", "")},
			countedDays: []time.Weekday{time.Saturday, time.Sunday},
			minCounted:  2,
			minTotal:    10,
			wantCounted: 2,
			wantDeficit: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := Rules{WindowStart: start, WindowEnd: end, MinCounted: tt.minCounted, MinTotal: tt.minTotal, CountedDays: tt.countedDays}
			got := Analyze(tt.approved, rules)
			if got.TotalCounted != tt.wantCounted {
				t.Errorf("TotalCounted = %d, want %d", got.TotalCounted, tt.wantCounted)
			}
			if got.GlobalDeficit != tt.wantDeficit {
				t.Errorf("GlobalDeficit = %d, want %d", got.GlobalDeficit, tt.wantDeficit)
			}
			if got.HasGaps() != (tt.wantDeficit > 0) {
				t.Errorf("HasGaps() = %v", got.HasGaps())
			}
		})
	}
}

func TestAnalyzeNoGaps(t *testing.T) {
	rules := DefaultRules(start, end)
	rules.MinTotal = 2
	got := Analyze([]*event.Candidate{ev("A", "15/11/2025", "X", ""), ev("B", "16/11/2025", "X", "")}, rules)
	if got.HasGaps() {
		t.Errorf("HasGaps() = true: %s", got)
	}
	if got.DeficitCount() != 0 {
		t.Errorf("DeficitCount() = %d, want 0", got.DeficitCount())
	}
	if got.String() != "no gaps" {
		t.Errorf("String() = %q", got.String())
	}
}

func TestAnalyzeCategories(t *testing.T) {
	approved := []*event.Candidate{
		ev("A", "15/11/2025", "X", "Jazz & Blues"),
		ev("B", "16/11/2025", "X", "jazz"),
		ev("C", "16/11/2025", "X", "samba"),
		ev("D", "22/11/2025", "X", "Atividades ao ar livre"),
	}
	rules := Rules{CategoryMin: map[string]int{"jazz": 2, "ar_livre": 1, "comedia": 2}}

	got := Analyze(approved, rules)
	if diff := cmp.Diff(map[string]int{"comedia": 2}, got.CategoryDeficits); diff != "" {
		t.Errorf("CategoryDeficits mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"jazz": 2, "ar_livre": 1, "comedia": 0}, got.CategoryCounts); diff != "" {
		t.Errorf("CategoryCounts mismatch (-want +got):\n%s", diff)
	}
	if got.DeficitCount() != 2 {
		t.Errorf("DeficitCount() = %d, want 2", got.DeficitCount())
	}
}

func TestAnalyzeRequiredVenues(t *testing.T) {
	venues := DefaultRequiredVenues()
	venues[0].DedicatedSource = true // teatro_municipal

	approved := []*event.Candidate{
		ev("Recital", "15/11/2025", "Sala Cecilia Meireles - Lapa", ""),
		ev("Jazz", "16/11/2025", "BlueNote Copacabana", ""),
	}
	got := Analyze(approved, Rules{RequiredVenues: venues})

	want := []VenueGap{{Key: "artemis", Name: "Artemis"}}
	if diff := cmp.Diff(want, got.MissingVenues); diff != "" {
		t.Errorf("MissingVenues mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeDayRules(t *testing.T) {
	approved := []*event.Candidate{
		ev("Feira", "15/11/2025", "Aterro", "ar livre"),
		ev("Show", "22/11/2025", "Circo Voador", "shows"),
	}
	rules := Rules{
		WindowStart: start,
		WindowEnd:   end,
		DayRules:    []DayRule{{Weekday: time.Saturday, Category: "ar livre", Min: 1}},
	}

	got := Analyze(approved, rules)
	want := []DayGap{
		{Date: "08/11/2025", Weekday: "Saturday", Category: "ar livre", Have: 0, Need: 1},
		{Date: "22/11/2025", Weekday: "Saturday", Category: "ar livre", Have: 0, Need: 1},
		{Date: "29/11/2025", Weekday: "Saturday", Category: "ar livre", Have: 0, Need: 1},
	}
	if diff := cmp.Diff(want, got.UncoveredDays); diff != "" {
		t.Errorf("UncoveredDays mismatch (-want +got):\n%s", diff)
	}
	if got.DeficitCount() != 3 {
		t.Errorf("DeficitCount() = %d, want 3", got.DeficitCount())
	}
}
