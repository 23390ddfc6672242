package filter

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

func day(d, m int) *time.Time {
	t := time.Date(2025, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return &t
}

func agenda() []*event.Candidate {
	jazz := event.NewCandidate("Jazz Night", "15/11/2025", "20:00", "Blue Note Rio", "search") // Saturday
	jazz.Category = "Jazz"
	jazz.Price = "R$ 120"

	choro := event.NewCandidate("Roda de Choro", "18/11/2025", "19:00", "Bar do Ernesto", "search") // Tuesday
	choro.Category = "choro"
	choro.Price = "Entrada franca"

	expo := event.NewCandidate("Exposição Portinari", "01/11/2025", "", "CCBB Rio", "search")
	expo.Continuous = true
	expo.EndDate = "30/11/2025"
	expo.Category = "exposição"

	samba := event.NewCandidate("Samba da Pedra", "16/11/2025", "18:00", "Pedra do Sal", "search") // Sunday
	samba.Price = "R$ 30,00"

	return []*event.Candidate{jazz, choro, expo, samba}
}

func titles(evs []*event.Candidate) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Title)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		want   []string
	}{
		{
			name:   "empty filter matches all",
			filter: NewFilter(),
			want:   []string{"Jazz Night", "Roda de Choro", "Exposição Portinari", "Samba da Pedra"},
		},
		{
			name:   "date range keeps overlapping exhibition",
			filter: &Filter{DateFrom: day(16, 11), DateTo: day(20, 11)},
			want:   []string{"Roda de Choro", "Exposição Portinari", "Samba da Pedra"},
		},
		{
			name:   "weekends only",
			filter: &Filter{WeekendsOnly: true},
			want:   []string{"Jazz Night", "Exposição Portinari", "Samba da Pedra"},
		},
		{
			name:   "venue ignores accents and case",
			filter: &Filter{Venues: []string{"blue note", "PEDRA"}},
			want:   []string{"Jazz Night", "Samba da Pedra"},
		},
		{
			name:   "category",
			filter: &Filter{Categories: []string{"exposicao"}},
			want:   []string{"Exposição Portinari"},
		},
		{
			name:   "max price keeps free and unpriced events",
			filter: &Filter{MaxPrice: 50},
			want:   []string{"Roda de Choro", "Exposição Portinari", "Samba da Pedra"},
		},
		{
			name:   "criteria combine",
			filter: &Filter{WeekendsOnly: true, MaxPrice: 50, Titles: []string{"samba"}},
			want:   []string{"Samba da Pedra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titles(tt.filter.Apply(agenda()))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"R$ 80", 80, true},
		{"R$ 1.200,50", 1200.50, true},
		{"R$ 40 a R$ 120", 40, true},
		{"Grátis", 0, true},
		{"entrada franca", 0, true},
		{"consultar", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestString(t *testing.T) {
	if got := NewFilter().String(); got != "No active filters" {
		t.Errorf("String() = %q", got)
	}

	f := &Filter{DateFrom: day(15, 11), Venues: []string{"Blue Note"}, WeekendsOnly: true, MaxPrice: 50}
	want := "De: 15/11/2025 | Locais: Blue Note | Só fins de semana | Até R$ 50.00"
	if got := f.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestClone(t *testing.T) {
	f := &Filter{DateFrom: day(15, 11), Venues: []string{"Blue Note"}}
	c := f.Clone()
	c.Venues[0] = "Circo Voador"
	*c.DateFrom = c.DateFrom.AddDate(0, 0, 1)

	if f.Venues[0] != "Blue Note" {
		t.Error("Clone shares the venues slice")
	}
	if f.DateFrom.Day() != 15 {
		t.Error("Clone shares DateFrom")
	}
}
