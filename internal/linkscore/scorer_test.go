package linkscore

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

func TestScoreLowEvidence(t *testing.T) {
	s := New(Options{Threshold: 50})
	ev := &event.LinkEvidence{
		URL:           "https://www.sympla.com.br/eventos/rio-de-janeiro",
		FetchStatus:   event.FetchOK,
		IsGenericPage: true,
	}
	c := &event.Candidate{Title: "Quarteto de Cordas", Date: "15/11/2025", Time: "20:00"}

	got := s.Score(ev, c)
	if got.Score > 20 {
		t.Errorf("Score() = %d, want <= 20", got.Score)
	}
	if got.IsQuality {
		t.Error("Score() IsQuality = true, want false")
	}
}

func TestScoreComponents(t *testing.T) {
	s := New(Options{Threshold: 65, AcceptGeneric: DefaultAcceptGeneric})
	longDesc := strings.Repeat("a", 101)

	tests := []struct {
		name string
		ev   event.LinkEvidence
		evt  event.Candidate
		want int
	}{
		{
			name: "full evidence",
			ev: event.LinkEvidence{
				URL: "https://www.sympla.com.br/evento/jazz-night/1", Title: "Jazz Night - Sympla",
				Artists: []string{"Trio"}, Dates: []string{"15/11/2025"}, Time: "20:00",
				Price: "R$ 50", HasPurchaseAffordance: true, Description: longDesc,
			},
			evt:  event.Candidate{Title: "Jazz Night"},
			want: 30 + 25 + 10 + 5 + 5 + 10 + 5,
		},
		{
			name: "partial title match",
			ev:   event.LinkEvidence{URL: "https://www.sympla.com.br/e/1", Title: "Noite de Jazz"},
			evt:  event.Candidate{Title: "Jazz com Trio Especial"},
			// jazz matches 1 of 4 words (0.25) -> no title credit, no artists +10
			want: 10,
		},
		{
			name: "accept generic type without artists",
			ev:   event.LinkEvidence{URL: "https://www.sympla.com.br/e/1", Title: "Roda de Choro"},
			evt:  event.Candidate{Title: "Roda de Choro"},
			want: 30 + 20,
		},
		{
			name: "consultar price",
			ev:   event.LinkEvidence{URL: "https://www.sympla.com.br/e/1"},
			evt:  event.Candidate{Title: "Show", Price: "Consultar"},
			want: 10 + 3,
		},
		{
			name: "artist site penalty",
			ev:   event.LinkEvidence{URL: "https://www.joaobosco.com.br/agenda/rio", Title: "João Bosco"},
			evt:  event.Candidate{Title: "João Bosco"},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := tt.ev
			got := s.Score(&ev, &tt.evt)
			if got.Score != tt.want {
				t.Errorf("Score() = %d, want %d (issues %v)", got.Score, tt.want, got.Issues)
			}
		})
	}
}

func TestScoreIsPure(t *testing.T) {
	s := New(Options{Threshold: 50, AcceptGeneric: DefaultAcceptGeneric})
	ev := &event.LinkEvidence{
		URL: "https://www.eventbrite.com.br/e/sarau-123", Title: "Sarau Literário",
		Dates: []string{"15/11/2025"}, HasPurchaseAffordance: true,
	}
	c := &event.Candidate{Title: "Sarau Literário", Price: "consultar"}

	first := s.Score(ev, c)
	for i := 0; i < 5; i++ {
		if got := s.Score(ev, c); !reflect.DeepEqual(got, first) {
			t.Fatalf("Score() run %d = %+v, want %+v", i, got, first)
		}
	}
}

func TestScoreClamped(t *testing.T) {
	s := New(Options{})
	ev := &event.LinkEvidence{URL: "https://www.jazznight.com/", IsGenericPage: true}
	got := s.Score(ev, &event.Candidate{Title: "Jazz Night"})
	if got.Score != 0 {
		t.Errorf("Score() = %d, want 0", got.Score)
	}
	if got.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %d, want %d", got.Threshold, DefaultThreshold)
	}
}
