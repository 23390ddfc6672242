package linkscore

import (
	"strings"
	"unicode"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

// DefaultThreshold is the minimum score for a link to count as quality evidence.
const DefaultThreshold = 65

// DefaultAcceptGeneric lists event types that legitimately have no named artists.
var DefaultAcceptGeneric = []string{"roda de choro", "jam session", "open mic", "sarau"}

// Options configures a Scorer
type Options struct {
	Threshold     int
	AcceptGeneric []string
}

// Report is the outcome of scoring one link
type Report struct {
	Score     int      `json:"score"`
	IsQuality bool     `json:"is_quality"`
	Issues    []string `json:"issues,omitempty"`
	Threshold int      `json:"threshold"`
}

// Scorer maps link evidence and a candidate to a Report. It has no mutable
// state.
type Scorer struct {
	threshold     int
	acceptGeneric []string
}

// New creates a Scorer. A zero threshold selects DefaultThreshold.
func New(opts Options) *Scorer {
	s := &Scorer{threshold: opts.Threshold}
	if s.threshold == 0 {
		s.threshold = DefaultThreshold
	}
	for _, g := range opts.AcceptGeneric {
		s.acceptGeneric = append(s.acceptGeneric, event.NormalizeTitle(g))
	}
	return s
}

// Threshold returns the quality cut-off in use.
func (s *Scorer) Threshold() int {
	return s.threshold
}

// Score computes the quality report for ev against c.
func (s *Scorer) Score(ev *event.LinkEvidence, c *event.Candidate) Report {
	if ev == nil {
		ev = &event.LinkEvidence{}
	}
	score := 0
	var issues []string

	link := ev.URL
	if link == "" {
		link = c.Link
	}
	if link != "" && IsArtistOrVenueSite(link, c.Title) {
		score -= 50
		issues = append(issues, "link is the artist or venue institutional site, not a sales platform")
	}

	if ev.Title != "" {
		pageWords := wordSet(ev.Title)
		eventWords := wordSet(c.Title)
		if len(pageWords) > 0 && len(eventWords) > 0 {
			common := 0
			for w := range eventWords {
				if pageWords[w] {
					common++
				}
			}
			similarity := float64(common) / float64(len(eventWords))
			switch {
			case similarity >= 0.5:
				score += 30
			case similarity >= 0.3:
				score += 15
				issues = append(issues, "page title matches the event only partially")
			default:
				issues = append(issues, "page title differs from the event")
			}
		} else {
			score += 10
		}
	} else {
		issues = append(issues, "page has no identifiable title")
	}

	if len(ev.Artists) > 0 {
		score += 25
	} else if s.acceptsGeneric(c.Title) {
		score += 20
		issues = append(issues, "no named artists (acceptable for this event type)")
	} else {
		score += 10
		issues = append(issues, "no named artists (partial credit)")
	}

	if len(ev.Dates) > 0 {
		score += 10
	} else {
		issues = append(issues, "no date found on page")
	}

	if ev.Time != "" {
		score += 5
	} else {
		issues = append(issues, "no time found on page")
	}

	if ev.Price != "" {
		score += 5
	} else if strings.Contains(strings.ToLower(c.Price), "consultar") {
		score += 3
	}

	if ev.HasPurchaseAffordance {
		score += 10
	} else {
		issues = append(issues, "no ticket purchase link on page")
	}

	if len(ev.Description) > 100 {
		score += 5
	}

	if ev.IsGenericPage {
		score -= 20
		issues = append(issues, "link is a generic page (home or listing)")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Report{
		Score:     score,
		IsQuality: score >= s.threshold,
		Issues:    issues,
		Threshold: s.threshold,
	}
}

func (s *Scorer) acceptsGeneric(title string) bool {
	t := event.NormalizeTitle(title)
	for _, g := range s.acceptGeneric {
		if g != "" && strings.Contains(t, g) {
			return true
		}
	}
	return false
}

// tokens splits text into lowercase accent-free words
func tokens(text string) []string {
	return strings.FieldsFunc(event.NormalizeText(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range tokens(text) {
		set[w] = true
	}
	return set
}
