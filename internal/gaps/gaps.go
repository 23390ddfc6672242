// Package gaps measures how far an approved event set is from the coverage a
// run is expected to deliver.
//
// Coverage is described by Rules:
//   - a global minimum over the counted weekdays (weekends by default) and a
//     minimum over all days
//   - per-category minimums
//   - required venues, each matched by any of its aliases
//   - per-day rules, e.g. every Saturday needs one outdoor event
//
// Example usage:
//
//	rules := gaps.DefaultRules(start, end)
//	rules.CategoryMin = map[string]int{"jazz": 4}
//
//	report := gaps.Analyze(approved, rules)
//	if report.HasGaps() {
//		// hand report to the retry coordinator
//	}
package gaps

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

const (
	DefaultMinCounted = 2
	DefaultMinTotal   = 10
)

// VenueRequirement is a venue that must have at least one approved event.
type VenueRequirement struct {
	Key     string
	Name    string
	Aliases []string
	// DedicatedSource marks venues fed by an always-populated source such as
	// a scraper; they are never reported missing.
	DedicatedSource bool
}

// DayRule requires Min events of Category (any category when empty) on every
// date in the window that falls on Weekday.
type DayRule struct {
	Weekday  time.Weekday
	Category string
	Min      int
}

// Rules describes the coverage expected from a run.
type Rules struct {
	WindowStart time.Time
	WindowEnd   time.Time

	// MinCounted applies to events on CountedDays. An empty CountedDays
	// counts every day.
	MinCounted  int
	CountedDays []time.Weekday
	MinTotal    int

	CategoryMin    map[string]int
	RequiredVenues []VenueRequirement
	DayRules       []DayRule
}

// DefaultRules returns the weekend-counting defaults for a window.
func DefaultRules(start, end time.Time) Rules {
	return Rules{
		WindowStart: start,
		WindowEnd:   end,
		MinCounted:  DefaultMinCounted,
		CountedDays: []time.Weekday{time.Saturday, time.Sunday},
		MinTotal:    DefaultMinTotal,
	}
}

// DefaultRequiredVenues are the venues a complete agenda always lists.
func DefaultRequiredVenues() []VenueRequirement {
	return []VenueRequirement{
		{Key: "teatro_municipal", Name: "Theatro Municipal", Aliases: []string{"Teatro Municipal", "Theatro Municipal"}},
		{Key: "sala_cecilia", Name: "Sala Cecília Meireles", Aliases: []string{"Sala Cecília Meireles", "Cecília Meireles", "Cecilia Meireles", "Sala Cecília Meirelles", "Cecília Meirelles"}},
		{Key: "blue_note", Name: "Blue Note Rio", Aliases: []string{"Blue Note Rio", "Blue Note", "BlueNote"}},
		{Key: "artemis", Name: "Artemis", Aliases: []string{"Artemis", "Artemis Torrefação", "Artemis - Torrefação Artesanal e Cafeteria"}},
	}
}

// VenueGap is a required venue with no approved event.
type VenueGap struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// DayGap is a date that misses a per-day rule.
type DayGap struct {
	Date     string `json:"date"`
	Weekday  string `json:"weekday"`
	Category string `json:"category,omitempty"`
	Have     int    `json:"have"`
	Need     int    `json:"need"`
}

// Report is the outcome of Analyze.
type Report struct {
	Total            int            `json:"total"`
	TotalCounted     int            `json:"total_counted"`
	GlobalDeficit    int            `json:"global_deficit"`
	CategoryCounts   map[string]int `json:"category_counts,omitempty"`
	CategoryDeficits map[string]int `json:"category_deficits,omitempty"`
	MissingVenues    []VenueGap     `json:"missing_venues,omitempty"`
	UncoveredDays    []DayGap       `json:"uncovered_days,omitempty"`
}

// HasGaps reports whether any minimum is unmet.
func (r Report) HasGaps() bool {
	return r.GlobalDeficit > 0 || len(r.CategoryDeficits) > 0 || len(r.MissingVenues) > 0 || len(r.UncoveredDays) > 0
}

// DeficitCount is the total number of events still needed.
func (r Report) DeficitCount() int {
	n := r.GlobalDeficit + len(r.MissingVenues)
	for _, d := range r.CategoryDeficits {
		n += d
	}
	for _, d := range r.UncoveredDays {
		n += d.Need - d.Have
	}
	return n
}

// String summarizes the report for logs.
func (r Report) String() string {
	if !r.HasGaps() {
		return "no gaps"
	}
	var parts []string
	if r.GlobalDeficit > 0 {
		parts = append(parts, fmt.Sprintf("%d more events", r.GlobalDeficit))
	}
	for _, cat := range sortedKeys(r.CategoryDeficits) {
		parts = append(parts, fmt.Sprintf("%s: %d", cat, r.CategoryDeficits[cat]))
	}
	for _, v := range r.MissingVenues {
		parts = append(parts, "venue "+v.Name)
	}
	for _, d := range r.UncoveredDays {
		parts = append(parts, fmt.Sprintf("%s %s %d/%d", d.Weekday, d.Date, d.Have, d.Need))
	}
	return strings.Join(parts, ", ")
}

// Analyze compares approved against rules. It has no side effects.
func Analyze(approved []*event.Candidate, rules Rules) Report {
	r := Report{
		Total:            len(approved),
		CategoryCounts:   make(map[string]int),
		CategoryDeficits: make(map[string]int),
	}

	counted := make(map[time.Weekday]bool, len(rules.CountedDays))
	for _, d := range rules.CountedDays {
		counted[d] = true
	}
	for _, c := range approved {
		day := event.ParseDate(c.Date)
		if len(counted) == 0 || (!day.IsZero() && counted[day.Weekday()]) {
			r.TotalCounted++
		}
	}
	r.GlobalDeficit = max(rules.MinCounted-r.TotalCounted, rules.MinTotal-r.Total, 0)

	for cat, need := range rules.CategoryMin {
		n := 0
		for _, c := range approved {
			if matchesCategory(c, cat) {
				n++
			}
		}
		r.CategoryCounts[cat] = n
		if n < need {
			r.CategoryDeficits[cat] = need - n
		}
	}

	for _, v := range rules.RequiredVenues {
		if v.DedicatedSource || hasVenue(approved, v) {
			continue
		}
		r.MissingVenues = append(r.MissingVenues, VenueGap{Key: v.Key, Name: v.Name})
	}

	r.UncoveredDays = uncoveredDays(approved, rules)
	return r
}

func uncoveredDays(approved []*event.Candidate, rules Rules) []DayGap {
	if len(rules.DayRules) == 0 || rules.WindowStart.IsZero() || rules.WindowEnd.IsZero() {
		return nil
	}

	byDate := make(map[string][]*event.Candidate)
	for _, c := range approved {
		if d, ok := event.NormalizeDate(c.Date); ok {
			byDate[d] = append(byDate[d], c)
		}
	}

	var out []DayGap
	end := event.Day(rules.WindowEnd)
	for day := event.Day(rules.WindowStart); !day.After(end); day = day.AddDate(0, 0, 1) {
		date := event.FormatDate(day)
		for _, rule := range rules.DayRules {
			if day.Weekday() != rule.Weekday {
				continue
			}
			have := 0
			for _, c := range byDate[date] {
				if rule.Category == "" || matchesCategory(c, rule.Category) {
					have++
				}
			}
			if have < rule.Min {
				out = append(out, DayGap{
					Date:     date,
					Weekday:  day.Weekday().String(),
					Category: rule.Category,
					Have:     have,
					Need:     rule.Min,
				})
			}
		}
	}
	return out
}

// matchesCategory is a loose match: sources label categories inconsistently
// ("Jazz", "jazz & blues", "atividades ao ar livre")
func matchesCategory(c *event.Candidate, category string) bool {
	want := event.NormalizeText(strings.ReplaceAll(category, "_", " "))
	got := event.NormalizeText(strings.ReplaceAll(c.Category, "_", " "))
	return want != "" && strings.Contains(got, want)
}

func hasVenue(approved []*event.Candidate, v VenueRequirement) bool {
	aliases := append([]string{v.Name}, v.Aliases...)
	for _, c := range approved {
		venue := event.NormalizeText(c.Venue)
		for _, alias := range aliases {
			if a := event.NormalizeText(alias); a != "" && strings.Contains(venue, a) {
				return true
			}
		}
	}
	return false
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
