// Package filter narrows an approved agenda for output.
//
// Filters combine criteria with AND; a criterion with several values matches
// any of them:
//   - Date range (from/to dates, inclusive)
//   - Title, venue and category (substring matching, accent and case-insensitive)
//   - Weekends only (Saturday/Sunday)
//   - Maximum price in reais; free events always pass
//
// Example usage:
//
//	f := filter.NewFilter()
//	f.WeekendsOnly = true
//	f.Venues = []string{"Blue Note"}
//
//	filtered := f.Apply(approved)
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

// Filter represents event filtering criteria
type Filter struct {
	// Date range filtering
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	Titles     []string `json:"titles,omitempty"`
	Venues     []string `json:"venues,omitempty"`
	Categories []string `json:"categories,omitempty"`

	// Weekend-only filtering (Saturday/Sunday)
	WeekendsOnly bool `json:"weekends_only,omitempty"`

	// MaxPrice is in reais. Events whose price cannot be read pass.
	MaxPrice float64 `json:"max_price,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
// The filter will match all events until criteria are added.
func NewFilter() *Filter {
	return &Filter{}
}

// IsEmpty checks if the filter has any active criteria.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Titles) == 0 &&
		len(f.Venues) == 0 &&
		len(f.Categories) == 0 &&
		!f.WeekendsOnly &&
		f.MaxPrice == 0
}

// Matches checks if an event matches all active filter criteria. Date
// criteria skip events whose date cannot be parsed. A continuous event
// matches a date range it overlaps.
func (f *Filter) Matches(evt *event.Candidate) bool {
	if f.IsEmpty() {
		return true
	}

	first := event.ParseDate(evt.Date)
	last := first
	if end := event.ParseDate(evt.EndDate); evt.Continuous && !end.IsZero() {
		last = end
	}

	if !first.IsZero() {
		if f.DateFrom != nil && last.Before(event.Day(*f.DateFrom)) {
			return false
		}
		if f.DateTo != nil && first.After(event.Day(*f.DateTo)) {
			return false
		}
		if f.WeekendsOnly && !event.IsWeekend(first) && !(evt.Continuous && last.Sub(first) >= 6*24*time.Hour) {
			return false
		}
	}

	if !containsAny(evt.Title, f.Titles) || !containsAny(evt.Venue, f.Venues) || !containsAny(evt.Category, f.Categories) {
		return false
	}

	if f.MaxPrice > 0 {
		if price, ok := ParsePrice(evt.Price); ok && price > f.MaxPrice {
			return false
		}
	}
	return true
}

// containsAny reports whether value contains one of wants. No wants always
// matches.
func containsAny(value string, wants []string) bool {
	if len(wants) == 0 {
		return true
	}
	v := event.NormalizeText(value)
	for _, w := range wants {
		if n := event.NormalizeText(w); n != "" && strings.Contains(v, n) {
			return true
		}
	}
	return false
}

// Apply returns the events matching the filter, in order. An empty filter
// returns events unchanged.
func (f *Filter) Apply(events []*event.Candidate) []*event.Candidate {
	if f.IsEmpty() {
		return events
	}

	filtered := make([]*event.Candidate, 0, len(events))
	for _, evt := range events {
		if f.Matches(evt) {
			filtered = append(filtered, evt)
		}
	}
	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "De: 15/11/2025 | Até: 30/11/2025 | Locais: Blue Note | Só fins de semana"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string
	if f.DateFrom != nil {
		parts = append(parts, "De: "+event.FormatDate(*f.DateFrom))
	}
	if f.DateTo != nil {
		parts = append(parts, "Até: "+event.FormatDate(*f.DateTo))
	}
	if len(f.Titles) > 0 {
		parts = append(parts, "Títulos: "+strings.Join(f.Titles, ", "))
	}
	if len(f.Venues) > 0 {
		parts = append(parts, "Locais: "+strings.Join(f.Venues, ", "))
	}
	if len(f.Categories) > 0 {
		parts = append(parts, "Categorias: "+strings.Join(f.Categories, ", "))
	}
	if f.WeekendsOnly {
		parts = append(parts, "Só fins de semana")
	}
	if f.MaxPrice > 0 {
		parts = append(parts, fmt.Sprintf("Até R$ %.2f", f.MaxPrice))
	}
	return strings.Join(parts, " | ")
}

var (
	freePattern  = regexp.MustCompile(`(?i)\b(gr[aá]tis|gratuito|gratuita|free|entrada franca)\b`)
	pricePattern = regexp.MustCompile(`(\d+(?:\.\d{3})*)(?:,(\d{1,2}))?`)
)

// ParsePrice reads the lowest price in a Brazilian price literal such as
// "R$ 80", "R$ 1.200,50" or "R$ 40 a R$ 120". Free events are 0.
func ParsePrice(text string) (float64, bool) {
	if freePattern.MatchString(text) {
		return 0, true
	}

	lowest, found := 0.0, false
	for _, m := range pricePattern.FindAllStringSubmatch(text, -1) {
		literal := strings.ReplaceAll(m[1], ".", "")
		if m[2] != "" {
			literal += "." + m[2]
		}
		v, err := strconv.ParseFloat(literal, 64)
		if err != nil || v == 0 {
			continue
		}
		if !found || v < lowest {
			lowest, found = v, true
		}
	}
	return lowest, found
}

// Clone creates a deep copy of the filter.
func (f *Filter) Clone() *Filter {
	clone := &Filter{WeekendsOnly: f.WeekendsOnly, MaxPrice: f.MaxPrice}
	if f.DateFrom != nil {
		df := *f.DateFrom
		clone.DateFrom = &df
	}
	if f.DateTo != nil {
		dt := *f.DateTo
		clone.DateTo = &dt
	}
	clone.Titles = append([]string(nil), f.Titles...)
	clone.Venues = append([]string(nil), f.Venues...)
	clone.Categories = append([]string(nil), f.Categories...)
	return clone
}
