package linkfetch

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

var months = map[string]time.Month{
	"janeiro": time.January, "fevereiro": time.February, "marco": time.March,
	"abril": time.April, "maio": time.May, "junho": time.June, "julho": time.July,
	"agosto": time.August, "setembro": time.September, "outubro": time.October,
	"novembro": time.November, "dezembro": time.December,

	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,

	"jan": time.January, "fev": time.February, "feb": time.February, "mar": time.March,
	"abr": time.April, "apr": time.April, "mai": time.May, "jun": time.June,
	"jul": time.July, "ago": time.August, "aug": time.August, "set": time.September,
	"sep": time.September, "out": time.October, "oct": time.October,
	"nov": time.November, "dez": time.December, "dec": time.December,
}

const monthNames = `(janeiro|fevereiro|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro|` +
	`january|february|march|april|may|june|july|august|september|october|november|december|` +
	`jan|fev|feb|mar|abr|apr|mai|jun|jul|ago|aug|set|sep|out|oct|nov|dez|dec)\.?`

var (
	numericDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	// the day may run straight into the time part: 2025-11-15T20:00
	isoDate = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})(?:[tT]|\b)`)
	// 15 de novembro de 2025, 15 de nov. 2025
	ptTextDate = regexp.MustCompile(`\b(\d{1,2})\s+de\s+` + monthNames + `\s+(?:de\s+)?(\d{4})\b`)
	// November 15, 2025
	enMonthFirst = regexp.MustCompile(`\b` + monthNames + `\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	// 15 November 2025
	enDayFirst = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+` + monthNames + `\s+(\d{4})\b`)

	clockText = regexp.MustCompile(`\b([01]?\d|2[0-3])\s*(?::|h)\s*([0-5]\d)\b`)
	isoClock  = regexp.MustCompile(`T(\d{2}):(\d{2})`)
)

// canonicalDate validates the parts and formats them as DD/MM/YYYY
func canonicalDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return event.FormatDate(t), true
}

// ExtractDates returns every recognizable date in text as canonical literals,
// deduplicated in order of first appearance.
func ExtractDates(text string) []string {
	lower := event.NormalizeText(text)
	var found []string
	add := func(year, month, day int) {
		if d, ok := canonicalDate(year, month, day); ok {
			found = append(found, d)
		}
	}

	for _, m := range numericDate.FindAllStringSubmatch(lower, -1) {
		add(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	for _, m := range isoDate.FindAllStringSubmatch(lower, -1) {
		add(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	for _, m := range ptTextDate.FindAllStringSubmatch(lower, -1) {
		add(atoi(m[3]), int(months[m[2]]), atoi(m[1]))
	}
	for _, m := range enMonthFirst.FindAllStringSubmatch(lower, -1) {
		add(atoi(m[3]), int(months[m[1]]), atoi(m[2]))
	}
	for _, m := range enDayFirst.FindAllStringSubmatch(lower, -1) {
		add(atoi(m[3]), int(months[m[2]]), atoi(m[1]))
	}
	return unique(found)
}

// ExtractTime returns the first clock time in text as HH:MM.
func ExtractTime(text string) string {
	m := clockText.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%02d:%s", atoi(m[1]), m[2])
}

// dateFromISO parses "2025-11-15T20:00:00-03:00" style values into a date
// literal and, when present, a clock time.
func dateFromISO(value string) (date, clock string) {
	if m := isoDate.FindStringSubmatch(value); m != nil {
		date, _ = canonicalDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := isoClock.FindStringSubmatch(value); m != nil && date != "" {
		if h := atoi(m[1]); h <= 23 {
			clock = fmt.Sprintf("%02d:%s", h, m[2])
		}
	}
	return date, clock
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func unique(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
