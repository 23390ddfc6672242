package event

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date literal used across the pipeline.
const DateLayout = "02/01/2006"

var (
	ErrTimeFormat    = errors.New("time format not recognized")
	ErrInvalidHour   = errors.New("hour out of range")
	ErrInvalidMinute = errors.New("minute out of range")
)

// Accepted input layouts, canonical first
var dateLayouts = []string{
	DateLayout,
	"2/1/2006",
	"2006-01-02",
	"02/01/06",
	"02.01.2006",
}

// ParseDate attempts to parse a date literal into a time.Time.
// Returns time.Time{} (zero value) if parsing fails.
// Supports formats: "15/11/2025", "5/1/2025", "2025-11-15", "15/11/25",
// "15.11.2025" and ISO timestamps. A trailing clock time is ignored.
func ParseDate(dateText string) time.Time {
	dateText = strings.TrimSpace(dateText)
	if dateText == "" {
		return time.Time{}
	}
	if fields := strings.Fields(dateText); len(fields) > 1 {
		dateText = fields[0]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, dateText); err == nil {
			return t
		}
	}

	// "2025-11-15T20:00:00-03:00" and friends
	if len(dateText) > 10 && dateText[10] == 'T' {
		if t, err := time.Parse("2006-01-02", dateText[:10]); err == nil {
			return t
		}
	}

	return time.Time{}
}

// FormatDate renders t in the canonical DD/MM/YYYY literal.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NormalizeDate returns the canonical literal for dateText, or false when
// the text is not a recognizable date.
func NormalizeDate(dateText string) (string, bool) {
	t := ParseDate(dateText)
	if t.IsZero() {
		return "", false
	}
	return FormatDate(t), true
}

// Day truncates t to a UTC calendar day, the representation ParseDate returns.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// InWindow reports whether the date literal falls within [start, end], inclusive.
func InWindow(dateText string, start, end time.Time) bool {
	d := ParseDate(dateText)
	if d.IsZero() {
		return false
	}
	return !d.Before(Day(start)) && !d.After(Day(end))
}

// IsWeekend reports whether t is a Saturday or Sunday
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// "20:00", "8:30", "20h", "20h30", "20:00h"
var clockPattern = regexp.MustCompile(`^(\d{1,2})\s*[:hH]\s*(\d{2})?\s*(?:h|hs)?$`)

// ParseClock extracts hour and minute from a clock literal without range checks.
func ParseClock(text string) (hour, minute int, err error) {
	m := clockPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return 0, 0, ErrTimeFormat
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	return hour, minute, nil
}

// splitRange separates "19:00-21:00" or "19h às 21h" into its bounds
func splitRange(text string) []string {
	for _, sep := range []string{"-", "–", " às ", " as ", " to "} {
		if strings.Contains(text, sep) {
			return strings.SplitN(text, sep, 2)
		}
	}
	return []string{text}
}

// NormalizeTime validates a clock time (or range) and returns it as "HH:MM"
// or "HH:MM-HH:MM". Errors wrap ErrTimeFormat, ErrInvalidHour or ErrInvalidMinute.
func NormalizeTime(text string) (string, error) {
	parts := splitRange(strings.TrimSpace(text))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		h, m, err := ParseClock(p)
		if err != nil {
			return "", fmt.Errorf("%q: %w", text, err)
		}
		if h < 0 || h > 23 {
			return "", fmt.Errorf("%q: %w", text, ErrInvalidHour)
		}
		if m < 0 || m > 59 {
			return "", fmt.Errorf("%q: %w", text, ErrInvalidMinute)
		}
		out = append(out, fmt.Sprintf("%02d:%02d", h, m))
	}
	return strings.Join(out, "-"), nil
}

// ClockMinutes returns the start time of text as minutes after midnight.
func ClockMinutes(text string) (int, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	normalized, err := NormalizeTime(text)
	if err != nil {
		return 0, false
	}
	h, m, _ := ParseClock(splitRange(normalized)[0])
	return h*60 + m, true
}

// StartsAt combines a date literal and a clock literal into an instant in loc.
// The zero time is returned when either part is unparseable.
func StartsAt(dateText, clockText string, loc *time.Location) time.Time {
	d := ParseDate(dateText)
	mins, ok := ClockMinutes(clockText)
	if d.IsZero() || !ok {
		return time.Time{}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), mins/60, mins%60, 0, 0, loc)
}
