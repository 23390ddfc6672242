package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

var (
	// "15/11-30/11", "15/11/2025 - 30/11/2025"
	numericRange = regexp.MustCompile(`^(\d{1,2}/\d{1,2}(?:/\d{4})?)\s*(?:-|a|até)\s*(\d{1,2}/\d{1,2}(?:/\d{4})?)$`)
	// "15-30 nov", "15 a 30 de novembro"
	dayRange = regexp.MustCompile(`(?i)^(\d{1,2})\s*(?:-|a|até)\s*(\d{1,2})\s+(?:de\s+)?(\pL+)$`)
	// "novembro", "nov"
	monthOnly = regexp.MustCompile(`(?i)^(\pL+)$`)
)

// ParseDateRange parses a date range string into start and end days.
//
// Supported formats:
//   - "15/11-30/11" or "15/11/2025 - 30/11/2025"
//   - "15-30 nov" or "15 a 30 de novembro" - same month
//   - "novembro" or "nov" - entire month
//
// Dates without a year take the year of now, or the next year when that
// month has already passed.
func ParseDateRange(input string, now time.Time) (*time.Time, *time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}

	if m := numericRange.FindStringSubmatch(input); m != nil {
		from, err := parseDay(m[1], now)
		if err != nil {
			return nil, nil, err
		}
		to, err := parseDay(m[2], now)
		if err != nil {
			return nil, nil, err
		}
		if to.Before(from) && len(m[2]) <= 5 {
			to = to.AddDate(1, 0, 0)
		}
		return checked(from, to)
	}

	if m := dayRange.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[3])
		if month == 0 {
			return nil, nil, fmt.Errorf("invalid month: %s", m[3])
		}
		year := yearForMonth(month, now)
		d1, _ := strconv.Atoi(m[1])
		d2, _ := strconv.Atoi(m[2])
		from, err := validDate(year, month, d1)
		if err != nil {
			return nil, nil, err
		}
		to, err := validDate(year, month, d2)
		if err != nil {
			return nil, nil, err
		}
		return checked(from, to)
	}

	if m := monthOnly.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		if month == 0 {
			return nil, nil, fmt.Errorf("invalid month: %s", m[1])
		}
		year := yearForMonth(month, now)
		from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		// Last day of month
		to := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
		return &from, &to, nil
	}

	return nil, nil, fmt.Errorf("invalid date range format. Use '15/11-30/11', '15-30 nov' or 'novembro'")
}

func checked(from, to time.Time) (*time.Time, *time.Time, error) {
	if from.After(to) {
		return nil, nil, fmt.Errorf("start date must be before end date")
	}
	return &from, &to, nil
}

// parseDay reads DD/MM or DD/MM/YYYY
func parseDay(text string, now time.Time) (time.Time, error) {
	parts := strings.Split(text, "/")
	d, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	if m < 1 || m > 12 {
		return time.Time{}, fmt.Errorf("invalid month: %s", parts[1])
	}
	year := yearForMonth(time.Month(m), now)
	if len(parts) == 3 {
		year, _ = strconv.Atoi(parts[2])
	}
	return validDate(year, time.Month(m), d)
}

// validDate rejects days that time.Date would roll into the next month
func validDate(year int, month time.Month, day int) (time.Time, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if day < 1 || t.Month() != month {
		return time.Time{}, fmt.Errorf("invalid day: %d", day)
	}
	return t, nil
}

// parseMonth converts a Portuguese or English month name to time.Month
func parseMonth(name string) time.Month {
	name = event.NormalizeText(name)

	months := map[string]time.Month{
		"jan": time.January, "janeiro": time.January, "january": time.January,
		"fev": time.February, "fevereiro": time.February, "feb": time.February, "february": time.February,
		"mar": time.March, "marco": time.March, "march": time.March,
		"abr": time.April, "abril": time.April, "apr": time.April, "april": time.April,
		"mai": time.May, "maio": time.May, "may": time.May,
		"jun": time.June, "junho": time.June, "june": time.June,
		"jul": time.July, "julho": time.July, "july": time.July,
		"ago": time.August, "agosto": time.August, "aug": time.August, "august": time.August,
		"set": time.September, "setembro": time.September, "sep": time.September, "september": time.September,
		"out": time.October, "outubro": time.October, "oct": time.October, "october": time.October,
		"nov": time.November, "novembro": time.November, "november": time.November,
		"dez": time.December, "dezembro": time.December, "dec": time.December, "december": time.December,
	}

	return months[name]
}

// yearForMonth returns the year of now, or the next one if month has
// already passed.
func yearForMonth(month time.Month, now time.Time) int {
	year := now.Year()
	if month < now.Month() {
		year++
	}
	return year
}
