// Package calendar renders approved events as iCalendar (RFC 5545) feeds.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

// DefaultDuration is assumed when an event has no end time
const DefaultDuration = 2 * time.Hour

const prodID = "-//Event Vetting//event-vetting//EN"

// GenerateICS generates an iCalendar file for a single event. Clock times are
// read in loc.
func GenerateICS(evt *event.Candidate, loc *time.Location, now time.Time) string {
	return GenerateBulkICS([]*event.Candidate{evt}, "", loc, now)
}

// GenerateBulkICS generates one calendar holding every event with a
// parseable date. calName is optional.
func GenerateBulkICS(events []*event.Candidate, calName string, loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:" + prodID + "\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if calName != "" {
		writeLine(&ics, "X-WR-CALNAME:"+escapeICS(calName))
		writeLine(&ics, "X-WR-TIMEZONE:"+loc.String())
	}

	for _, evt := range events {
		writeEvent(&ics, evt, loc, now)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeEvent(ics *strings.Builder, evt *event.Candidate, loc *time.Location, now time.Time) {
	day := event.ParseDate(evt.Date)
	if day.IsZero() {
		return
	}

	ics.WriteString("BEGIN:VEVENT\r\n")
	writeLine(ics, fmt.Sprintf("UID:%s@event-vetting", evt.Key()))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICSTime(now)))

	start, end, allDay := eventTimes(evt, day, loc)
	if allDay {
		ics.WriteString(fmt.Sprintf("DTSTART;VALUE=DATE:%s\r\n", start.Format("20060102")))
		ics.WriteString(fmt.Sprintf("DTEND;VALUE=DATE:%s\r\n", end.Format("20060102")))
	} else {
		ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICSTime(start)))
		ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICSTime(end)))
	}

	// extra dates of a consolidated recurring event
	if evt.IsRecurring && !allDay {
		for _, occ := range evt.Occurrences[min(1, len(evt.Occurrences)):] {
			clock := occ.Time
			if clock == "" {
				clock = evt.Time
			}
			if at := event.StartsAt(occ.Date, clock, loc); !at.IsZero() {
				ics.WriteString(fmt.Sprintf("RDATE:%s\r\n", formatICSTime(at)))
			}
		}
	}

	writeLine(ics, "SUMMARY:"+escapeICS(evt.Title))
	if desc := description(evt); desc != "" {
		writeLine(ics, "DESCRIPTION:"+escapeICS(desc))
	}
	if evt.Venue != "" {
		writeLine(ics, "LOCATION:"+escapeICS(evt.Venue))
	}
	if evt.HasLink() {
		writeLine(ics, "URL:"+evt.Link)
	}
	if evt.Category != "" {
		writeLine(ics, "CATEGORIES:"+escapeICS(evt.Category))
	}
	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("SEQUENCE:0\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

// eventTimes resolves the start and end of an event. Events without a usable
// clock time, and continuous exhibitions, are all-day; their end is exclusive.
func eventTimes(evt *event.Candidate, day time.Time, loc *time.Location) (start, end time.Time, allDay bool) {
	if evt.Continuous || event.StartsAt(evt.Date, evt.Time, loc).IsZero() {
		last := day
		if d := event.ParseDate(evt.EndDate); !d.IsZero() && d.After(day) {
			last = d
		}
		return day, last.AddDate(0, 0, 1), true
	}

	start = event.StartsAt(evt.Date, evt.Time, loc)
	end = start.Add(DefaultDuration)
	if normalized, err := event.NormalizeTime(evt.Time); err == nil {
		if bounds := strings.SplitN(normalized, "-", 2); len(bounds) == 2 {
			if e := event.StartsAt(evt.Date, bounds[1], loc); !e.IsZero() {
				if !e.After(start) {
					e = e.AddDate(0, 0, 1)
				}
				end = e
			}
		}
	}
	return start, end, false
}

func description(evt *event.Candidate) string {
	var parts []string
	if evt.Description != "" {
		parts = append(parts, evt.Description)
	}
	if evt.Price != "" {
		parts = append(parts, "Preço: "+evt.Price)
	}
	if evt.HasLink() {
		parts = append(parts, "Ingressos: "+evt.Link)
	}
	return strings.Join(parts, "\n\n")
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// Replace special characters according to RFC 5545
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// writeLine writes a content line folded at 75 octets without splitting a
// UTF-8 sequence.
func writeLine(ics *strings.Builder, line string) {
	const limit = 75
	first := true
	for len(line) > 0 {
		width := limit
		if !first {
			width = limit - 1 // leading space
		}
		if len(line) <= width {
			if !first {
				ics.WriteString(" ")
			}
			ics.WriteString(line)
			break
		}
		cut := width
		for cut > 0 && !utf8Start(line[cut]) {
			cut--
		}
		if !first {
			ics.WriteString(" ")
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n")
		line = line[cut:]
		first = false
	}
	ics.WriteString("\r\n")
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
