package event

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name      string
		dateText  string
		wantYear  int
		wantMonth time.Month
		wantDay   int
		wantZero  bool
	}{
		{name: "canonical", dateText: "15/11/2025", wantYear: 2025, wantMonth: time.November, wantDay: 15},
		{name: "single digits", dateText: "5/1/2026", wantYear: 2026, wantMonth: time.January, wantDay: 5},
		{name: "ISO", dateText: "2025-11-15", wantYear: 2025, wantMonth: time.November, wantDay: 15},
		{name: "ISO timestamp", dateText: "2025-11-15T20:00:00-03:00", wantYear: 2025, wantMonth: time.November, wantDay: 15},
		{name: "two digit year", dateText: "15/11/25", wantYear: 2025, wantMonth: time.November, wantDay: 15},
		{name: "trailing clock", dateText: "15/11/2025 20:00", wantYear: 2025, wantMonth: time.November, wantDay: 15},
		{name: "descriptive", dateText: "próximo sábado", wantZero: true},
		{name: "empty", dateText: "", wantZero: true},
		{name: "impossible day", dateText: "31/02/2025", wantZero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.dateText)
			if tt.wantZero {
				if !got.IsZero() {
					t.Errorf("ParseDate(%q) = %v, want zero", tt.dateText, got)
				}
				return
			}
			if got.Year() != tt.wantYear || got.Month() != tt.wantMonth || got.Day() != tt.wantDay {
				t.Errorf("ParseDate(%q) = %v, want %d-%02d-%02d", tt.dateText, got, tt.wantYear, tt.wantMonth, tt.wantDay)
			}
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "20:00", want: "20:00"},
		{in: "8:30", want: "08:30"},
		{in: "20h", want: "20:00"},
		{in: "20h30", want: "20:30"},
		{in: "19:00-21:00", want: "19:00-21:00"},
		{in: "19h às 21h", want: "19:00-21:00"},
		{in: "25:00", wantErr: ErrInvalidHour},
		{in: "20:75", wantErr: ErrInvalidMinute},
		{in: "a definir", wantErr: ErrTimeFormat},
		{in: "xx:xx", wantErr: ErrTimeFormat},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTime(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NormalizeTime(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeTime(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeTime(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClockMinutes(t *testing.T) {
	if got, ok := ClockMinutes("19:30"); !ok || got != 1170 {
		t.Errorf("ClockMinutes(19:30) = %d, %v", got, ok)
	}
	if got, ok := ClockMinutes("19:00-21:00"); !ok || got != 1140 {
		t.Errorf("ClockMinutes(range) = %d, %v", got, ok)
	}
	if _, ok := ClockMinutes(""); ok {
		t.Error("ClockMinutes(\"\") should not be ok")
	}
}

func TestInWindow(t *testing.T) {
	start := time.Date(2025, 11, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 11, 29, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		date string
		want bool
	}{
		{"08/11/2025", true},
		{"29/11/2025", true},
		{"15/11/2025", true},
		{"01/11/2025", false},
		{"30/11/2025", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := InWindow(tt.date, start, end); got != tt.want {
			t.Errorf("InWindow(%q) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestStartsAt(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	got := StartsAt("15/11/2025", "20h30", loc)
	want := time.Date(2025, 11, 15, 20, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("StartsAt() = %v, want %v", got, want)
	}
	if !StartsAt("15/11/2025", "", loc).IsZero() {
		t.Error("StartsAt() without time should be zero")
	}
}
