package filter

import (
	"testing"
	"time"
)

func TestParseDateRange(t *testing.T) {
	now := time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{name: "numeric", input: "15/11-30/11", wantFrom: "15/11/2025", wantTo: "30/11/2025"},
		{name: "numeric with years", input: "15/11/2025 - 10/01/2026", wantFrom: "15/11/2025", wantTo: "10/01/2026"},
		{name: "numeric across new year", input: "20/12-05/01", wantFrom: "20/12/2025", wantTo: "05/01/2026"},
		{name: "past month is next year", input: "10/02-20/02", wantFrom: "10/02/2026", wantTo: "20/02/2026"},
		{name: "day range", input: "15-30 nov", wantFrom: "15/11/2025", wantTo: "30/11/2025"},
		{name: "portuguese day range", input: "15 a 30 de novembro", wantFrom: "15/11/2025", wantTo: "30/11/2025"},
		{name: "whole month", input: "dezembro", wantFrom: "01/12/2025", wantTo: "31/12/2025"},
		{name: "accented month", input: "Março", wantFrom: "01/03/2026", wantTo: "31/03/2026"},
		{name: "english month", input: "December", wantFrom: "01/12/2025", wantTo: "31/12/2025"},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown month", input: "brumaire", wantErr: true},
		{name: "invalid day", input: "31/11-02/12", wantErr: true},
		{name: "reversed", input: "30-15 nov", wantErr: true},
		{name: "garbage", input: "next week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ParseDateRange(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDateRange(%q) error = nil, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDateRange(%q) error = %v", tt.input, err)
			}
			if got := from.Format("02/01/2006"); got != tt.wantFrom {
				t.Errorf("from = %s, want %s", got, tt.wantFrom)
			}
			if got := to.Format("02/01/2006"); got != tt.wantTo {
				t.Errorf("to = %s, want %s", got, tt.wantTo)
			}
		})
	}
}
