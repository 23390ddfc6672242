package adjudicator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/linkscore"
	"github.com/pfrederiksen/event-vetting/internal/logger"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
	system   string
	user     string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system = system
	f.user = user
	return f.response, f.err
}

func newGateway(t *testing.T, c Completer, mode Strictness) *Gateway {
	t.Helper()
	g, err := New(Options{Completer: c, Strictness: mode, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func candidate() *event.Candidate {
	return event.NewCandidate("Hamilton de Holanda", "15/11/2025", "21:00", "Blue Note Rio", "search")
}

func TestNew(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without completer should fail")
	}
	if _, err := New(Options{Completer: &fakeCompleter{}, Strictness: "lenient"}); err == nil {
		t.Error("New() with unknown strictness should fail")
	}
	g, err := New(Options{Completer: &fakeCompleter{}, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if g.Strictness() != Permissive {
		t.Errorf("Strictness() = %s, want permissive", g.Strictness())
	}
}

func TestAdjudicate(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		err            error
		mode           Strictness
		wantApproved   bool
		wantConfidence int
		wantWarnings   int
	}{
		{
			name:           "approval",
			response:       `{"approved": true, "confidence": 85, "reason": "page confirms date and artist"}`,
			mode:           Strict,
			wantApproved:   true,
			wantConfidence: 85,
		},
		{
			name:           "missing confidence defaults",
			response:       "```json\n{\"approved\": true, \"reason\": \"ok\", \"warnings\": [\"date not confirmed at source\"]}\n```",
			mode:           Strict,
			wantApproved:   true,
			wantConfidence: DefaultConfidence,
			wantWarnings:   1,
		},
		{
			name:           "rejection keeps confidence",
			response:       `Análise: {"approved": false, "confidence": 70, "reason": "evento de outra cidade"}`,
			mode:           Permissive,
			wantApproved:   false,
			wantConfidence: 70,
		},
		{
			name:           "portuguese date mismatch overrides approval",
			response:       `{"approved": true, "confidence": 90, "reason": "Aprovado apesar da data divergente no link"}`,
			mode:           Permissive,
			wantApproved:   false,
			wantConfidence: 0,
			wantWarnings:   1,
		},
		{
			name:           "english date mismatch overrides approval",
			response:       `{"approved": true, "confidence": 90, "reason": "Looks legit although the date does not match the page"}`,
			mode:           Permissive,
			wantApproved:   false,
			wantConfidence: 0,
			wantWarnings:   1,
		},
		{
			name:           "missing approved falls back permissive",
			response:       `{"confidence": 90, "reason": "ok"}`,
			mode:           Permissive,
			wantApproved:   true,
			wantConfidence: FallbackConfidence,
			wantWarnings:   1,
		},
		{
			name:           "missing reason falls back strict",
			response:       `{"approved": true}`,
			mode:           Strict,
			wantApproved:   false,
			wantConfidence: 0,
		},
		{
			name:           "confidence out of range",
			response:       `{"approved": true, "confidence": 150, "reason": "ok"}`,
			mode:           Strict,
			wantApproved:   false,
			wantConfidence: 0,
		},
		{
			name:           "invalid answer naming a date mismatch is rejected",
			response:       `{"approved": true, "confidence": 150, "reason": "Data divergente: evento informa 15/11/2025 mas o link mostra 22/11/2025"}`,
			mode:           Permissive,
			wantApproved:   false,
			wantConfidence: 0,
			wantWarnings:   1,
		},
		{
			name:           "answer without approved naming a date mismatch is rejected",
			response:       `{"reason": "date mismatch with the ticket page"}`,
			mode:           Permissive,
			wantApproved:   false,
			wantConfidence: 0,
			wantWarnings:   1,
		},
		{
			name:           "garbage",
			response:       "I cannot help with that",
			mode:           Strict,
			wantApproved:   false,
			wantConfidence: 0,
		},
		{
			name:           "transport failure permissive",
			err:            errors.New("connection reset"),
			mode:           Permissive,
			wantApproved:   true,
			wantConfidence: FallbackConfidence,
			wantWarnings:   1,
		},
		{
			name:           "transport failure strict",
			err:            context.DeadlineExceeded,
			mode:           Strict,
			wantApproved:   false,
			wantConfidence: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{response: tt.response, err: tt.err}
			got := newGateway(t, fc, tt.mode).Adjudicate(context.Background(), candidate(), Bundle{})

			if got.Approved != tt.wantApproved {
				t.Errorf("Approved = %v, want %v (reason %q)", got.Approved, tt.wantApproved, got.Reason)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %d, want %d", got.Confidence, tt.wantConfidence)
			}
			if len(got.Warnings) != tt.wantWarnings {
				t.Errorf("Warnings = %v, want %d", got.Warnings, tt.wantWarnings)
			}
			if got.Reason == "" {
				t.Error("Reason is empty")
			}
			if fc.calls != 1 {
				t.Errorf("completer called %d times, want 1", fc.calls)
			}
		})
	}
}

func TestAdjudicatePrompt(t *testing.T) {
	fc := &fakeCompleter{response: `{"approved": true, "confidence": 80, "reason": "ok"}`}
	g, err := New(Options{Completer: fc, MaxLinkChars: 50, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ev := &event.LinkEvidence{
		FetchStatus: event.FetchOK,
		Title:       "Hamilton de Holanda | Blue Note",
		Dates:       []string{"15/11/2025", "16/11/2025"},
		Artists:     []string{"Hamilton de Holanda"},
		Snippet:     strings.Repeat("x", 200),
	}
	report := &linkscore.Report{Score: 75, Threshold: 65, Issues: []string{"no price"}}
	g.Adjudicate(context.Background(), candidate(), Bundle{Evidence: ev, Quality: report})

	for _, want := range []string{
		"Title: Hamilton de Holanda",
		"Date: 15/11/2025",
		"Dates on page: 15/11/2025, 16/11/2025",
		"Artists: Hamilton de Holanda",
		"Link quality score: 75/100 (threshold 65)",
		"- no price",
	} {
		if !strings.Contains(fc.user, want) {
			t.Errorf("prompt missing %q:\n%s", want, fc.user)
		}
	}
	if strings.Contains(fc.user, strings.Repeat("x", 51)) {
		t.Error("page text not truncated to MaxLinkChars")
	}
	if !strings.Contains(fc.system, "JSON") {
		t.Error("system prompt should ask for JSON")
	}
}

func TestAdjudicatePromptWithoutEvidence(t *testing.T) {
	fc := &fakeCompleter{response: `{"approved": true, "reason": "ok"}`}
	newGateway(t, fc, Strict).Adjudicate(context.Background(), candidate(), Bundle{})

	if strings.Contains(fc.user, "LINK EVIDENCE") {
		t.Error("prompt should not include an evidence section without evidence")
	}
	if !strings.Contains(fc.user, "Link: n/a") {
		t.Errorf("prompt should mark the missing link:\n%s", fc.user)
	}
}

func TestMentionsDateMismatch(t *testing.T) {
	tests := []struct {
		reason string
		want   bool
	}{
		{"Data divergente entre evento e link", true},
		{"Há divergência de data no site", true},
		{"A data do link difere da informada", true},
		{"A data não corresponde ao link", true},
		{"Discrepância encontrada na data", true},
		{"Evento informa 15/11 mas link indica 16/11", true},
		{"Link mostra 16/11/2025", true},
		{"Date mismatch with official page", true},
		{"The dates differ between listing and page", true},
		{"Link shows 16/11/2025", true},
		{"Data confirmada no site oficial", false},
		{"Artist and date confirmed", false},
		{"Apesar de não ter preço, evento legítimo", false},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			if got := MentionsDateMismatch(tt.reason); got != tt.want {
				t.Errorf("MentionsDateMismatch(%q) = %v, want %v", tt.reason, got, tt.want)
			}
		})
	}
}
