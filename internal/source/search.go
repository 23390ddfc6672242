package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/jsonx"
	"github.com/pfrederiksen/event-vetting/internal/logger"
)

// Completer is a remote model that answers prompts with text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const searchSystem = `You search the web for upcoming cultural events in Rio de Janeiro.
Only report events you found on a real page. Answer with a JSON array and nothing else.`

var searchTemplate = template.Must(template.New("search").Funcs(template.FuncMap{
	"date": event.FormatDate,
	"join": strings.Join,
}).Parse(`Find events between {{date .WindowStart}} and {{date .WindowEnd}}.
{{- if .Venue}}
Only events at: {{.Venue}}.{{end}}
{{- if .Category}}
Category: {{.Category}}.{{end}}
{{- if .Date}}
Only events on {{.Date}}.{{end}}
{{- if .Limit}}
Return at most {{.Limit}} events.{{end}}
{{- if .Exclude}}
Skip these already known events: {{join .Exclude "; "}}.{{end}}
Each element: {"title": "", "date": "DD/MM/YYYY", "time": "HH:MM", "venue": "", "price": "", "link": "specific event or ticket page", "description": "", "category": ""}
Use an empty array when nothing is found.`))

var linkTemplate = template.Must(template.New("link").Parse(`Find the specific ticket or event page for:
Title: {{.Title}}
Date: {{.Date}}{{if .Time}} {{.Time}}{{end}}
Venue: {{.Venue}}
{{- if .Tried}}
These links were already rejected, do not repeat them: {{range $i, $l := .Tried}}{{if $i}}, {{end}}{{$l}}{{end}}{{end}}
Answer {"link": "https://..."} or {"link": ""} when no specific page exists.`))

// SearchSource asks a generative search model for candidates.
type SearchSource struct {
	name      string
	completer Completer
	log       *logger.Logger
}

// NewSearchSource wraps a completer. name identifies the provider in the
// candidates' provenance.
func NewSearchSource(name string, completer Completer, log *logger.Logger) *SearchSource {
	if log == nil {
		log = logger.Default()
	}
	return &SearchSource{name: "search:" + name, completer: completer, log: log}
}

// Name implements CandidateSource
func (s *SearchSource) Name() string {
	return s.name
}

// FetchCandidates runs one search. A response that cut off mid-array still
// yields its complete records; a response with no JSON at all is an error
// with no candidates.
func (s *SearchSource) FetchCandidates(ctx context.Context, q Query) ([]*event.Candidate, error) {
	var sb strings.Builder
	if err := searchTemplate.Execute(&sb, q); err != nil {
		return nil, fmt.Errorf("building search prompt: %w", err)
	}

	raw, err := s.completer.Complete(ctx, searchSystem, sb.String())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q, err)
	}

	found, err := DecodeRecords(raw, s.name)
	if err != nil {
		if errors.Is(err, jsonx.ErrNoJSON) {
			s.log.Warn("Search returned no JSON", logger.Fields{"query": q.String(), "response_len": len(raw)})
		}
		return nil, fmt.Errorf("search %s: %w", q, err)
	}

	out := found[:0]
	for _, c := range found {
		if q.Venue != "" && c.Venue == "" {
			c.Venue = q.Venue
		}
		if q.Category != "" && c.Category == "" {
			c.Category = q.Category
		}
		out = append(out, c)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	s.log.Debug("Search results", logger.Fields{"query": q.String(), "count": len(out)})
	return out, nil
}

// FindLink asks the model for a specific page for c, avoiding links already
// tried. It returns "" when the model has nothing better.
func (s *SearchSource) FindLink(ctx context.Context, c *event.Candidate, tried []string) (string, error) {
	var sb strings.Builder
	data := struct {
		*event.Candidate
		Tried []string
	}{c, tried}
	if err := linkTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("building link prompt: %w", err)
	}

	raw, err := s.completer.Complete(ctx, searchSystem, sb.String())
	if err != nil {
		return "", fmt.Errorf("link search for %q: %w", c.Title, err)
	}

	var answer struct {
		Link string `json:"link"`
	}
	if err := jsonx.Object(raw, &answer); err != nil {
		return "", fmt.Errorf("link search for %q: %w", c.Title, err)
	}
	link := strings.TrimSpace(answer.Link)
	if event.IsPlaceholderLink(link) {
		return "", nil
	}
	return link, nil
}
