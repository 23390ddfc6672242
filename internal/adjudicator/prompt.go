package adjudicator

import (
	"strings"
	"text/template"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/linkscore"
)

const systemPrompt = `You validate cultural event listings for Rio de Janeiro.
Answer with a single JSON object and nothing else:
{"approved": true|false, "confidence": 0-100, "reason": "short explanation", "warnings": ["..."]}
Never approve an event whose date differs from the date shown on its official link.`

var promptTemplate = template.Must(template.New("judge").Funcs(template.FuncMap{"join": strings.Join}).Parse(`EVENT
Title: {{.Event.Title}}
Date: {{.Event.Date}}{{if .Event.DateCorrected}} (corrected from {{.Event.OriginalDate}}){{end}}
Time: {{or .Event.Time "n/a"}}
Venue: {{or .Event.Venue "n/a"}}
Price: {{or .Event.Price "n/a"}}
Link: {{or .Event.Link "n/a"}}
Category: {{or .Event.Category "n/a"}}
Description: {{or .Description "n/a"}}
{{with .Evidence}}
LINK EVIDENCE
Fetch status: {{.FetchStatus}}
{{- if .Title}}
Page title: {{.Title}}{{end}}
{{- if .Dates}}
Dates on page: {{join .Dates ", "}}{{end}}
{{- if .Time}}
Time on page: {{.Time}}{{end}}
{{- if .Artists}}
Artists: {{join .Artists ", "}}{{end}}
{{- if .Price}}
Price on page: {{.Price}}{{end}}
Purchase option: {{.HasPurchaseAffordance}}
Generic listing page: {{.IsGenericPage}}
{{- end}}
{{with .Quality}}
Link quality score: {{.Score}}/100 (threshold {{.Threshold}})
{{- range .Issues}}
- {{.}}{{end}}
{{- end}}
{{if .Snippet}}
PAGE TEXT
{{.Snippet}}
{{end}}
INSTRUCTIONS
1. If the page shows a date different from the event date, reject.
2. If the date cannot be confirmed on the page, add the warning "date not confirmed at source".
3. Reject contradictory or clearly fabricated listings.
4. Events at unlisted venues are acceptable when they look legitimate.
`))

type promptData struct {
	Event       *event.Candidate
	Description string
	Evidence    *event.LinkEvidence
	Quality     *linkscore.Report
	Snippet     string
}

func renderPrompt(c *event.Candidate, b Bundle, maxLinkChars int) (string, error) {
	data := promptData{
		Event:       c,
		Description: truncate(c.Description, 300),
		Evidence:    b.Evidence,
		Quality:     b.Quality,
	}
	if b.Evidence != nil {
		data.Snippet = truncate(b.Evidence.Snippet, maxLinkChars)
	}

	var sb strings.Builder
	if err := promptTemplate.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
