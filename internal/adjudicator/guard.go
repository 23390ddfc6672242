package adjudicator

import (
	"regexp"
	"strings"
)

// Phrases a judge uses when the page and the listing disagree on the date
var dateMismatchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bdata\s+divergente\b`),
	regexp.MustCompile(`\bdiverg[eê]ncia\s+de\s+data\b`),
	regexp.MustCompile(`\bdata\b.*\bdifere\b`),
	regexp.MustCompile(`\bdata\b.*\bn[aã]o\s+corresponde\b`),
	regexp.MustCompile(`\bdiscrep[aâ]ncia\b.*\bdata\b`),
	regexp.MustCompile(`evento\s+informa.*mas\s+(?:o\s+)?link`),
	regexp.MustCompile(`link\s+mostra\s+\d{2}/\d{2}/\d{4}`),
	regexp.MustCompile(`\bdate\s+mismatch\b`),
	regexp.MustCompile(`\bdates?\b.*\b(?:differs?|does\s+not\s+match|doesn't\s+match)\b`),
	regexp.MustCompile(`\bdiscrepancy\b.*\bdate\b`),
	regexp.MustCompile(`\bdifferent\s+date\b`),
	regexp.MustCompile(`link\s+shows\s+\d{2}/\d{2}/\d{4}`),
}

// MentionsDateMismatch reports whether reason describes a disagreement
// between the event date and the date on its link.
func MentionsDateMismatch(reason string) bool {
	lower := strings.ToLower(reason)
	for _, re := range dateMismatchPatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}
