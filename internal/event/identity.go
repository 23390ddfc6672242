package event

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var dashReplacer = strings.NewReplacer(
	"–", "-", // en dash
	"—", "-", // em dash
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"−", "-", // minus sign
)

// StripAccents removes combining marks after NFD decomposition ("Cecília" → "Cecilia").
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeTitle produces the comparison form of an event title: accents
// stripped, lowercased, dash variants unified and whitespace collapsed.
func NormalizeTitle(title string) string {
	s := StripAccents(title)
	s = strings.ToLower(s)
	s = dashReplacer.Replace(s)
	s = strings.ReplaceAll(s, " - ", " ")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeText is the comparison form used for venues and free text.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(StripAccents(s))), " ")
}

// DedupKey returns the identity key used for exact deduplication.
func DedupKey(title, date, clock string) string {
	if d, ok := NormalizeDate(date); ok {
		date = d
	}
	if t, err := NormalizeTime(clock); err == nil {
		clock = t
	}
	return NormalizeTitle(title) + "|" + strings.TrimSpace(date) + "|" + strings.TrimSpace(clock)
}
