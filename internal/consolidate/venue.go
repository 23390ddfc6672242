package consolidate

import (
	"strings"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

// DefaultVenueAliases maps venue spellings to the name they are grouped under.
var DefaultVenueAliases = map[string]string{
	"CCBB Teatro e Cinema":  "CCBB Rio - Centro Cultural Banco do Brasil",
	"CCBB Teatro I":         "CCBB Rio - Centro Cultural Banco do Brasil",
	"CCBB Teatro II":        "CCBB Rio - Centro Cultural Banco do Brasil",
	"CCBB Teatro III":       "CCBB Rio - Centro Cultural Banco do Brasil",
	"CCBB Cinema":           "CCBB Rio - Centro Cultural Banco do Brasil",
	"Cecília Meirelles":     "Sala Cecília Meireles",
	"Sala Cecilia Meireles": "Sala Cecília Meireles",
}

// VenueResolver canonicalizes venue names for comparison.
type VenueResolver struct {
	aliases map[string]string
}

// NewVenueResolver builds a resolver from an alias map. Keys and values are
// compared accent- and case-insensitively.
func NewVenueResolver(aliases map[string]string) *VenueResolver {
	r := &VenueResolver{aliases: make(map[string]string, len(aliases))}
	for from, to := range aliases {
		r.aliases[normalizeVenue(from)] = normalizeVenue(to)
	}
	return r
}

// Canonical returns the comparison form of venue.
func (r *VenueResolver) Canonical(venue string) string {
	v := normalizeVenue(venue)
	if to, ok := r.aliases[v]; ok {
		return to
	}
	return v
}

func normalizeVenue(venue string) string {
	return strings.TrimRight(event.NormalizeText(venue), ",.")
}
