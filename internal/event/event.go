package event

import (
	"crypto/sha1"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Occurrence is one concrete (date, time) instance of a recurring event.
type Occurrence struct {
	Date string `json:"date"`
	Time string `json:"time,omitempty"`
}

// Candidate is an unverified event record. Pipeline stages enrich it in place
// (date correction, recovered link, notes) until it lands in the approved or
// rejected list.
type Candidate struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	Venue       string `json:"venue,omitempty"`
	Price       string `json:"price,omitempty"`
	Link        string `json:"link,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Source      string `json:"source,omitempty"`

	// LinkValid is set by sources that already verified the link (dedicated
	// venue scrapers). nil means unknown.
	LinkValid *bool `json:"link_valid,omitempty"`

	OriginalDate  string `json:"original_date,omitempty"`
	DateCorrected bool   `json:"date_corrected,omitempty"`

	Continuous bool   `json:"continuous,omitempty"`
	EndDate    string `json:"end_date,omitempty"`

	IsRecurring bool         `json:"is_recurring,omitempty"`
	Occurrences []Occurrence `json:"occurrences,omitempty"`

	Notes      []string `json:"notes,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Confidence int      `json:"confidence,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
}

// GenerateID creates a deterministic ID from the identifying fields of an event
func GenerateID(source, title, date, venue string) string {
	h := sha1.New()
	h.Write([]byte(source + "|" + NormalizeTitle(title) + "|" + date + "|" + NormalizeText(venue)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// NewCandidate creates a Candidate with ID and FirstSeen populated
func NewCandidate(title, date, clock, venue, source string) *Candidate {
	return &Candidate{
		ID:        GenerateID(source, title, date, venue),
		Title:     title,
		Date:      date,
		Time:      clock,
		Venue:     venue,
		Source:    source,
		FirstSeen: time.Now().UTC(),
	}
}

// Key returns the deduplication identity of the candidate.
func (c *Candidate) Key() string {
	return DedupKey(c.Title, c.Date, c.Time)
}

// AddNote appends a free-form annotation that travels with the record.
func (c *Candidate) AddNote(note string) {
	c.Notes = append(c.Notes, note)
}

// HasLink reports whether the candidate carries a usable (non-placeholder) link.
func (c *Candidate) HasLink() bool {
	return c.Link != "" && !IsPlaceholderLink(c.Link)
}

// Clone returns a deep copy so concurrent stages never share slices.
func (c *Candidate) Clone() *Candidate {
	cp := *c
	if c.LinkValid != nil {
		v := *c.LinkValid
		cp.LinkValid = &v
	}
	if c.Occurrences != nil {
		cp.Occurrences = append([]Occurrence(nil), c.Occurrences...)
	}
	if c.Notes != nil {
		cp.Notes = append([]string(nil), c.Notes...)
	}
	return &cp
}

// placeholderLinks are values sources emit when they could not find a link.
var placeholderLinks = map[string]bool{
	"INCOMPLETO":  true,
	"incompleto":  true,
	"/INCOMPLETO": true,
	"NONE":        true,
	"none":        true,
	"null":        true,
	"N/A":         true,
}

// IsPlaceholderLink reports whether link is a "no link" marker rather than a URL.
func IsPlaceholderLink(link string) bool {
	return placeholderLinks[strings.TrimSpace(link)]
}

// Field aliases accepted on ingestion, in priority order.
var (
	titleKeys       = []string{"titulo", "nome", "title", "event_name"}
	linkKeys        = []string{"link_ingresso", "link_referencia", "link", "ticket_link", "url"}
	timeKeys        = []string{"horario", "time", "hora"}
	priceKeys       = []string{"preco", "price", "valor", "ticket_price"}
	venueKeys       = []string{"local", "venue", "lugar"}
	dateKeys        = []string{"data", "date", "dia"}
	categoryKeys    = []string{"categoria", "category", "tipo"}
	descriptionKeys = []string{"descricao", "description", "resumo", "desc"}
	sourceKeys      = []string{"fonte", "source", "origem"}
	linkValidKeys   = []string{"link_valid", "link_validado"}
	endDateKeys     = []string{"data_fim", "end_date"}
)

// FromRecord converts a loosely-typed source record into a Candidate,
// resolving field aliases. defaultSource is used when the record carries no
// provenance of its own.
func FromRecord(rec map[string]any, defaultSource string) *Candidate {
	c := &Candidate{
		Title:       lookup(rec, titleKeys),
		Date:        lookup(rec, dateKeys),
		Time:        lookup(rec, timeKeys),
		Venue:       lookup(rec, venueKeys),
		Price:       lookup(rec, priceKeys),
		Link:        lookup(rec, linkKeys),
		Description: lookup(rec, descriptionKeys),
		Category:    lookup(rec, categoryKeys),
		Source:      lookup(rec, sourceKeys),
		EndDate:     lookup(rec, endDateKeys),
		FirstSeen:   time.Now().UTC(),
	}
	if c.Source == "" {
		c.Source = defaultSource
	}

	// "15/11/2025 20:00" carries the clock time inside the date field
	if fields := strings.Fields(c.Date); len(fields) == 2 {
		c.Date = fields[0]
		if c.Time == "" {
			c.Time = fields[1]
		}
	}

	for _, k := range linkValidKeys {
		if v, ok := rec[k].(bool); ok {
			c.LinkValid = &v
			break
		}
	}
	if v, ok := rec["continuous"].(bool); ok {
		c.Continuous = v
	}

	c.ID = GenerateID(c.Source, c.Title, c.Date, c.Venue)
	return c
}

// lookup returns the first non-empty value among keys, stringified
func lookup(rec map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringify(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
