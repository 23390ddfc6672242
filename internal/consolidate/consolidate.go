package consolidate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

const (
	DefaultSimilarity    = 0.90
	DefaultTimeTolerance = 60 // minutes
)

// ContinuousKeywords mark exhibitions and seasons.
var ContinuousKeywords = []string{
	"exposição", "exposicao", "temporada", "em cartaz", "visitação", "visitacao",
}

var (
	titleDateSuffix = regexp.MustCompile(`\s*[-–—]\s*\d{1,2}/\d{1,2}(?:/\d{2,4})?\s*$`)
	titleDateAny    = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)
	weekdayParens   = regexp.MustCompile(`(?i)\s*\((?:segunda|terça|terca|quarta|quinta|sexta|sábado|sabado|domingo)[^)]*\)`)
	// matched against accent-stripped lowercase titles
	weekdayWords = regexp.MustCompile(`\b(?:segunda|terca|quarta|quinta|sexta)(?:-feira)?\b|\b(?:sabado|domingo)s?\b`)
)

// Options configures a Consolidator
type Options struct {
	// Similarity is the minimum title ratio (0-1) for two listings to be the
	// same show.
	Similarity float64
	// TimeTolerance is the maximum start-time difference in minutes.
	TimeTolerance int
	VenueAliases  map[string]string
}

// Stats counts what a Consolidate call changed
type Stats struct {
	// Merged is the number of input events folded into another record.
	Merged     int
	Recurring  int
	Continuous int
}

// Consolidator groups repeated listings
type Consolidator struct {
	similarity float64
	tolerance  int
	venues     *VenueResolver
}

// New creates a Consolidator. Zero options select the defaults and
// DefaultVenueAliases.
func New(opts Options) *Consolidator {
	if opts.Similarity <= 0 {
		opts.Similarity = DefaultSimilarity
	}
	if opts.TimeTolerance <= 0 {
		opts.TimeTolerance = DefaultTimeTolerance
	}
	if opts.VenueAliases == nil {
		opts.VenueAliases = DefaultVenueAliases
	}
	return &Consolidator{
		similarity: opts.Similarity,
		tolerance:  opts.TimeTolerance,
		venues:     NewVenueResolver(opts.VenueAliases),
	}
}

// Venues returns the resolver used for venue comparison.
func (c *Consolidator) Venues() *VenueResolver {
	return c.venues
}

// IsContinuous reports whether ev is an exhibition or season, either flagged
// by its source or named as one in its title or description.
func IsContinuous(ev *event.Candidate) bool {
	if ev.Continuous {
		return true
	}
	text := strings.ToLower(ev.Title + " " + ev.Description)
	for _, kw := range ContinuousKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// BaseTitle strips a trailing date and parenthesized weekday from title.
func BaseTitle(title string) string {
	t := weekdayParens.ReplaceAllString(title, "")
	t = titleDateSuffix.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// comparable title: normalized, with every date and weekday word removed
func titleKey(title string) string {
	t := event.NormalizeTitle(BaseTitle(title))
	t = titleDateAny.ReplaceAllString(t, "")
	t = weekdayWords.ReplaceAllString(t, "")
	return strings.Join(strings.Fields(t), " ")
}

// Similarity returns the Ratcliff/Obershelp ratio of the comparable forms of
// two titles.
func Similarity(a, b string) float64 {
	ka, kb := titleKey(a), titleKey(b)
	if ka == kb {
		return 1
	}
	m := difflib.NewMatcher(strings.Split(ka, ""), strings.Split(kb, ""))
	return m.Ratio()
}

func (c *Consolidator) similar(a, b *event.Candidate) bool {
	if c.venues.Canonical(a.Venue) != c.venues.Canonical(b.Venue) {
		return false
	}
	ma, okA := event.ClockMinutes(a.Time)
	mb, okB := event.ClockMinutes(b.Time)
	if !okA || !okB {
		return false
	}
	diff := ma - mb
	if diff < 0 {
		diff = -diff
	}
	if diff > c.tolerance {
		return false
	}
	return Similarity(a.Title, b.Title) >= c.similarity
}

// Consolidate returns events with repeated listings merged, sorted by date,
// time and title. Inputs are not modified; merged records are copies.
func (c *Consolidator) Consolidate(events []*event.Candidate) ([]*event.Candidate, Stats) {
	var (
		stats      Stats
		punctual   []*event.Candidate
		continuous = make(map[string][]*event.Candidate)
		contOrder  []string
	)
	for _, ev := range events {
		if !IsContinuous(ev) {
			punctual = append(punctual, ev)
			continue
		}
		key := titleKey(ev.Title) + "|" + c.venues.Canonical(ev.Venue)
		if _, ok := continuous[key]; !ok {
			contOrder = append(contOrder, key)
		}
		continuous[key] = append(continuous[key], ev)
	}

	out := make([]*event.Candidate, 0, len(events))
	for _, key := range contOrder {
		group := continuous[key]
		merged := mergeContinuous(group)
		if len(group) > 1 {
			stats.Merged += len(group) - 1
			stats.Continuous++
		}
		out = append(out, merged)
	}

	sorted := append([]*event.Candidate(nil), punctual...)
	event.SortByDate(sorted)
	grouped := make([]bool, len(sorted))
	for i, base := range sorted {
		if grouped[i] {
			continue
		}
		group := []*event.Candidate{base}
		for j := i + 1; j < len(sorted); j++ {
			if !grouped[j] && c.similar(base, sorted[j]) {
				group = append(group, sorted[j])
				grouped[j] = true
			}
		}
		if len(group) == 1 {
			out = append(out, base)
			continue
		}
		stats.Merged += len(group) - 1
		stats.Recurring++
		out = append(out, mergeRecurring(group))
	}

	event.SortByDate(out)
	return out, stats
}

// mergeRecurring folds a group already sorted by date and time into one
// record. The earliest listing is the representative.
func mergeRecurring(group []*event.Candidate) *event.Candidate {
	rep := group[0].Clone()
	rep.Title = BaseTitle(rep.Title)
	rep.IsRecurring = true

	var occ []event.Occurrence
	for _, ev := range group {
		if len(ev.Occurrences) > 0 {
			occ = append(occ, ev.Occurrences...)
		} else {
			occ = append(occ, event.Occurrence{Date: ev.Date, Time: ev.Time})
		}
		if len(ev.Description) > len(rep.Description) {
			rep.Description = ev.Description
		}
		if !rep.HasLink() && ev.HasLink() {
			rep.Link = ev.Link
		}
	}
	sortOccurrences(occ)
	rep.Occurrences = occ
	rep.Date = occ[0].Date
	rep.Time = timeRange(group)
	rep.AddNote(fmt.Sprintf("consolidated %d listings", len(group)))
	return rep
}

// mergeContinuous folds listings of one exhibition into a record spanning
// the first to the last date seen.
func mergeContinuous(group []*event.Candidate) *event.Candidate {
	sorted := append([]*event.Candidate(nil), group...)
	event.SortByDate(sorted)

	rep := sorted[0].Clone()
	rep.Continuous = true
	if len(sorted) == 1 {
		return rep
	}

	last := event.ParseDate(rep.Date)
	for _, ev := range sorted {
		for _, d := range []string{ev.Date, ev.EndDate} {
			if t := event.ParseDate(d); !t.IsZero() && t.After(last) {
				last = t
			}
		}
		if len(ev.Description) > len(rep.Description) {
			rep.Description = ev.Description
		}
		if !rep.HasLink() && ev.HasLink() {
			rep.Link = ev.Link
		}
	}
	if !last.IsZero() && event.FormatDate(last) != rep.Date {
		rep.EndDate = event.FormatDate(last)
	}
	rep.AddNote(fmt.Sprintf("merged %d listings of a continuous event", len(sorted)))
	return rep
}

func sortOccurrences(occ []event.Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		di, dj := event.ParseDate(occ[i].Date), event.ParseDate(occ[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		mi, _ := event.ClockMinutes(occ[i].Time)
		mj, _ := event.ClockMinutes(occ[j].Time)
		return mi < mj
	})
}

// timeRange returns the single shared start time, or "first-last" when the
// group starts at different times
func timeRange(group []*event.Candidate) string {
	var bounds []string
	seen := make(map[string]bool)
	for _, ev := range group {
		norm, err := event.NormalizeTime(ev.Time)
		if err != nil {
			continue
		}
		for _, b := range strings.Split(norm, "-") {
			if !seen[b] {
				seen[b] = true
				bounds = append(bounds, b)
			}
		}
	}
	if len(bounds) == 0 {
		return group[0].Time
	}
	sort.Strings(bounds)
	if len(bounds) == 1 {
		return bounds[0]
	}
	return bounds[0] + "-" + bounds[len(bounds)-1]
}
