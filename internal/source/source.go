package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

// Query kinds
const (
	KindInitial  = "initial"
	KindVenue    = "venue"
	KindDay      = "day"
	KindCategory = "category"
	KindTopUp    = "topup"
)

// Query narrows what a source should look for.
type Query struct {
	Kind        string
	Venue       string
	Category    string
	Date        string // DD/MM/YYYY, for per-day searches
	WindowStart time.Time
	WindowEnd   time.Time
	// Limit is a hint for how many new candidates are wanted. Zero means no limit.
	Limit int
	// Exclude lists titles already known, so searches can skip them.
	Exclude []string
}

// String summarizes the query for logs and warnings.
func (q Query) String() string {
	parts := []string{q.Kind}
	if q.Venue != "" {
		parts = append(parts, "venue="+q.Venue)
	}
	if q.Category != "" {
		parts = append(parts, "category="+q.Category)
	}
	if q.Date != "" {
		parts = append(parts, "date="+q.Date)
	}
	if q.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", q.Limit))
	}
	return strings.Join(parts, " ")
}

// Matches reports whether c satisfies the query filters.
func (q Query) Matches(c *event.Candidate) bool {
	if q.Venue != "" && !strings.Contains(event.NormalizeText(c.Venue), event.NormalizeText(q.Venue)) {
		return false
	}
	if q.Category != "" && event.NormalizeText(c.Category) != event.NormalizeText(q.Category) {
		return false
	}
	if q.Date != "" {
		want, _ := event.NormalizeDate(q.Date)
		got, _ := event.NormalizeDate(c.Date)
		if want != got {
			return false
		}
	}
	if !q.WindowStart.IsZero() && !q.WindowEnd.IsZero() && !event.InWindow(c.Date, q.WindowStart, q.WindowEnd) {
		return false
	}
	return true
}

// CandidateSource produces candidate events for a query.
type CandidateSource interface {
	Name() string
	FetchCandidates(ctx context.Context, q Query) ([]*event.Candidate, error)
}

// Multi queries several sources concurrently and concatenates their results.
type Multi struct {
	sources []CandidateSource
}

// NewMulti combines sources. Nil entries are skipped.
func NewMulti(sources ...CandidateSource) *Multi {
	m := &Multi{}
	for _, s := range sources {
		if s != nil {
			m.sources = append(m.sources, s)
		}
	}
	return m
}

// Name implements CandidateSource
func (m *Multi) Name() string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// FetchCandidates returns whatever every source produced. Failing sources do
// not hide the results of the others; their errors are joined and returned
// alongside the partial result.
func (m *Multi) FetchCandidates(ctx context.Context, q Query) ([]*event.Candidate, error) {
	results := make([][]*event.Candidate, len(m.sources))
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	for i, s := range m.sources {
		g.Go(func() error {
			found, err := s.FetchCandidates(ctx, q)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				mu.Unlock()
			}
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var out []*event.Candidate
	for _, r := range results {
		out = append(out, r...)
	}
	return out, errors.Join(errs...)
}
