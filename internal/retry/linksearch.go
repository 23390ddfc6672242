package retry

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/linkscore"
	"github.com/pfrederiksen/event-vetting/internal/logger"
	"github.com/pfrederiksen/event-vetting/internal/metrics"
)

// DefaultMaxLinkAttempts caps the search loop for one event.
const DefaultMaxLinkAttempts = 5

// ErrNoQualityLink is returned when every attempt produced no usable link.
var ErrNoQualityLink = errors.New("no quality link found")

// LinkFinder proposes a link for c, avoiding the ones already tried.
// An empty result means it has nothing more to offer.
type LinkFinder interface {
	FindLink(ctx context.Context, c *event.Candidate, tried []string) (string, error)
}

// Fetcher retrieves link evidence
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*event.LinkEvidence, error)
}

// Scorer rates link evidence against an event
type Scorer interface {
	Score(ev *event.LinkEvidence, c *event.Candidate) linkscore.Report
}

// LinkResult is the best link a LinkSearch found
type LinkResult struct {
	Link     string
	Evidence *event.LinkEvidence
	Report   linkscore.Report
	Attempts int
}

// LinkSearch looks for a specific, quality link for an event whose own link
// is missing or generic.
type LinkSearch struct {
	finder      LinkFinder
	fetcher     Fetcher
	scorer      Scorer
	budget      *Budget
	maxAttempts int
	metrics     *metrics.Recorder
	log         *logger.Logger
}

// NewLinkSearch creates a LinkSearch. maxAttempts <= 0 selects
// DefaultMaxLinkAttempts.
func NewLinkSearch(finder LinkFinder, fetcher Fetcher, scorer Scorer, budget *Budget, maxAttempts int, m *metrics.Recorder, log *logger.Logger) *LinkSearch {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLinkAttempts
	}
	if budget == nil {
		budget = NewBudget(0)
	}
	if log == nil {
		log = logger.Default()
	}
	return &LinkSearch{
		finder:      finder,
		fetcher:     fetcher,
		scorer:      scorer,
		budget:      budget,
		maxAttempts: maxAttempts,
		metrics:     m,
		log:         log,
	}
}

// Find runs the bounded search loop. It returns the first link whose page
// scores as quality and is not a generic listing. Otherwise it returns the
// best-scoring candidate seen (if any) with an error: ErrBudgetExhausted when
// the budget ran out first, ErrNoQualityLink when attempts ran out or the
// finder gave up.
func (s *LinkSearch) Find(ctx context.Context, c *event.Candidate) (LinkResult, error) {
	var (
		best  LinkResult
		tried []string
	)
	if c.HasLink() {
		tried = append(tried, c.Link)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}
		if !s.budget.TryConsume(1) {
			s.metrics.SetBudget(0)
			return best, ErrBudgetExhausted
		}
		s.metrics.RetryRequest("link")
		s.metrics.SetBudget(s.budget.Remaining())
		best.Attempts = attempt

		link, err := s.finder.FindLink(ctx, c, tried)
		if err != nil {
			s.log.Debug("Link search attempt failed", logger.Fields{"title": c.Title, "attempt": attempt, "error": err.Error()})
			continue
		}
		if link == "" {
			break
		}
		if slices.Contains(tried, link) || linkscore.IsGenericLink(link) {
			tried = append(tried, link)
			continue
		}
		tried = append(tried, link)

		ev, _ := s.fetcher.Fetch(ctx, link)
		report := s.scorer.Score(ev, c)
		if best.Link == "" || report.Score > best.Report.Score {
			best.Link, best.Evidence, best.Report = link, ev, report
		}
		if report.IsQuality && ev != nil && ev.Fetched() && !ev.IsGenericPage {
			s.log.Info("Found specific link", logger.Fields{"title": c.Title, "link": link, "score": report.Score, "attempts": attempt})
			return best, nil
		}
	}

	return best, fmt.Errorf("%s after %d attempts: %w", c.Title, best.Attempts, ErrNoQualityLink)
}
