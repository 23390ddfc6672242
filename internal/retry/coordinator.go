package retry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/gaps"
	"github.com/pfrederiksen/event-vetting/internal/logger"
	"github.com/pfrederiksen/event-vetting/internal/metrics"
	"github.com/pfrederiksen/event-vetting/internal/source"
)

// DefaultConcurrency bounds in-flight supplementary searches.
const DefaultConcurrency = 3

// Priority orders requests; lower runs first.
type Priority int

const (
	PriorityVenue Priority = iota + 1
	PriorityDay
	PriorityCategory
	PriorityTopUp
)

// SearchRequest is one supplementary search.
type SearchRequest struct {
	Priority Priority
	Query    source.Query
	Reason   string
}

// Kind returns the query kind of the request.
func (r SearchRequest) Kind() string {
	return r.Query.Kind
}

// Options configures a Coordinator
type Options struct {
	Source      source.CandidateSource
	Budget      *Budget
	Concurrency int
	WindowStart time.Time
	WindowEnd   time.Time
	// VenueLimit is how many candidates a required-venue search asks for.
	VenueLimit int
	// FieldCheck, when set, must approve a rejected event before Recover
	// re-admits it.
	FieldCheck func(*event.Candidate) event.Verdict
	Metrics    *metrics.Recorder
	Logger     *logger.Logger
}

// Coordinator issues supplementary searches against a shared budget.
type Coordinator struct {
	opts Options
	log  *logger.Logger
}

// New creates a Coordinator. A nil budget means no searches can be made.
func New(opts Options) *Coordinator {
	if opts.Budget == nil {
		opts.Budget = NewBudget(0)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.VenueLimit <= 0 {
		opts.VenueLimit = 3
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Coordinator{opts: opts, log: opts.Logger}
}

// Budget returns the shared budget.
func (c *Coordinator) Budget() *Budget {
	return c.opts.Budget
}

// BuildRequests turns a gap report into requests ordered by priority,
// spending one budget unit per request. Requests that do not fit the budget
// are dropped and reported in the returned warnings. A report with no gaps
// yields no requests and leaves the budget untouched.
func (c *Coordinator) BuildRequests(report gaps.Report) ([]SearchRequest, []string) {
	if !report.HasGaps() {
		return nil, nil
	}

	wanted := c.plan(report)
	var (
		out      []SearchRequest
		warnings []string
	)
	for i, req := range wanted {
		if !c.opts.Budget.TryConsume(1) {
			warnings = append(warnings, fmt.Sprintf("%v: %d of %d supplementary searches not issued", ErrBudgetExhausted, len(wanted)-i, len(wanted)))
			c.log.Warn("Search budget exhausted", logger.Fields{"skipped": len(wanted) - i, "planned": len(wanted)})
			break
		}
		out = append(out, req)
		c.opts.Metrics.RetryRequest(req.Kind())
	}
	c.opts.Metrics.SetBudget(c.opts.Budget.Remaining())
	return out, warnings
}

// plan lists every request the report calls for, most severe first
func (c *Coordinator) plan(report gaps.Report) []SearchRequest {
	window := func(q source.Query) source.Query {
		q.WindowStart = c.opts.WindowStart
		q.WindowEnd = c.opts.WindowEnd
		return q
	}

	var reqs []SearchRequest
	for _, v := range report.MissingVenues {
		reqs = append(reqs, SearchRequest{
			Priority: PriorityVenue,
			Query:    window(source.Query{Kind: source.KindVenue, Venue: v.Name, Limit: c.opts.VenueLimit}),
			Reason:   "required venue " + v.Name + " has no approved event",
		})
	}
	for _, d := range report.UncoveredDays {
		reqs = append(reqs, SearchRequest{
			Priority: PriorityDay,
			Query:    window(source.Query{Kind: source.KindDay, Date: d.Date, Category: d.Category, Limit: d.Need - d.Have}),
			Reason:   fmt.Sprintf("%s %s has %d of %d events", d.Weekday, d.Date, d.Have, d.Need),
		})
	}
	cats := make([]string, 0, len(report.CategoryDeficits))
	for cat := range report.CategoryDeficits {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		reqs = append(reqs, SearchRequest{
			Priority: PriorityCategory,
			Query:    window(source.Query{Kind: source.KindCategory, Category: cat, Limit: report.CategoryDeficits[cat]}),
			Reason:   fmt.Sprintf("category %s is %d events short", cat, report.CategoryDeficits[cat]),
		})
	}
	if report.GlobalDeficit > 0 {
		reqs = append(reqs, SearchRequest{
			Priority: PriorityTopUp,
			Query:    window(source.Query{Kind: source.KindTopUp, Limit: report.GlobalDeficit}),
			Reason:   fmt.Sprintf("%d events short of the minimum", report.GlobalDeficit),
		})
	}

	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].Priority < reqs[j].Priority })
	return reqs
}

// Execute runs the requests with bounded concurrency and returns the new
// candidates in request order. Failed requests become warnings.
func (c *Coordinator) Execute(ctx context.Context, reqs []SearchRequest, known []string) ([]*event.Candidate, []string) {
	if c.opts.Source == nil || len(reqs) == 0 {
		return nil, nil
	}

	results := make([][]*event.Candidate, len(reqs))
	var (
		mu       sync.Mutex
		warnings []string
	)

	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			q := req.Query
			q.Exclude = known
			found, err := c.opts.Source.FetchCandidates(ctx, q)
			if err != nil {
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("supplementary search %q failed: %v", q.String(), err))
				mu.Unlock()
				c.log.Warn("Supplementary search failed", logger.Fields{"query": q.String(), "error": err.Error()})
			}
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var out []*event.Candidate
	for i, r := range results {
		c.log.Debug("Supplementary search done", logger.Fields{"query": reqs[i].Query.String(), "found": len(r)})
		out = append(out, r...)
	}
	sort.Strings(warnings)
	return out, warnings
}

// Markers of rejections caused only by a non-specific link
var recoverableReasons = []string{
	"generic link",
	"non-specific link",
	"link generico",
	"link nao especifico",
	"consultar",
}

// IsRecoverable reports whether a rejected event may be re-admitted without a
// new search: it was rejected for its link alone and still has the fields a
// listing needs.
func IsRecoverable(c *event.Candidate) bool {
	if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Date) == "" || strings.TrimSpace(c.Venue) == "" {
		return false
	}
	reason := event.NormalizeText(c.Reason)
	for _, marker := range recoverableReasons {
		if strings.Contains(reason, marker) {
			return true
		}
	}
	return false
}

// Recover splits rejected into events re-admitted to the approved set and
// those that stay rejected. Re-admitted events carry a note with the
// original rejection reason.
func (c *Coordinator) Recover(rejected []*event.Candidate) (recovered, remaining []*event.Candidate) {
	for _, ev := range rejected {
		if !IsRecoverable(ev) {
			remaining = append(remaining, ev)
			continue
		}
		if c.opts.FieldCheck != nil {
			if v := c.opts.FieldCheck(ev); !v.Approved {
				remaining = append(remaining, ev)
				continue
			}
		}
		ev.AddNote("recovered after rejection: " + ev.Reason)
		ev.Reason = ""
		recovered = append(recovered, ev)
	}
	if len(recovered) > 0 {
		c.log.Info("Recovered rejected events", logger.Fields{"count": len(recovered)})
	}
	return recovered, remaining
}
