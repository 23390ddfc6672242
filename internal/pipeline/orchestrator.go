package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/event-vetting/internal/adjudicator"
	"github.com/pfrederiksen/event-vetting/internal/consolidate"
	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/linkscore"
	"github.com/pfrederiksen/event-vetting/internal/logger"
	"github.com/pfrederiksen/event-vetting/internal/metrics"
	"github.com/pfrederiksen/event-vetting/internal/retry"
)

// DefaultConcurrency bounds candidates validated at once.
const DefaultConcurrency = 10

// ReasonGenericScraperLink rejects listing-page links on venues that have a
// dedicated scraper: the specific page exists, the source just missed it.
const ReasonGenericScraperLink = "link genérico não permitido"

// FieldChecker validates candidate fields
type FieldChecker interface {
	Check(c *event.Candidate) event.Verdict
}

// Fetcher retrieves link evidence
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*event.LinkEvidence, error)
}

// Scorer rates link evidence
type Scorer interface {
	Score(ev *event.LinkEvidence, c *event.Candidate) linkscore.Report
}

// Judge is the external adjudicator
type Judge interface {
	Adjudicate(ctx context.Context, c *event.Candidate, b adjudicator.Bundle) event.Verdict
	Strictness() adjudicator.Strictness
}

// LinkFinder searches for a better link for a candidate
type LinkFinder interface {
	Find(ctx context.Context, c *event.Candidate) (retry.LinkResult, error)
}

// TrustedVenue is a venue whose listings are approved without link checks
// when the link is absent or known good.
type TrustedVenue struct {
	Name    string   `yaml:"name" validate:"required"`
	Aliases []string `yaml:"aliases"`
	// LinkPrefixes are official pages; a link starting with one counts as
	// verified.
	LinkPrefixes []string `yaml:"link_prefixes"`
}

// Options configures an Orchestrator
type Options struct {
	Fields  FieldChecker
	Fetcher Fetcher
	Scorer  Scorer
	Judge   Judge
	// LinkSearch is optional; without it events keep the link they came with.
	LinkSearch    LinkFinder
	TrustedVenues []TrustedVenue
	WindowStart   time.Time
	WindowEnd     time.Time
	Concurrency   int
	Metrics       *metrics.Recorder
	Logger        *logger.Logger
}

// Orchestrator validates candidates. It holds no per-candidate state and is
// safe for concurrent use.
type Orchestrator struct {
	opts    Options
	trusted []trustedVenue
	log     *logger.Logger
}

type trustedVenue struct {
	names    []string
	prefixes []string
}

// NewOrchestrator creates an Orchestrator. Fields, Fetcher, Scorer and Judge
// are required.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	var missing []string
	if opts.Fields == nil {
		missing = append(missing, "field checker")
	}
	if opts.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if opts.Scorer == nil {
		missing = append(missing, "scorer")
	}
	if opts.Judge == nil {
		missing = append(missing, "judge")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("orchestrator: missing %s", strings.Join(missing, ", "))
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	o := &Orchestrator{opts: opts, log: opts.Logger}
	for _, tv := range opts.TrustedVenues {
		t := trustedVenue{names: []string{event.NormalizeText(tv.Name)}}
		for _, a := range tv.Aliases {
			t.names = append(t.names, event.NormalizeText(a))
		}
		for _, p := range tv.LinkPrefixes {
			t.prefixes = append(t.prefixes, strings.ToLower(p))
		}
		o.trusted = append(o.trusted, t)
	}
	return o, nil
}

// CheckFields runs only the field checks. It is what recovered events must
// still pass.
func (o *Orchestrator) CheckFields(c *event.Candidate) event.Verdict {
	return o.opts.Fields.Check(c)
}

// Validate decides one candidate. The candidate is updated in place (date
// correction, recovered link, reason and confidence). It never returns a
// nil Outcome; the error is non-nil only when the state machine was misused,
// in which case the candidate is rejected.
func (o *Orchestrator) Validate(ctx context.Context, c *event.Candidate) (*Outcome, error) {
	o.opts.Metrics.Candidate()
	out := newOutcome(c)

	err := o.validate(ctx, out)
	if err != nil && !out.State.Terminal() {
		out.Verdict = event.Reject("internal error: " + err.Error())
		c.Reason = out.Verdict.Reason
		out.State = StateRejected
		out.History = append(out.History, StateRejected)
	}

	switch {
	case out.Bypassed:
		o.opts.Metrics.Verdict("bypassed")
	case out.Approved():
		o.opts.Metrics.Verdict("approved")
	default:
		o.opts.Metrics.Verdict("rejected")
	}
	return out, err
}

func (o *Orchestrator) validate(ctx context.Context, out *Outcome) error {
	c := out.Candidate
	if consolidate.IsContinuous(c) {
		c.Continuous = true
	}
	if c.Link != "" && event.IsPlaceholderLink(c.Link) {
		c.AddNote(fmt.Sprintf("placeholder link %q dropped", c.Link))
		c.Link = ""
	}

	if strings.TrimSpace(c.Title) == "" {
		if err := out.Transition(StateFieldChecked); err != nil {
			return err
		}
		return out.decide(event.Reject("missing title"))
	}
	v := o.opts.Fields.Check(c)
	if err := out.Transition(StateFieldChecked); err != nil {
		return err
	}
	if !v.Approved {
		return out.decide(v)
	}

	if c.HasLink() && linkscore.IsScraperVenueDomain(c.Link) && linkscore.IsGenericLink(c.Link) {
		return out.decide(event.Reject(ReasonGenericScraperLink))
	}

	if o.bypass(c) {
		out.Bypassed = true
		c.AddNote("trusted venue: link checks skipped")
		return out.decide(event.Approve(100, "trusted venue"))
	}

	ev := o.resolveLink(ctx, c)
	if ev != nil {
		if err := out.Transition(StateLinkFetched); err != nil {
			return err
		}
		out.Evidence = ev
	} else if err := out.Transition(StateNoLink); err != nil {
		return err
	}

	if reject, ok := adjudicator.Reconcile(c, ev, o.opts.Judge.Strictness(), o.opts.WindowStart, o.opts.WindowEnd); ok {
		if err := out.Transition(StateAdjudicated); err != nil {
			return err
		}
		return out.decide(reject)
	}

	bundle := adjudicator.Bundle{Evidence: ev}
	if ev.Fetched() {
		report := o.opts.Scorer.Score(ev, c)
		o.opts.Metrics.ObserveScore(report.Score)
		out.Quality = &report
		bundle.Quality = &report
	}

	verdict := o.opts.Judge.Adjudicate(ctx, c, bundle)
	if err := out.Transition(StateAdjudicated); err != nil {
		return err
	}
	return out.decide(verdict)
}

// resolveLink fetches the candidate link and, when it is missing, generic or
// permanently broken, asks the link search for a better one. It returns nil
// when there is no link to show the judge.
func (o *Orchestrator) resolveLink(ctx context.Context, c *event.Candidate) *event.LinkEvidence {
	var ev *event.LinkEvidence
	if c.HasLink() {
		ev, _ = o.opts.Fetcher.Fetch(ctx, c.Link)
		if ev.Fetched() && !ev.IsGenericPage && !linkscore.IsGenericLink(c.Link) {
			return ev
		}
	}
	if o.opts.LinkSearch == nil {
		return ev
	}

	res, err := o.opts.LinkSearch.Find(ctx, c)
	if err != nil {
		o.log.Debug("Link search found nothing better", logger.Fields{"title": c.Title, "error": err.Error()})
		return ev
	}
	if c.Link != "" {
		c.AddNote(fmt.Sprintf("link replaced: %s -> %s", c.Link, res.Link))
	} else {
		c.AddNote("link found by search: " + res.Link)
	}
	c.Link = res.Link
	return res.Evidence
}

// bypass reports whether c is a complete listing from a trusted venue whose
// link is absent or verified. A trusted venue with an unverified link still
// goes to the judge.
func (o *Orchestrator) bypass(c *event.Candidate) bool {
	if c.Title == "" || c.Date == "" || c.Venue == "" || (c.Time == "" && !c.Continuous) {
		return false
	}
	venue := event.NormalizeText(c.Venue)
	for _, tv := range o.trusted {
		matched := false
		for _, name := range tv.names {
			if name != "" && strings.Contains(venue, name) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if !c.HasLink() || (c.LinkValid != nil && *c.LinkValid) {
			return true
		}
		link := strings.ToLower(c.Link)
		for _, p := range tv.prefixes {
			if strings.HasPrefix(link, p) {
				return true
			}
		}
		return false
	}
	return false
}

// Batch is the result of validating a set of candidates
type Batch struct {
	Approved []*event.Candidate
	Rejected []*event.Candidate
	Bypassed int
	Warnings []string
}

// collector gathers outcomes from concurrent validations
type collector struct {
	mu       sync.Mutex
	outcomes map[int]*Outcome
	warnings []string
}

func (c *collector) add(i int, out *Outcome, warnings ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[i] = out
	c.warnings = append(c.warnings, warnings...)
}

// ValidateAll validates candidates concurrently and returns them split by
// verdict, in input order.
func (o *Orchestrator) ValidateAll(ctx context.Context, candidates []*event.Candidate) Batch {
	col := &collector{outcomes: make(map[int]*Outcome, len(candidates))}

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			out, err := o.Validate(ctx, c)
			var warnings []string
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", c.Title, err))
			}
			for _, w := range out.Verdict.Warnings {
				warnings = append(warnings, c.Title+": "+w)
			}
			col.add(i, out, warnings...)
			return nil
		})
	}
	_ = g.Wait()

	var b Batch
	for i := range candidates {
		out := col.outcomes[i]
		if out.Approved() {
			b.Approved = append(b.Approved, out.Candidate)
			if out.Bypassed {
				b.Bypassed++
			}
		} else {
			b.Rejected = append(b.Rejected, out.Candidate)
		}
	}
	sort.Strings(col.warnings)
	b.Warnings = col.warnings
	o.log.Info("Validation batch done", logger.Fields{
		"candidates": len(candidates),
		"approved":   len(b.Approved),
		"rejected":   len(b.Rejected),
		"bypassed":   b.Bypassed,
	})
	return b
}
