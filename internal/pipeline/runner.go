package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/event-vetting/internal/consolidate"
	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/gaps"
	"github.com/pfrederiksen/event-vetting/internal/logger"
	"github.com/pfrederiksen/event-vetting/internal/metrics"
	"github.com/pfrederiksen/event-vetting/internal/retry"
	"github.com/pfrederiksen/event-vetting/internal/source"
)

const (
	DefaultMaxRetryRounds    = 3
	DefaultMaxEventsPerVenue = 25
)

// Stats summarizes a run
type Stats struct {
	Candidates        int `json:"candidates"`
	Approved          int `json:"approved"`
	Rejected          int `json:"rejected"`
	Bypassed          int `json:"bypassed"`
	Recovered         int `json:"recovered"`
	RetriesUsed       int `json:"retries_used"`
	RetryRounds       int `json:"retry_rounds"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	Consolidated      int `json:"consolidated"`
	Capped            int `json:"capped"`
}

// Result is everything a run produced
type Result struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Approved   []*event.Candidate `json:"approved"`
	Rejected   []*event.Candidate `json:"rejected"`
	Warnings   []string           `json:"warnings,omitempty"`
	Gaps       gaps.Report        `json:"gaps"`
	Stats      Stats              `json:"stats"`
}

// RunnerOptions configures a Runner
type RunnerOptions struct {
	Source       source.CandidateSource
	Orchestrator *Orchestrator
	Rules        gaps.Rules
	// Coordinator is optional; without it gaps are reported but not chased.
	Coordinator       *retry.Coordinator
	Consolidator      *consolidate.Consolidator
	MaxRetryRounds    int
	MaxEventsPerVenue int
	Metrics           *metrics.Recorder
	Logger            *logger.Logger
	Now               func() time.Time
}

// Runner executes whole pipeline runs
type Runner struct {
	opts RunnerOptions
}

// NewRunner creates a Runner. An Orchestrator is required.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("runner: orchestrator is required")
	}
	if opts.Consolidator == nil {
		opts.Consolidator = consolidate.New(consolidate.Options{})
	}
	if opts.MaxRetryRounds <= 0 {
		opts.MaxRetryRounds = DefaultMaxRetryRounds
	}
	if opts.MaxEventsPerVenue == 0 {
		opts.MaxEventsPerVenue = DefaultMaxEventsPerVenue
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{opts: opts}, nil
}

// Run fetches the initial candidates from the source and processes them.
// Source failures become warnings as long as some candidates arrived.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.opts.Source == nil {
		return nil, fmt.Errorf("runner: no candidate source configured")
	}
	q := source.Query{
		Kind:        source.KindInitial,
		WindowStart: r.opts.Rules.WindowStart,
		WindowEnd:   r.opts.Rules.WindowEnd,
	}
	candidates, err := r.opts.Source.FetchCandidates(ctx, q)
	if err != nil && len(candidates) == 0 {
		return nil, fmt.Errorf("fetching candidates from %s: %w", r.opts.Source.Name(), err)
	}
	res := r.Process(ctx, candidates)
	if err != nil {
		res.Warnings = append([]string{"candidate source: " + err.Error()}, res.Warnings...)
	}
	return res, nil
}

// Process runs the pipeline over candidates. It always returns a consistent
// result; problems along the way are reported in Result.Warnings.
func (r *Runner) Process(ctx context.Context, candidates []*event.Candidate) *Result {
	res := &Result{RunID: uuid.NewString(), StartedAt: r.opts.Now().UTC()}
	log := r.opts.Logger.With(logger.Fields{"run_id": res.RunID})
	log.Info("Run started", logger.Fields{"candidates": len(candidates)})

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c.Key()] = true
	}
	res.Stats.Candidates = len(candidates)

	batch := r.opts.Orchestrator.ValidateAll(ctx, candidates)
	approved, rejected := batch.Approved, batch.Rejected
	res.Stats.Bypassed += batch.Bypassed
	res.Warnings = append(res.Warnings, batch.Warnings...)

	if co := r.opts.Coordinator; co != nil {
		startBudget := co.Budget().Remaining()
		for round := 1; round <= r.opts.MaxRetryRounds; round++ {
			if ctx.Err() != nil {
				res.Warnings = append(res.Warnings, "retry loop stopped: "+ctx.Err().Error())
				break
			}
			unique, _ := consolidate.Dedupe(approved)
			report := gaps.Analyze(unique, r.opts.Rules)
			if !report.HasGaps() {
				break
			}
			if co.Budget().Exhausted() {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%v with gaps open: %s", retry.ErrBudgetExhausted, report))
				break
			}

			reqs, warnings := co.BuildRequests(report)
			res.Warnings = append(res.Warnings, warnings...)
			if len(reqs) == 0 {
				break
			}
			res.Stats.RetryRounds = round
			log.Info("Chasing gaps", logger.Fields{"round": round, "requests": len(reqs), "gaps": report.String()})

			found, warnings := co.Execute(ctx, reqs, titles(approved))
			res.Warnings = append(res.Warnings, warnings...)

			var added []*event.Candidate
			for _, c := range found {
				if seen[c.Key()] {
					continue
				}
				seen[c.Key()] = true
				added = append(added, c)
			}
			if len(added) == 0 {
				log.Info("Supplementary searches found nothing new", logger.Fields{"round": round})
				break
			}
			res.Stats.Candidates += len(added)

			more := r.opts.Orchestrator.ValidateAll(ctx, added)
			approved = append(approved, more.Approved...)
			rejected = append(rejected, more.Rejected...)
			res.Stats.Bypassed += more.Bypassed
			res.Warnings = append(res.Warnings, more.Warnings...)
			if len(more.Approved) == 0 {
				break
			}
		}
		res.Stats.RetriesUsed = int(startBudget - co.Budget().Remaining())

		recovered, remaining := co.Recover(rejected)
		approved = append(approved, recovered...)
		rejected = remaining
		res.Stats.Recovered = len(recovered)
	}

	approved, removed := consolidate.Dedupe(approved)
	res.Stats.DuplicatesRemoved = removed
	r.opts.Metrics.DuplicatesRemoved(removed)

	approved, cstats := r.opts.Consolidator.Consolidate(approved)
	res.Stats.Consolidated = cstats.Merged
	r.opts.Metrics.Consolidated(cstats.Merged)

	approved, capped := consolidate.CapPerVenue(approved, r.opts.MaxEventsPerVenue, r.opts.Consolidator.Venues())
	for _, c := range capped {
		c.Reason = fmt.Sprintf("venue limit of %d events reached", r.opts.MaxEventsPerVenue)
		rejected = append(rejected, c)
	}
	res.Stats.Capped = len(capped)

	event.SortByDate(rejected)
	res.Approved = approved
	res.Rejected = rejected
	res.Gaps = gaps.Analyze(approved, r.opts.Rules)
	res.Stats.Approved = len(approved)
	res.Stats.Rejected = len(rejected)
	res.FinishedAt = r.opts.Now().UTC()
	r.opts.Metrics.RunFinished(res.FinishedAt.Sub(res.StartedAt))

	log.Info("Run finished", logger.Fields{
		"approved":     res.Stats.Approved,
		"rejected":     res.Stats.Rejected,
		"recovered":    res.Stats.Recovered,
		"retries_used": res.Stats.RetriesUsed,
		"warnings":     len(res.Warnings),
	})
	return res
}

func titles(events []*event.Candidate) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}
