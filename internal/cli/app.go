package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/adjudicator"
	"github.com/pfrederiksen/event-vetting/internal/config"
	"github.com/pfrederiksen/event-vetting/internal/consolidate"
	"github.com/pfrederiksen/event-vetting/internal/evidencecache"
	"github.com/pfrederiksen/event-vetting/internal/fieldcheck"
	"github.com/pfrederiksen/event-vetting/internal/linkfetch"
	"github.com/pfrederiksen/event-vetting/internal/linkscore"
	"github.com/pfrederiksen/event-vetting/internal/logger"
	"github.com/pfrederiksen/event-vetting/internal/metrics"
	"github.com/pfrederiksen/event-vetting/internal/pipeline"
	"github.com/pfrederiksen/event-vetting/internal/provider/gemini"
	"github.com/pfrederiksen/event-vetting/internal/provider/openrouter"
	"github.com/pfrederiksen/event-vetting/internal/retry"
	"github.com/pfrederiksen/event-vetting/internal/scraper"
	"github.com/pfrederiksen/event-vetting/internal/source"
)

// app holds everything a run needs, built from the configuration.
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	metrics     *metrics.Recorder
	windowStart time.Time
	windowEnd   time.Time
	runner      *pipeline.Runner
	closers     []func() error
}

// buildOptions selects the optional parts of the wiring
type buildOptions struct {
	// candidatesFile replaces every configured source with one file.
	candidatesFile string
	// noRetry disables gap-driven searches.
	noRetry bool
	now     time.Time
}

func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger, opts buildOptions) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	start, end, err := cfg.SearchWindow(opts.now)
	if err != nil {
		return nil, err
	}
	a.windowStart, a.windowEnd = start, end

	judge, err := newCompleter(ctx, cfg, cfg.Judge, false, log)
	if err != nil {
		return nil, fmt.Errorf("judge: %w", err)
	}

	// A search provider is optional: without an API key the run falls back to
	// files and scrapers, and gaps are reported but not chased.
	var search *source.SearchSource
	if searcher, err := newCompleter(ctx, cfg, cfg.SearchProvider, true, log); err == nil {
		search = source.NewSearchSource(cfg.SearchProvider.Provider, searcher, log)
	} else if opts.candidatesFile == "" {
		log.Warn("Search provider unavailable", logger.Fields{"provider": cfg.SearchProvider.Provider, "error": err.Error()})
	}

	src, err := buildSources(cfg, search, opts.candidatesFile, log)
	if err != nil {
		return nil, err
	}

	cache, err := a.buildCache()
	if err != nil {
		a.Close()
		return nil, err
	}
	fetcher := linkfetch.New(linkfetch.Options{
		Timeout:       cfg.Fetch.Timeout,
		MaxAttempts:   cfg.Fetch.MaxAttempts,
		MaxConcurrent: cfg.Fetch.MaxConcurrent,
		Cache:         cache,
		Metrics:       a.metrics,
		Logger:        log,
	})
	scorer := linkscore.New(linkscore.Options{
		Threshold:     cfg.LinkQuality.Threshold,
		AcceptGeneric: cfg.LinkQuality.AcceptGeneric,
	})
	gateway, err := adjudicator.New(adjudicator.Options{
		Completer:  judge,
		Strictness: adjudicator.Strictness(cfg.Strictness),
		Timeout:    cfg.Judge.Timeout,
		Metrics:    a.metrics,
		Logger:     log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	linkBudget, budget := newBudgets(cfg)
	orchOpts := pipeline.Options{
		Fields: fieldcheck.New(fieldcheck.Options{
			WindowStart:    start,
			WindowEnd:      end,
			ExcludedCities: cfg.Validation.ExcludedCities,
			MinLeadTime:    cfg.Validation.MinLeadTime,
			Location:       cfg.Location(),
		}),
		Fetcher:       fetcher,
		Scorer:        scorer,
		Judge:         gateway,
		TrustedVenues: cfg.TrustedVenues,
		WindowStart:   start,
		WindowEnd:     end,
		Concurrency:   cfg.Validation.Concurrency,
		Metrics:       a.metrics,
		Logger:        log,
	}
	if search != nil {
		orchOpts.LinkSearch = retry.NewLinkSearch(search, fetcher, scorer, linkBudget, cfg.LinkQuality.MaxSearches, a.metrics, log)
	}
	orch, err := pipeline.NewOrchestrator(orchOpts)
	if err != nil {
		a.Close()
		return nil, err
	}

	runnerOpts := pipeline.RunnerOptions{
		Source:       src,
		Orchestrator: orch,
		Rules:        cfg.GapRules(start, end),
		Consolidator: consolidate.New(consolidate.Options{
			Similarity:    cfg.Consolidation.Similarity,
			TimeTolerance: cfg.Consolidation.TimeTolerance,
			VenueAliases:  cfg.Consolidation.VenueAliases,
		}),
		MaxRetryRounds:    cfg.Search.MaxRounds,
		MaxEventsPerVenue: cfg.Consolidation.MaxEventsPerVenue,
		Metrics:           a.metrics,
		Logger:            log,
	}
	if search != nil && !opts.noRetry {
		runnerOpts.Coordinator = retry.New(retry.Options{
			Source:      src,
			Budget:      budget,
			Concurrency: cfg.Search.Concurrency,
			WindowStart: start,
			WindowEnd:   end,
			FieldCheck:  orch.CheckFields,
			Metrics:     a.metrics,
			Logger:      log,
		})
	}
	a.runner, err = pipeline.NewRunner(runnerOpts)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newBudgets returns the run budget for link searches and, separately, the
// budget for gap-driven supplementary searches.
func newBudgets(cfg *config.Config) (link, search *retry.Budget) {
	return retry.NewBudget(cfg.LinkQuality.SearchBudget), retry.NewBudget(cfg.Search.Budget)
}

// newCompleter builds a judge or search client. grounded asks for a client
// that can read the live web.
func newCompleter(ctx context.Context, cfg *config.Config, p config.Provider, grounded bool, log *logger.Logger) (source.Completer, error) {
	switch p.Provider {
	case "openrouter":
		return openrouter.New(openrouter.Options{
			APIKey:    cfg.OpenRouterKey,
			BaseURL:   cfg.OpenRouterURL,
			Model:     p.Model,
			WebSearch: grounded && !isSearchModel(p.Model),
			Timeout:   p.Timeout,
			Logger:    log,
		})
	case "gemini":
		return gemini.New(ctx, gemini.Options{
			APIKey:   cfg.GeminiKey,
			Model:    p.Model,
			Grounded: grounded,
			Logger:   log,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", p.Provider)
	}
}

// isSearchModel reports models that browse on their own (Perplexity Sonar)
func isSearchModel(model string) bool {
	return strings.HasPrefix(model, "perplexity/")
}

// buildSources assembles the candidate sources. A candidates file given on
// the command line replaces every configured source.
func buildSources(cfg *config.Config, search *source.SearchSource, file string, log *logger.Logger) (source.CandidateSource, error) {
	if file != "" {
		return source.NewFileSource(file), nil
	}

	var sources []source.CandidateSource
	if cfg.CandidatesFile != "" {
		sources = append(sources, source.NewFileSource(cfg.CandidatesFile))
	}
	if len(cfg.Venues) > 0 {
		sources = append(sources, scraper.New(cfg.Venues, nil, log))
	}
	if search != nil {
		sources = append(sources, search)
	}

	switch len(sources) {
	case 0:
		return nil, errors.New("no candidate source configured: set candidates_file, venues or a search provider API key")
	case 1:
		return sources[0], nil
	}
	return source.NewMulti(sources...), nil
}

func (a *app) buildCache() (linkfetch.Cache, error) {
	if a.cfg.Fetch.CachePath == "" {
		return evidencecache.NewMemory(a.cfg.Fetch.CacheTTL), nil
	}
	store, err := evidencecache.OpenSQLite(a.cfg.Fetch.CachePath, a.cfg.Fetch.CacheTTL, a.log)
	if err != nil {
		return nil, err
	}
	if n, err := store.Prune(); err != nil {
		a.log.Warn("Evidence cache prune failed", logger.Fields{"error": err.Error()})
	} else if n > 0 {
		a.log.Debug("Pruned evidence cache", logger.Fields{"removed": n})
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// Close releases resources opened by buildApp
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
