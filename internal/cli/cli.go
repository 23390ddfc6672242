package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/event-vetting/internal/calendar"
	"github.com/pfrederiksen/event-vetting/internal/config"
	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/filter"
	"github.com/pfrederiksen/event-vetting/internal/logger"
	"github.com/pfrederiksen/event-vetting/internal/pipeline"
	"github.com/pfrederiksen/event-vetting/internal/publish"
	"github.com/pfrederiksen/event-vetting/internal/storage"
)

const (
	ExitSuccess   = 0
	ExitError     = 1
	ExitNewEvents = 2
)

const defaultConfigPath = "event-vetting.yaml"

// flags holds the command-line values of one invocation
type flags struct {
	configPath string
	verbose    bool
	logLevel   string

	start      string
	end        string
	strictness string
	threshold  int
	budget     int
	dataDir    string
	format     string
	sortOrder  string
	icsPath    string
	publish    bool
	noRetry    bool

	output string

	dates      string
	venues     []string
	categories []string
	weekends   bool
	maxPrice   float64
}

// exitCode is reported by Execute once the command returns
var exitCode = ExitSuccess

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "event-vetting",
		Short: "Validate, complete and consolidate cultural event listings",
		Long: `A CLI tool that vets candidate events before they reach a curated agenda.
Each candidate is checked field by field, its link is fetched and scored, and
an external judge decides. Coverage gaps trigger budgeted supplementary
searches; duplicates and recurring listings are consolidated at the end.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&f.configPath, "config", defaultConfigPath, "Path to the YAML configuration")
	cmd.PersistentFlags().BoolVar(&f.verbose, "verbose", false, "Enable verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN or ERROR (overrides config)")
	cmd.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "Data directory for snapshots and results (overrides config)")

	cmd.AddCommand(newRunCmd(f), newValidateCmd(f), newCalendarCmd(f))
	return cmd
}

// addFilterFlags registers the listing filters shared by every command
func addFilterFlags(cmd *cobra.Command, f *flags) {
	cmd.Flags().StringVar(&f.dates, "dates", "", "Only list events in this range ('15/11-30/11', '15-30 nov', 'novembro')")
	cmd.Flags().StringSliceVar(&f.venues, "venue", nil, "Only list events at these venues (substring match)")
	cmd.Flags().StringSliceVar(&f.categories, "category", nil, "Only list events in these categories (substring match)")
	cmd.Flags().BoolVar(&f.weekends, "weekends", false, "Only list weekend events")
	cmd.Flags().Float64Var(&f.maxPrice, "max-price", 0, "Only list events up to this price in reais")
}

// listingFilter builds the output filter from the flags
func listingFilter(f *flags, now time.Time) (*filter.Filter, error) {
	lf := filter.NewFilter()
	if f.dates != "" {
		from, to, err := filter.ParseDateRange(f.dates, now)
		if err != nil {
			return nil, err
		}
		lf.DateFrom, lf.DateTo = from, to
	}
	lf.Venues = f.venues
	lf.Categories = f.categories
	lf.WeekendsOnly = f.weekends
	lf.MaxPrice = f.maxPrice
	return lf, nil
}

func addRunFlags(cmd *cobra.Command, f *flags) {
	cmd.Flags().StringVar(&f.start, "start", "", "Window start date DD/MM/YYYY (default today)")
	cmd.Flags().StringVar(&f.end, "end", "", "Window end date DD/MM/YYYY")
	cmd.Flags().StringVar(&f.strictness, "strictness", "", "Judge failure policy: strict or permissive")
	cmd.Flags().IntVar(&f.threshold, "threshold", -1, "Minimum link quality score (0-100)")
	cmd.Flags().StringVar(&f.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&f.sortOrder, "sort", "date", "Sort order: date, venue or title")
	cmd.Flags().StringVar(&f.icsPath, "ics", "", "Write the approved agenda to this .ics file")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "Upsert approved events into PostgreSQL ("+config.EnvPostgresDSN+")")
	addFilterFlags(cmd, f)
}

func newRunCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full validation round",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, f, "")
		},
	}
	addRunFlags(cmd, f)
	cmd.Flags().IntVar(&f.budget, "budget", -1, "Supplementary search budget")
	cmd.Flags().BoolVar(&f.noRetry, "no-retry", false, "Report coverage gaps without searching for more events")
	return cmd
}

func newValidateCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a JSON file of candidate events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.noRetry = true
			return runPipeline(cmd, f, args[0])
		},
	}
	addRunFlags(cmd, f)
	return cmd
}

func newCalendarCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Export the last approved agenda as iCalendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalendar(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file (default stdout)")
	addFilterFlags(cmd, f)
	return cmd
}

// loadConfig reads the configuration and applies flag overrides. A missing
// default config file is not an error.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(f.configPath); errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
		cfg.ApplyEnv(os.Getenv)
	} else {
		cfg, err = config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
	}

	applyOverrides(cfg, f)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, f *flags) {
	if f.start != "" {
		cfg.Window.Start = f.start
	}
	if f.end != "" {
		cfg.Window.End = f.end
	}
	if f.strictness != "" {
		cfg.Strictness = strings.ToLower(f.strictness)
	}
	if f.threshold >= 0 {
		cfg.LinkQuality.Threshold = f.threshold
	}
	if f.budget >= 0 {
		cfg.Search.Budget = f.budget
	}
	if f.dataDir != "" {
		cfg.Storage.Dir = f.dataDir
	}
	if f.logLevel != "" {
		cfg.LogLevel = strings.ToUpper(f.logLevel)
	}
	if f.verbose {
		cfg.LogLevel = string(logger.LevelDebug)
	}
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.New(level, os.Stderr)
	logger.SetDefault(log)
	return log, nil
}

// runPipeline is the main command logic of run and validate
func runPipeline(cmd *cobra.Command, f *flags, file string) error {
	format := OutputFormat(strings.ToLower(f.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", f.format)
	}
	sortOrder := SortOrder(strings.ToLower(f.sortOrder))
	if !sortOrder.Valid() {
		return fmt.Errorf("invalid sort order: %s (must be 'date', 'venue' or 'title')", f.sortOrder)
	}

	lf, err := listingFilter(f, time.Now())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	a, err := buildApp(ctx, cfg, log, buildOptions{candidatesFile: file, noRetry: f.noRetry, now: time.Now()})
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen, a, log)
		defer srv.Close()
	}

	result, err := a.runner.Run(ctx)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	diff, err := store.SaveRun(result.RunID, result.Approved)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	path, err := store.WriteResult(result.RunID, result)
	if err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	log.Info("Run saved", logger.Fields{"path": path, "new_events": len(diff.NewEvents)})

	if f.icsPath != "" {
		ics := calendar.GenerateBulkICS(result.Approved, "Agenda", cfg.Location(), time.Now())
		if err := os.WriteFile(f.icsPath, []byte(ics), 0644); err != nil {
			return fmt.Errorf("writing calendar: %w", err)
		}
	}

	if f.publish {
		if err := publishResult(ctx, cfg, result, log); err != nil {
			// the run itself succeeded; report and keep the output
			result.Warnings = append(result.Warnings, err.Error())
			log.Error("Publishing failed", logger.Fields{"run_id": result.RunID}, err)
		}
	}

	if cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("Writing metrics textfile failed", logger.Fields{"path": cfg.Metrics.Textfile, "error": err.Error()})
		}
	}

	out := newOutputResult(result, diff, a.windowStart, a.windowEnd, lf)
	sortEvents(out.Approved, sortOrder)
	sortEvents(out.NewEvents, sortOrder)
	if err := WriteOutput(cmd.OutOrStdout(), out, format, f.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if len(diff.NewEvents) > 0 {
		exitCode = ExitNewEvents
	}
	return nil
}

func publishResult(ctx context.Context, cfg *config.Config, result *pipeline.Result, log *logger.Logger) error {
	if cfg.Publish.DSN == "" {
		return fmt.Errorf("publishing requested but %s is not set", config.EnvPostgresDSN)
	}
	pub, err := publish.Open(ctx, cfg.Publish.DSN, cfg.Publish.Table, log)
	if err != nil {
		return fmt.Errorf("opening publisher: %w", err)
	}
	defer pub.Close()
	_, err = pub.Publish(ctx, result.RunID, result.Approved)
	return err
}

func serveMetrics(addr string, a *app, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server stopped", logger.Fields{"addr": addr}, err)
		}
	}()
	return srv
}

// runCalendar exports the last snapshot
func runCalendar(cmd *cobra.Command, f *flags) error {
	lf, err := listingFilter(f, time.Now())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	store, err := storage.New(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	snapshot, err := store.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	events := make([]*event.Candidate, 0, len(snapshot.Events))
	for _, evt := range snapshot.Events {
		events = append(events, evt)
	}
	event.SortByDate(events)
	ics := calendar.GenerateBulkICS(lf.Apply(events), "Agenda", cfg.Location(), time.Now())

	if f.output == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), ics)
		return err
	}
	return os.WriteFile(f.output, []byte(ics), 0644)
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
	os.Exit(exitCode)
}
