// Package config loads the YAML run configuration.
//
// Defaults reproduce the production settings; a file only needs the keys it
// changes. Secrets never live in the file: API keys and the Postgres DSN come
// from the environment.
//
// Example usage:
//
//	cfg, err := config.Load("event-vetting.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	start, end, err := cfg.SearchWindow(time.Now())
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/gaps"
	"github.com/pfrederiksen/event-vetting/internal/pipeline"
	"github.com/pfrederiksen/event-vetting/internal/scraper"
)

// Environment variables holding secrets
const (
	EnvOpenRouterKey = "OPENROUTER_API_KEY"
	EnvGeminiKey     = "GEMINI_API_KEY"
	EnvPostgresDSN   = "EVENT_VETTING_PG_DSN"
)

// Window is the search window. Start and End are DD/MM/YYYY; when Start is
// empty the window opens today and spans Days days.
type Window struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Days  int    `yaml:"days" validate:"gte=0"`
}

// Provider selects and tunes a remote model
type Provider struct {
	Provider string        `yaml:"provider" validate:"oneof=openrouter gemini"`
	Model    string        `yaml:"model" validate:"required"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LinkQuality struct {
	Threshold     int      `yaml:"threshold" validate:"gte=0,lte=100"`
	AcceptGeneric []string `yaml:"accept_generic"`

	// MaxSearches caps search attempts for one event; SearchBudget caps
	// them for the whole run. Neither draws on Search.Budget.
	MaxSearches  int `yaml:"max_searches" validate:"gte=0"`
	SearchBudget int `yaml:"search_budget" validate:"gte=0"`
}

type Fetch struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts" validate:"gte=1"`
	MaxConcurrent int           `yaml:"max_concurrent" validate:"gte=1"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	// CachePath enables the SQLite evidence cache. Empty keeps it in memory.
	CachePath string `yaml:"cache_path"`
}

type Search struct {
	Budget      int `yaml:"budget" validate:"gte=0"`
	Concurrency int `yaml:"concurrency" validate:"gte=1"`
	MaxRounds   int `yaml:"max_rounds" validate:"gte=1"`
}

type RequiredVenue struct {
	Key       string   `yaml:"key" validate:"required"`
	Name      string   `yaml:"name" validate:"required"`
	Aliases   []string `yaml:"aliases"`
	Dedicated bool     `yaml:"dedicated"`
}

type DayRule struct {
	Weekday  string `yaml:"weekday" validate:"required"`
	Category string `yaml:"category"`
	Min      int    `yaml:"min" validate:"gte=1"`
}

type Gaps struct {
	MinCounted     int             `yaml:"min_counted" validate:"gte=0"`
	CountedDays    []string        `yaml:"counted_days"`
	MinTotal       int             `yaml:"min_total" validate:"gte=0"`
	CategoryMin    map[string]int  `yaml:"category_min"`
	RequiredVenues []RequiredVenue `yaml:"required_venues" validate:"dive"`
	DayRules       []DayRule       `yaml:"day_rules" validate:"dive"`
}

type Validation struct {
	Concurrency    int           `yaml:"concurrency" validate:"gte=1"`
	ExcludedCities []string      `yaml:"excluded_cities"`
	MinLeadTime    time.Duration `yaml:"min_lead_time"`
}

type Consolidation struct {
	Similarity        float64           `yaml:"similarity" validate:"gt=0,lte=1"`
	TimeTolerance     int               `yaml:"time_tolerance_minutes" validate:"gte=0"`
	VenueAliases      map[string]string `yaml:"venue_aliases"`
	MaxEventsPerVenue int               `yaml:"max_events_per_venue" validate:"gte=0"`
}

type Storage struct {
	Dir string `yaml:"dir" validate:"required"`
}

type Publish struct {
	Table string `yaml:"table" validate:"required"`
	DSN   string `yaml:"-"`
}

type Metrics struct {
	Listen   string `yaml:"listen"`
	Textfile string `yaml:"textfile"`
}

// Config is the complete run configuration
type Config struct {
	Window     Window        `yaml:"window"`
	Timezone   string        `yaml:"timezone" validate:"required"`
	Strictness string        `yaml:"strictness" validate:"oneof=strict permissive"`
	RunTimeout time.Duration `yaml:"run_timeout"`
	LogLevel   string        `yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`

	CandidatesFile string `yaml:"candidates_file"`

	Judge          Provider    `yaml:"judge"`
	SearchProvider Provider    `yaml:"search_provider"`
	OpenRouterURL  string      `yaml:"openrouter_url" validate:"omitempty,url"`
	LinkQuality    LinkQuality `yaml:"link_quality"`
	Fetch          Fetch       `yaml:"fetch"`
	Search         Search      `yaml:"search"`
	Gaps           Gaps        `yaml:"gaps"`
	Validation     Validation  `yaml:"validation"`

	Consolidation Consolidation           `yaml:"consolidation"`
	TrustedVenues []pipeline.TrustedVenue `yaml:"trusted_venues" validate:"dive"`
	Venues        []scraper.Venue         `yaml:"venues" validate:"dive"`
	Storage       Storage                 `yaml:"storage"`
	Publish       Publish                 `yaml:"publish"`
	Metrics       Metrics                 `yaml:"metrics"`

	OpenRouterKey string `yaml:"-"`
	GeminiKey     string `yaml:"-"`
}

// Default returns the production configuration.
func Default() *Config {
	return &Config{
		Window:     Window{Days: 21},
		Timezone:   "America/Sao_Paulo",
		Strictness: "permissive",
		RunTimeout: 30 * time.Minute,
		LogLevel:   "INFO",
		Judge: Provider{
			Provider: "openrouter",
			Model:    "openai/gpt-5",
			Timeout:  5 * time.Minute,
		},
		SearchProvider: Provider{
			Provider: "openrouter",
			Model:    "perplexity/sonar",
			Timeout:  2 * time.Minute,
		},
		OpenRouterURL: "https://openrouter.ai/api/v1",
		LinkQuality: LinkQuality{
			Threshold:     65,
			AcceptGeneric: []string{"roda de choro", "jam session", "open mic", "sarau"},
			MaxSearches:   5,
			SearchBudget:  60,
		},
		Fetch: Fetch{
			Timeout:       15 * time.Second,
			MaxAttempts:   3,
			MaxConcurrent: 30,
			CacheTTL:      6 * time.Hour,
		},
		Search: Search{Budget: 30, Concurrency: 3, MaxRounds: 3},
		Gaps: Gaps{
			MinCounted:  gaps.DefaultMinCounted,
			CountedDays: []string{"saturday", "sunday"},
			MinTotal:    gaps.DefaultMinTotal,
		},
		Validation: Validation{
			Concurrency:    10,
			ExcludedCities: []string{"Niterói", "São Paulo", "Petrópolis", "Búzios", "Angra dos Reis", "Cabo Frio", "Teresópolis", "Nova Friburgo", "Paraty", "Maricá"},
			MinLeadTime:    3 * time.Hour,
		},
		Consolidation: Consolidation{
			Similarity:        0.90,
			TimeTolerance:     60,
			MaxEventsPerVenue: 25,
		},
		TrustedVenues: []pipeline.TrustedVenue{
			{Name: "Blue Note Rio", Aliases: []string{"Blue Note", "BlueNote"}, LinkPrefixes: []string{"https://www.bluenoterio.com.br/shows", "https://www.eventim.com.br/artist/blue-note-rio"}},
			{Name: "Sala Cecília Meireles", Aliases: []string{"Cecília Meireles", "Cecilia Meireles"}, LinkPrefixes: []string{"https://salaceciliameireles.rj.gov.br"}},
			{Name: "Theatro Municipal", Aliases: []string{"Teatro Municipal"}, LinkPrefixes: []string{"https://theatromunicipal.rj.gov.br"}},
		},
		Storage: Storage{Dir: "data"},
		Publish: Publish{Table: "approved_events"},
	}
}

// Load reads path over the defaults, applies the environment and validates
// the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills secrets from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvOpenRouterKey); v != "" {
		c.OpenRouterKey = v
	}
	if v := getenv(EnvGeminiKey); v != "" {
		c.GeminiKey = v
	}
	if v := getenv(EnvPostgresDSN); v != "" {
		c.Publish.DSN = v
	}
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if c.Window.Start != "" {
		if _, ok := event.NormalizeDate(c.Window.Start); !ok {
			errs = append(errs, fmt.Errorf("window start %q is not DD/MM/YYYY", c.Window.Start))
		}
	}
	if c.Window.End != "" {
		if _, ok := event.NormalizeDate(c.Window.End); !ok {
			errs = append(errs, fmt.Errorf("window end %q is not DD/MM/YYYY", c.Window.End))
		}
	}
	for _, d := range c.Gaps.CountedDays {
		if _, err := ParseWeekday(d); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range c.Gaps.DayRules {
		if _, err := ParseWeekday(r.Weekday); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SearchWindow resolves the search window relative to now.
func (c *Config) SearchWindow(now time.Time) (start, end time.Time, err error) {
	today := event.Day(now.In(c.Location()))
	start = today
	if c.Window.Start != "" {
		start = event.ParseDate(c.Window.Start)
	}
	switch {
	case c.Window.End != "":
		end = event.ParseDate(c.Window.End)
	case c.Window.Days > 0:
		end = start.AddDate(0, 0, c.Window.Days)
	default:
		end = start
	}
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid search window %q-%q", c.Window.Start, c.Window.End)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("search window ends (%s) before it starts (%s)", event.FormatDate(end), event.FormatDate(start))
	}
	return start, end, nil
}

// GapRules builds the gap analysis rules for a window.
func (c *Config) GapRules(start, end time.Time) gaps.Rules {
	rules := gaps.Rules{
		WindowStart: start,
		WindowEnd:   end,
		MinCounted:  c.Gaps.MinCounted,
		MinTotal:    c.Gaps.MinTotal,
		CategoryMin: c.Gaps.CategoryMin,
	}
	for _, d := range c.Gaps.CountedDays {
		if wd, err := ParseWeekday(d); err == nil {
			rules.CountedDays = append(rules.CountedDays, wd)
		}
	}
	for _, v := range c.Gaps.RequiredVenues {
		rules.RequiredVenues = append(rules.RequiredVenues, gaps.VenueRequirement{
			Key: v.Key, Name: v.Name, Aliases: v.Aliases, DedicatedSource: v.Dedicated,
		})
	}
	for _, r := range c.Gaps.DayRules {
		if wd, err := ParseWeekday(r.Weekday); err == nil {
			rules.DayRules = append(rules.DayRules, gaps.DayRule{Weekday: wd, Category: r.Category, Min: r.Min})
		}
	}
	return rules
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "segunda": time.Monday,
	"tuesday": time.Tuesday, "terca": time.Tuesday,
	"wednesday": time.Wednesday, "quarta": time.Wednesday,
	"thursday": time.Thursday, "quinta": time.Thursday,
	"friday": time.Friday, "sexta": time.Friday,
	"saturday": time.Saturday, "sabado": time.Saturday,
}

// ParseWeekday accepts English or Portuguese day names ("saturday",
// "sábado", "sexta-feira").
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.TrimSuffix(event.NormalizeText(s), "-feira")
	if wd, ok := weekdays[key]; ok {
		return wd, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
