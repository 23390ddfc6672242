package fieldcheck

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pfrederiksen/event-vetting/internal/event"
)

// DefaultExcludedCities are places outside the covered metro area that
// sources routinely leak into results.
var DefaultExcludedCities = []string{
	"Niterói", "São Paulo", "Petrópolis", "Búzios", "Angra dos Reis",
	"Cabo Frio", "Teresópolis", "Nova Friburgo", "Paraty", "Maricá",
}

// placeholderTimes are values sources use when the time is unknown
var placeholderTimes = []string{
	"a definir", "a confirmar", "tbd", "tba", "consultar", "xx:xx", "??", "--:--", "indefinido",
}

// Options configures a Validator.
type Options struct {
	WindowStart    time.Time
	WindowEnd      time.Time
	ExcludedCities []string
	MinLeadTime    time.Duration
	Location       *time.Location
	Now            func() time.Time
}

// Validator checks candidate fields. It holds no mutable state and is safe
// for concurrent use.
type Validator struct {
	opts   Options
	cities []*regexp.Regexp
	names  []string
}

// New creates a Validator. A nil Location means UTC and a nil Now means time.Now.
func New(opts Options) *Validator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	v := &Validator{opts: opts}
	for _, city := range opts.ExcludedCities {
		norm := event.NormalizeText(city)
		if norm == "" {
			continue
		}
		v.cities = append(v.cities, regexp.MustCompile(`\b`+regexp.QuoteMeta(norm)+`\b`))
		v.names = append(v.names, city)
	}
	return v
}

// fields carries the normalized values between checks so the candidate is
// only rewritten once every check has passed
type fields struct {
	date  time.Time
	clock string
}

type check func(c *event.Candidate, f *fields) (reason string, ok bool)

// Check runs the chain against c. On success the candidate's date and time are
// normalized in place.
func (v *Validator) Check(c *event.Candidate) event.Verdict {
	f := &fields{}
	for _, step := range []check{v.checkDateFormat, v.checkWindow, v.checkTime, v.checkScope, v.checkLeadTime} {
		if reason, ok := step(c, f); !ok {
			return event.Reject(reason)
		}
	}

	c.Date = event.FormatDate(f.date)
	if f.clock != "" {
		c.Time = f.clock
	}
	return event.Approve(100, "fields valid")
}

func (v *Validator) checkDateFormat(c *event.Candidate, f *fields) (string, bool) {
	d := event.ParseDate(c.Date)
	if d.IsZero() {
		return fmt.Sprintf("formato de data inválido %q (esperado DD/MM/AAAA)", c.Date), false
	}
	f.date = d
	return "", true
}

func (v *Validator) checkWindow(c *event.Candidate, f *fields) (string, bool) {
	start, end := event.Day(v.opts.WindowStart), event.Day(v.opts.WindowEnd)
	if f.date.Before(start) || f.date.After(end) {
		return fmt.Sprintf("data %s fora da janela %s-%s",
			event.FormatDate(f.date), event.FormatDate(start), event.FormatDate(end)), false
	}
	return "", true
}

func (v *Validator) checkTime(c *event.Candidate, f *fields) (string, bool) {
	raw := strings.TrimSpace(c.Time)
	if raw == "" {
		if c.Continuous {
			return "", true
		}
		return "horário ausente", false
	}

	lower := strings.ToLower(raw)
	for _, p := range placeholderTimes {
		if strings.Contains(lower, p) {
			return fmt.Sprintf("horário indefinido %q", raw), false
		}
	}

	normalized, err := event.NormalizeTime(raw)
	switch {
	case errors.Is(err, event.ErrInvalidHour):
		return fmt.Sprintf("hora inválida em %q (deve ser 0-23)", raw), false
	case errors.Is(err, event.ErrInvalidMinute):
		return fmt.Sprintf("minuto inválido em %q (deve ser 0-59)", raw), false
	case err != nil:
		return fmt.Sprintf("formato de horário inválido %q (esperado HH:MM)", raw), false
	}
	f.clock = normalized
	return "", true
}

func (v *Validator) checkScope(c *event.Candidate, f *fields) (string, bool) {
	venue := event.NormalizeText(c.Venue)
	title := event.NormalizeText(c.Title)
	for i, re := range v.cities {
		switch {
		case re.MatchString(venue):
			return fmt.Sprintf("local fora da área de cobertura: %s", v.names[i]), false
		case re.MatchString(title):
			return fmt.Sprintf("título cita cidade fora da área de cobertura: %s", v.names[i]), false
		}
	}
	return "", true
}

func (v *Validator) checkLeadTime(c *event.Candidate, f *fields) (string, bool) {
	if v.opts.MinLeadTime <= 0 || f.clock == "" {
		return "", true
	}
	now := v.opts.Now().In(v.opts.Location)
	if event.FormatDate(now) != event.FormatDate(f.date) {
		return "", true
	}

	start := event.StartsAt(event.FormatDate(f.date), f.clock, v.opts.Location)
	if lead := start.Sub(now); lead < v.opts.MinLeadTime {
		return fmt.Sprintf("evento hoje começa em %s, antes da antecedência mínima de %s",
			lead.Round(time.Minute), v.opts.MinLeadTime), false
	}
	return "", true
}
