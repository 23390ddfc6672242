package adjudicator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/jsonx"
	"github.com/pfrederiksen/event-vetting/internal/linkscore"
	"github.com/pfrederiksen/event-vetting/internal/logger"
	"github.com/pfrederiksen/event-vetting/internal/metrics"
)

// Strictness selects the fallback policy when the judge fails.
type Strictness string

const (
	Strict     Strictness = "strict"
	Permissive Strictness = "permissive"
)

const (
	// DefaultConfidence is assumed when the judge omits a confidence.
	DefaultConfidence = 50
	// FallbackConfidence is the confidence of a permissive fallback approval.
	FallbackConfidence = 30
	// DefaultMaxLinkChars bounds the page text sent to the judge.
	DefaultMaxLinkChars = 2000
)

// ErrInvalidResponse is returned when the judge answer lacks required fields.
var ErrInvalidResponse = errors.New("invalid adjudicator response")

// Completer sends a prompt to a remote model and returns its raw text answer.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Bundle is the evidence sent to the judge alongside the candidate.
type Bundle struct {
	Evidence *event.LinkEvidence
	Quality  *linkscore.Report
}

// Options configures a Gateway
type Options struct {
	Completer    Completer
	Strictness   Strictness
	MaxLinkChars int
	Timeout      time.Duration
	Metrics      *metrics.Recorder
	Logger       *logger.Logger
}

// Gateway turns judge answers into verdicts.
type Gateway struct {
	completer    Completer
	strictness   Strictness
	maxLinkChars int
	timeout      time.Duration
	validate     *validator.Validate
	metrics      *metrics.Recorder
	log          *logger.Logger
}

// response is the structured answer requested from the judge. Pointer fields
// distinguish "absent" from the zero value.
type response struct {
	Approved   *bool    `json:"approved" validate:"required"`
	Confidence *int     `json:"confidence" validate:"omitempty,min=0,max=100"`
	Reason     string   `json:"reason" validate:"required"`
	Warnings   []string `json:"warnings"`
}

// New creates a Gateway.
func New(opts Options) (*Gateway, error) {
	if opts.Completer == nil {
		return nil, errors.New("adjudicator: completer is required")
	}
	switch opts.Strictness {
	case "":
		opts.Strictness = Permissive
	case Strict, Permissive:
	default:
		return nil, fmt.Errorf("adjudicator: unknown strictness %q", opts.Strictness)
	}
	if opts.MaxLinkChars <= 0 {
		opts.MaxLinkChars = DefaultMaxLinkChars
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Gateway{
		completer:    opts.Completer,
		strictness:   opts.Strictness,
		maxLinkChars: opts.MaxLinkChars,
		timeout:      opts.Timeout,
		validate:     validator.New(),
		metrics:      opts.Metrics,
		log:          opts.Logger,
	}, nil
}

// Strictness returns the fallback policy in use.
func (g *Gateway) Strictness() Strictness {
	return g.strictness
}

// Adjudicate asks the judge about c and returns its verdict. It never
// returns an error: failures are resolved by the fallback policy.
func (g *Gateway) Adjudicate(ctx context.Context, c *event.Candidate, b Bundle) event.Verdict {
	prompt, err := renderPrompt(c, b, g.maxLinkChars)
	if err != nil {
		return g.fallback(c, fmt.Errorf("building prompt: %w", err))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := g.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return g.fallback(c, fmt.Errorf("calling judge: %w", err))
	}

	v, r, err := g.parse(raw)
	if err != nil {
		// a malformed answer that still names a date mismatch is never
		// left to the permissive fallback
		if MentionsDateMismatch(r.Reason) {
			return g.dateMismatch(c, r.Reason, r.Warnings)
		}
		return g.fallback(c, err)
	}

	if v.Approved && MentionsDateMismatch(v.Reason) {
		return g.dateMismatch(c, v.Reason, v.Warnings)
	}

	if v.Approved {
		g.metrics.Adjudication("approved")
	} else {
		g.metrics.Adjudication("rejected")
	}
	g.log.Debug("Judge verdict", logger.Fields{
		"title":      c.Title,
		"approved":   v.Approved,
		"confidence": v.Confidence,
	})
	return v
}

func (g *Gateway) dateMismatch(c *event.Candidate, reason string, warnings []string) event.Verdict {
	g.log.Warn("Judge reported a date mismatch", logger.Fields{
		"title":  c.Title,
		"reason": reason,
	})
	g.metrics.Adjudication("overridden")
	return event.Reject(
		"rejected: judge reported a date mismatch: "+reason,
		append(warnings, "date mismatch detected in judge reason")...,
	)
}

// parse extracts and validates the judge answer. The decoded response is
// returned even when validation fails.
func (g *Gateway) parse(raw string) (event.Verdict, response, error) {
	var r response
	if err := jsonx.Object(raw, &r); err != nil {
		return event.Verdict{}, response{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if err := g.validate.Struct(r); err != nil {
		return event.Verdict{}, r, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	confidence := DefaultConfidence
	if r.Confidence != nil {
		confidence = *r.Confidence
	}
	if *r.Approved {
		return event.Approve(confidence, r.Reason, r.Warnings...), r, nil
	}
	v := event.Reject(r.Reason, r.Warnings...)
	v.Confidence = confidence
	return v, r, nil
}

// fallback applies the strictness policy after a judge failure
func (g *Gateway) fallback(c *event.Candidate, err error) event.Verdict {
	g.log.Error("Adjudication failed", logger.Fields{
		"title":      c.Title,
		"strictness": string(g.strictness),
	}, err)
	g.metrics.Adjudication("fallback")

	if g.strictness == Permissive {
		return event.Approve(FallbackConfidence,
			"adjudication unavailable, approved by permissive policy",
			"adjudicator error: "+err.Error())
	}
	return event.Reject("adjudication failed: " + err.Error())
}
