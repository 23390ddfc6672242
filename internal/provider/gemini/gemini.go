// Package gemini adapts the Google Gen AI SDK to the completer interface used
// by the adjudicator and the generative search source.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/pfrederiksen/event-vetting/internal/logger"
)

const DefaultModel = "gemini-2.5-flash"

// ErrMissingAPIKey is returned when no API key was configured.
var ErrMissingAPIKey = errors.New("gemini: API key not configured")

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini: empty response")

// Options configures a Client
type Options struct {
	APIKey string
	Model  string
	// Grounded enables Google Search grounding. Grounded requests cannot ask
	// for a JSON MIME type, so the caller parses the text defensively.
	Grounded    bool
	Temperature float32
	// BaseURL overrides the API endpoint.
	BaseURL string
	Logger  *logger.Logger
}

// Client calls Gemini generateContent.
type Client struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	log    *logger.Logger
}

// New creates a Client.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.1
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	gen := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if opts.Grounded {
		gen.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else {
		gen.ResponseMIMEType = "application/json"
	}

	return &Client{client: client, model: opts.Model, config: gen, log: opts.Logger}, nil
}

// Complete sends the system instruction and user prompt and returns the
// concatenated text parts of the first candidate.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	cfg := *c.config
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), &cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	c.log.Debug("Gemini completion", logger.Fields{
		"model":        c.model,
		"duration":     time.Since(start).String(),
		"response_len": len(text),
	})
	return text, nil
}
