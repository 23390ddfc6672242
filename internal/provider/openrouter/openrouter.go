// Package openrouter is a chat-completions client for the OpenRouter API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pfrederiksen/event-vetting/internal/logger"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "google/gemini-2.5-flash"
	DefaultTimeout = 60 * time.Second
)

// ErrMissingAPIKey is returned when no API key was configured.
var ErrMissingAPIKey = errors.New("openrouter: API key not configured")

// Options configures a Client
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// WebSearch routes the request through the model's online variant so the
	// answer can cite current pages.
	WebSearch      bool
	Temperature    float64
	MaxTokens      int
	MaxRetries     int
	InitialBackoff time.Duration
	Timeout        time.Duration
	HTTPClient     *http.Client
	SiteName       string
	Logger         *logger.Logger
}

// Client talks to OpenRouter's /chat/completions endpoint.
type Client struct {
	opts Options
	http *http.Client
	log  *logger.Logger
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type response struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.WebSearch && !strings.HasSuffix(opts.Model, ":online") {
		opts.Model += ":online"
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.1
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SiteName == "" {
		opts.SiteName = "event-vetting"
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{opts: opts, http: client, log: opts.Logger}, nil
}

// Model returns the model identifier sent with each request.
func (c *Client) Model() string {
	return c.opts.Model
}

// Complete sends a system and a user message and returns the first choice.
// Rate-limit (429) and 5xx responses are retried with exponential backoff.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(request{
		Model: c.opts.Model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	start := time.Now()
	var content string
	op := func() error {
		var err error
		content, err = c.do(ctx, body)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		c.log.Warn("Retrying OpenRouter request", logger.Fields{
			"model": c.opts.Model,
			"wait":  wait.String(),
			"error": err.Error(),
		})
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return "", fmt.Errorf("openrouter completion: %w", err)
	}

	c.log.Debug("OpenRouter completion", logger.Fields{
		"model":        c.opts.Model,
		"duration":     time.Since(start).String(),
		"response_len": len(content),
	})
	return content, nil
}

func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("X-Title", c.opts.SiteName)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("rate limit exceeded (429)")
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(string(data), 200))
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("parsing response: %w", err))
	}
	if out.Error != nil {
		return "", backoff.Permanent(fmt.Errorf("API error: %s", out.Error.Message))
	}
	if len(out.Choices) == 0 {
		return "", backoff.Permanent(errors.New("no completion returned"))
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
