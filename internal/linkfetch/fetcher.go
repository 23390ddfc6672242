package linkfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/logger"
	"github.com/pfrederiksen/event-vetting/internal/metrics"
)

const (
	UserAgent      = "event-vetting/1.0 (github.com/pfrederiksen/event-vetting)"
	DefaultTimeout = 15 * time.Second
	// MaxBodyBytes bounds how much of a page is read.
	MaxBodyBytes = 2 << 20
)

// ErrPermanent marks fetch failures that retrying cannot fix (404, 403, 410).
var ErrPermanent = errors.New("permanent link failure")

// StatusError is returned for non-200 responses
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Cache stores evidence between fetches of the same URL.
type Cache interface {
	Get(url string) (*event.LinkEvidence, bool)
	Set(url string, ev *event.LinkEvidence)
}

// Options configures a Fetcher
type Options struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxConcurrent  int
	UserAgent      string
	Client         *http.Client
	Cache          Cache
	Metrics        *metrics.Recorder
	Logger         *logger.Logger
}

// Fetcher retrieves destination pages and turns them into LinkEvidence.
// Concurrent calls share a semaphore so no more than MaxConcurrent requests
// are in flight.
type Fetcher struct {
	client         *http.Client
	userAgent      string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sem            *semaphore.Weighted
	cache          Cache
	metrics        *metrics.Recorder
	log            *logger.Logger
}

// New creates a Fetcher, filling unset options with defaults
// (15s timeout, 3 attempts, 2s..10s backoff, 30 concurrent fetches).
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 2 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 30
	}
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	client := opts.Client
	if client == nil {
		client = NewHTTPClient(opts.Timeout)
	}

	return &Fetcher{
		client:         client,
		userAgent:      opts.UserAgent,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		sem:            semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		cache:          opts.Cache,
		metrics:        opts.Metrics,
		log:            opts.Logger,
	}
}

// NewHTTPClient builds the client used for destination pages. Some ticketing
// sites set session cookies on a redirect, so the client keeps a cookie jar.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr, Jar: jar}
}

// Fetch retrieves rawURL and extracts evidence from it. The returned evidence
// is never nil; on failure it carries the fetch status and the error text.
// Errors for 404/403/410 wrap ErrPermanent and are never retried.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*event.LinkEvidence, error) {
	if f.cache != nil {
		if ev, ok := f.cache.Get(rawURL); ok {
			return ev, nil
		}
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return failed(rawURL, event.FetchError, 0, err), err
	}
	defer f.sem.Release(1)

	start := time.Now()
	ev, err := f.fetchWithRetry(ctx, rawURL)
	ev.FetchedAt = time.Now().UTC()
	f.metrics.ObserveFetch(string(ev.FetchStatus), time.Since(start))

	if f.cache != nil && (err == nil || ev.Permanent()) {
		f.cache.Set(rawURL, ev)
	}
	return ev, err
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string) (*event.LinkEvidence, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return failed(rawURL, event.FetchError, 0, err), fmt.Errorf("invalid url %q: %w", rawURL, ErrPermanent)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialBackoff
	b.MaxInterval = f.maxBackoff
	b.MaxElapsedTime = 0

	var ev *event.LinkEvidence
	attempts := 0
	op := func() error {
		attempts++
		var err error
		ev, err = f.fetchOnce(ctx, rawURL)
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.log.Debug("Retrying link fetch", logger.Fields{
			"url":     rawURL,
			"attempt": attempts,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.maxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, policy, notify)
	if ev == nil {
		ev = failed(rawURL, event.FetchError, 0, err)
	}
	ev.Attempts = attempts

	if err != nil {
		ev.Error = err.Error()
		if ev.FetchStatus == "" || ev.FetchStatus == event.FetchOK {
			ev.FetchStatus = statusForError(err)
		}
		f.log.Warn("Link fetch failed", logger.Fields{
			"url":      rawURL,
			"attempts": attempts,
			"status":   string(ev.FetchStatus),
		})
		return ev, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	return ev, nil
}

// fetchOnce performs a single GET. Permanent failures are wrapped with
// backoff.Permanent so the retry loop stops.
func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*event.LinkEvidence, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return failed(rawURL, event.FetchError, 0, err), backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		status := statusForError(err)
		ev := failed(rawURL, status, 0, err)
		if isTransient(err) {
			return ev, err
		}
		return ev, backoff.Permanent(err)
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusNotFound:
		return failed(rawURL, event.FetchNotFound, code, nil), backoff.Permanent(fmt.Errorf("%w: %w", ErrPermanent, &StatusError{Code: code}))
	case code == http.StatusForbidden:
		return failed(rawURL, event.FetchForbidden, code, nil), backoff.Permanent(fmt.Errorf("%w: %w", ErrPermanent, &StatusError{Code: code}))
	case code == http.StatusGone:
		return failed(rawURL, event.FetchGone, code, nil), backoff.Permanent(fmt.Errorf("%w: %w", ErrPermanent, &StatusError{Code: code}))
	case code == http.StatusTooManyRequests || code >= 500:
		return failed(rawURL, event.FetchError, code, nil), &StatusError{Code: code}
	case code != http.StatusOK:
		return failed(rawURL, event.FetchError, code, nil), backoff.Permanent(&StatusError{Code: code})
	}

	ev, err := Extract(io.LimitReader(resp.Body, MaxBodyBytes), resp.Request.URL.String())
	ev.URL = rawURL
	ev.FinalURL = resp.Request.URL.String()
	ev.StatusCode = resp.StatusCode
	if err != nil {
		ev.FetchStatus = event.FetchError
		return ev, backoff.Permanent(err)
	}
	ev.FetchStatus = event.FetchOK
	return ev, nil
}

// FetchAll fetches every URL concurrently (bounded by the shared semaphore)
// and returns evidence keyed by URL. Individual failures are reported through
// the evidence, never as an error.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) map[string]*event.LinkEvidence {
	var mu sync.Mutex
	results := make(map[string]*event.LinkEvidence, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range unique(urls) {
		g.Go(func() error {
			ev, _ := f.Fetch(gctx, u)
			mu.Lock()
			results[u] = ev
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func failed(rawURL string, status event.FetchStatus, code int, err error) *event.LinkEvidence {
	ev := &event.LinkEvidence{URL: rawURL, FetchStatus: status, StatusCode: code}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// isTransient reports whether a transport error is worth retrying
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

func statusForError(err error) event.FetchStatus {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return event.FetchTimeout
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusNotFound:
			return event.FetchNotFound
		case http.StatusForbidden:
			return event.FetchForbidden
		case http.StatusGone:
			return event.FetchGone
		}
	}
	return event.FetchError
}
