package linkfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/pfrederiksen/event-vetting/internal/event"
	"github.com/pfrederiksen/event-vetting/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const eventPage = `<html><head><title>Jazz Night | Sympla</title></head>
<body><h1>Jazz Night</h1><p>Sábado, 15/11/2025 às 20h00</p>
<a href="https://www.sympla.com.br/evento/jazz-night/123">Comprar ingresso</a></body></html>`

func newTestFetcher(srv *httptest.Server, cache Cache) *Fetcher {
	client := srv.Client()
	client.Timeout = 2 * time.Second
	return New(Options{
		Client:         client,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		MaxConcurrent:  4,
		Cache:          cache,
		Logger:         logger.Nop(),
	})
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("User-Agent = %q, want %q", r.Header.Get("User-Agent"), UserAgent)
		}
		fmt.Fprint(w, eventPage)
	}))
	defer srv.Close()

	f := newTestFetcher(srv, nil)
	ev, err := f.Fetch(context.Background(), srv.URL+"/evento/jazz-night")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if ev.FetchStatus != event.FetchOK {
		t.Errorf("FetchStatus = %s, want ok", ev.FetchStatus)
	}
	if ev.Title != "Jazz Night | Sympla" {
		t.Errorf("Title = %q", ev.Title)
	}
	if !ev.HasDate("15/11/2025") {
		t.Errorf("Dates = %v, want 15/11/2025", ev.Dates)
	}
	if ev.Time != "20:00" {
		t.Errorf("Time = %q, want 20:00", ev.Time)
	}
	if !ev.HasPurchaseAffordance {
		t.Error("HasPurchaseAffordance = false, want true")
	}
	if ev.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", ev.Attempts)
	}
}

func TestFetchPermanentErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		code int
		want event.FetchStatus
	}{
		{http.StatusNotFound, event.FetchNotFound},
		{http.StatusForbidden, event.FetchForbidden},
		{http.StatusGone, event.FetchGone},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			ev, err := newTestFetcher(srv, nil).Fetch(context.Background(), srv.URL+"/x")
			if !errors.Is(err, ErrPermanent) {
				t.Errorf("Fetch() error = %v, want ErrPermanent", err)
			}
			if ev.FetchStatus != tt.want {
				t.Errorf("FetchStatus = %s, want %s", ev.FetchStatus, tt.want)
			}
			if !ev.Permanent() {
				t.Error("Permanent() = false, want true")
			}
			if got := hits.Load(); got != 1 {
				t.Errorf("server hit %d times, want 1", got)
			}
		})
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, eventPage)
	}))
	defer srv.Close()

	ev, err := newTestFetcher(srv, nil).Fetch(context.Background(), srv.URL+"/evento/1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if ev.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ev.Attempts)
	}
	if ev.FetchStatus != event.FetchOK {
		t.Errorf("FetchStatus = %s, want ok", ev.FetchStatus)
	}
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ev, err := newTestFetcher(srv, nil).Fetch(context.Background(), srv.URL+"/evento/1")
	if err == nil {
		t.Fatal("Fetch() error = nil, want error")
	}
	if errors.Is(err, ErrPermanent) {
		t.Error("5xx should not be reported as permanent")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
	if ev.FetchStatus != event.FetchError {
		t.Errorf("FetchStatus = %s, want error", ev.FetchStatus)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	f := New(Options{Logger: logger.Nop()})
	ev, err := f.Fetch(context.Background(), "not a url")
	if !errors.Is(err, ErrPermanent) {
		t.Errorf("Fetch() error = %v, want ErrPermanent", err)
	}
	if ev == nil || ev.FetchStatus != event.FetchError {
		t.Errorf("evidence = %+v, want error status", ev)
	}
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]*event.LinkEvidence
}

func (c *mapCache) Get(url string) (*event.LinkEvidence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.m[url]
	return ev, ok
}

func (c *mapCache) Set(url string, ev *event.LinkEvidence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[url] = ev
}

func TestFetchUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, eventPage)
	}))
	defer srv.Close()

	cache := &mapCache{m: make(map[string]*event.LinkEvidence)}
	f := newTestFetcher(srv, cache)
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), srv.URL+"/evento/1"); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, eventPage)
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/missing", srv.URL + "/a"}
	got := newTestFetcher(srv, nil).FetchAll(context.Background(), urls)

	if len(got) != 3 {
		t.Fatalf("FetchAll() returned %d results, want 3", len(got))
	}
	if got[srv.URL+"/missing"].FetchStatus != event.FetchNotFound {
		t.Errorf("missing status = %s", got[srv.URL+"/missing"].FetchStatus)
	}
	if got[srv.URL+"/a"].FetchStatus != event.FetchOK {
		t.Errorf("a status = %s", got[srv.URL+"/a"].FetchStatus)
	}
}
