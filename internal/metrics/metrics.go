// Package metrics tracks pipeline counters, gauges and timings with Prometheus.
//
// A Recorder owns its own registry so tests and repeated runs never collide on
// the global one. Every method is safe on a nil *Recorder, which lets packages
// accept an optional recorder without nil checks at each call site.
//
// Example usage:
//
//	rec := metrics.New()
//	rec.ObserveFetch("ok", time.Since(start))
//	rec.Verdict("approved")
//	_ = rec.WriteTextfile("/var/lib/node_exporter/event_vetting.prom")
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "event_vetting"

// Recorder holds the pipeline's Prometheus collectors
type Recorder struct {
	registry *prometheus.Registry

	candidates      prometheus.Counter
	verdicts        *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	linkScore       prometheus.Histogram
	adjudications   *prometheus.CounterVec
	retryRequests   *prometheus.CounterVec
	budgetRemaining prometheus.Gauge
	duplicates      prometheus.Counter
	consolidated    prometheus.Counter
	runDuration     prometheus.Gauge
	lastRun         prometheus.Gauge
}

// New creates a Recorder with a private registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.candidates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Candidate events that entered validation",
	})
	r.verdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verdicts_total",
		Help:      "Final verdicts by outcome",
	}, []string{"outcome"})
	r.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "link_fetches_total",
		Help:      "Link fetches by final status",
	}, []string{"status"})
	r.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "link_fetch_duration_seconds",
		Help:      "Time spent fetching a link, retries included",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	r.linkScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "link_quality_score",
		Help:      "Distribution of link quality scores",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})
	r.adjudications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adjudications_total",
		Help:      "Adjudicator calls by result",
	}, []string{"result"})
	r.retryRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retry_requests_total",
		Help:      "Supplementary search requests by gap kind",
	}, []string{"kind"})
	r.budgetRemaining = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "search_budget_remaining",
		Help:      "Search budget units left in the current run",
	})
	r.duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicates_removed_total",
		Help:      "Approved events removed as exact duplicates",
	})
	r.consolidated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consolidated_total",
		Help:      "Approved events folded into a recurring representative",
	})
	r.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of the last pipeline run",
	})
	r.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last completed run",
	})

	r.registry.MustRegister(
		r.candidates, r.verdicts, r.fetches, r.fetchDuration, r.linkScore,
		r.adjudications, r.retryRequests, r.budgetRemaining, r.duplicates,
		r.consolidated, r.runDuration, r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry (for tests and custom exporters).
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

func (r *Recorder) Candidate() {
	if r == nil {
		return
	}
	r.candidates.Inc()
}

// Verdict counts a final outcome: approved, rejected, bypassed or recovered.
func (r *Recorder) Verdict(outcome string) {
	if r == nil {
		return
	}
	r.verdicts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveFetch(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(status).Inc()
	r.fetchDuration.Observe(d.Seconds())
}

func (r *Recorder) ObserveScore(score int) {
	if r == nil {
		return
	}
	r.linkScore.Observe(float64(score))
}

// Adjudication counts a gateway result: approved, rejected, fallback or override.
func (r *Recorder) Adjudication(result string) {
	if r == nil {
		return
	}
	r.adjudications.WithLabelValues(result).Inc()
}

func (r *Recorder) RetryRequest(kind string) {
	if r == nil {
		return
	}
	r.retryRequests.WithLabelValues(kind).Inc()
}

func (r *Recorder) SetBudget(remaining int64) {
	if r == nil {
		return
	}
	r.budgetRemaining.Set(float64(remaining))
}

func (r *Recorder) DuplicatesRemoved(n int) {
	if r == nil {
		return
	}
	r.duplicates.Add(float64(n))
}

func (r *Recorder) Consolidated(n int) {
	if r == nil {
		return
	}
	r.consolidated.Add(float64(n))
}

// RunFinished records the duration and completion time of a run.
func (r *Recorder) RunFinished(d time.Duration) {
	if r == nil {
		return
	}
	r.runDuration.Set(d.Seconds())
	r.lastRun.SetToCurrentTime()
}
