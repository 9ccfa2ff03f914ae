package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FetchOutcome is how a FetchNext call was answered.
type FetchOutcome string

const (
	FetchHit   FetchOutcome = "hit"
	FetchMiss  FetchOutcome = "miss"
	FetchError FetchOutcome = "error"
)

// Recorder publishes Prometheus metrics for search and download activity.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	fetches       *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	invalidations *prometheus.CounterVec
	swept         *prometheus.CounterVec
	downloads     *prometheus.CounterVec
}

// NewRecorder registers its collectors on reg, or on a private registry when
// reg is nil.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "azsticker",
		Subsystem: "pinterest",
		Name:      "fetches_total",
		Help:      "FetchNext calls by namespace and outcome.",
	}, []string{"namespace", "outcome"})

	fetchLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "azsticker",
		Subsystem: "pinterest",
		Name:      "fetch_duration_seconds",
		Help:      "Latency of FetchNext calls, including external searches.",
		Buckets:   []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
	}, []string{"namespace", "outcome"})

	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "azsticker",
		Subsystem: "pinterest",
		Name:      "invalidations_total",
		Help:      "Cache entries removed by invalidation.",
	}, []string{"namespace"})

	swept := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "azsticker",
		Subsystem: "pinterest",
		Name:      "swept_entries_total",
		Help:      "Expired cache entries removed.",
	}, []string{"namespace"})

	downloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "azsticker",
		Subsystem: "instagram",
		Name:      "downloads_total",
		Help:      "Instagram download attempts by outcome.",
	}, []string{"outcome"})

	reg.MustRegister(fetches, fetchLatency, invalidations, swept, downloads)

	return &Recorder{
		gatherer:      reg,
		handler:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		fetches:       fetches,
		fetchLatency:  fetchLatency,
		invalidations: invalidations,
		swept:         swept,
		downloads:     downloads,
	}
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

func (r *Recorder) ObserveFetch(namespace string, outcome FetchOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	ns := normalizeLabel(namespace)
	out := normalizeLabel(string(outcome))
	r.fetches.WithLabelValues(ns, out).Inc()
	r.fetchLatency.WithLabelValues(ns, out).Observe(duration.Seconds())
}

func (r *Recorder) ObserveInvalidation(namespace string) {
	if r == nil {
		return
	}
	r.invalidations.WithLabelValues(normalizeLabel(namespace)).Inc()
}

func (r *Recorder) ObserveSwept(namespace string, removed int) {
	if r == nil || removed <= 0 {
		return
	}
	r.swept.WithLabelValues(normalizeLabel(namespace)).Add(float64(removed))
}

func (r *Recorder) ObserveDownload(outcome string) {
	if r == nil {
		return
	}
	r.downloads.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
