// Package metrics exposes Prometheus instruments for resolutions, cache use
// and upstream calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "nycpedia"

// Metrics holds every instrument. A nil *Metrics ignores all observations.
type Metrics struct {
	gatherer prometheus.Gatherer

	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec
	PhaseDuration      *prometheus.HistogramVec
	PhaseCandidates    *prometheus.HistogramVec
	CacheLookupsTotal  *prometheus.CounterVec
	UpstreamRequests   *prometheus.CounterVec
	UpstreamDuration   *prometheus.HistogramVec
}

// NewMetrics registers the instruments on reg. A nil reg gets a fresh
// registry so tests and multiple servers do not collide.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{gatherer: reg}
	m.ResolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Resolutions by outcome and deciding phase",
		},
		[]string{"outcome", "phase"},
	)
	m.ResolutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "resolver",
			Name:      "resolution_duration_seconds",
			Help:      "Wall time of one resolution",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"outcome"},
	)
	m.PhaseDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "resolver",
			Name:      "phase_duration_seconds",
			Help:      "Wall time of the fast and deep phases",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"phase"},
	)
	m.PhaseCandidates = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "resolver",
			Name:      "phase_candidates",
			Help:      "Candidates produced per phase",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 24},
		},
		[]string{"phase"},
	)
	m.CacheLookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Memo table lookups by table and result",
		},
		[]string{"table", "result"},
	)
	m.UpstreamRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Outbound requests by upstream and outcome",
		},
		[]string{"upstream", "outcome"},
	)
	m.UpstreamDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Outbound request latency by upstream",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)
	return m
}

func (m *Metrics) ObserveResolution(outcome, phase string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(outcome, phase).Inc()
	m.ResolutionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePhase(phase string, candidates int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
	m.PhaseCandidates.WithLabelValues(phase).Observe(float64(candidates))
}

func (m *Metrics) ObserveCache(table string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(table, result).Inc()
}

// ObserveUpstream matches httpx.ObserveFunc.
func (m *Metrics) ObserveUpstream(upstream, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(upstream, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(upstream).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
