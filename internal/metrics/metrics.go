// Package metrics exposes prometheus collectors for the check pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts check requests by verdict.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrocheck",
		Name:      "requests_total",
		Help:      "Check requests by verdict.",
	}, []string{"verdict"})

	// RequestDuration observes end-to-end check latency.
	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agrocheck",
		Name:      "request_duration_seconds",
		Help:      "End-to-end check request duration.",
		Buckets:   prometheus.DefBuckets,
	})

	// CheckerDuration observes per-checker execution latency.
	CheckerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agrocheck",
		Name:      "checker_duration_seconds",
		Help:      "Checker execution duration.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"checker"})

	// CheckerResults counts checker outcomes by status.
	CheckerResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrocheck",
		Name:      "checker_results_total",
		Help:      "Checker results by checker and status.",
	}, []string{"checker", "status"})

	// CacheHits counts result cache hits and misses.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrocheck",
		Name:      "cache_lookups_total",
		Help:      "Result cache lookups by outcome.",
	}, []string{"outcome"})

	// GeocodeRequests counts geocode lookups by source.
	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrocheck",
		Name:      "geocode_requests_total",
		Help:      "Geocode lookups by resolution source.",
	}, []string{"source"})
)

// ObserveChecker records one checker execution.
func ObserveChecker(name, status string, d time.Duration, cacheHit bool) {
	CheckerDuration.WithLabelValues(name).Observe(d.Seconds())
	CheckerResults.WithLabelValues(name, status).Inc()
	if cacheHit {
		CacheHits.WithLabelValues("hit").Inc()
	} else {
		CacheHits.WithLabelValues("miss").Inc()
	}
}
