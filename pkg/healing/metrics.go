package healing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricAttempts tracks healing attempts (primary locator failed)
	metricAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "selfheal_healing_attempts_total",
		Help: "Total number of healing attempts",
	})

	// metricSuccesses tracks successful healings per strategy
	metricSuccesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfheal_healing_successes_total",
		Help: "Total number of successful healings",
	}, []string{"strategy"})

	// metricFailures tracks healing failures per error code
	metricFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfheal_healing_failures_total",
		Help: "Total number of failed healing attempts",
	}, []string{"code"})

	// metricCacheHits tracks resolutions served from the healing cache
	metricCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "selfheal_cache_hits_total",
		Help: "Total number of healed locators served from cache",
	})

	// metricResolveDuration tracks end-to-end resolve latency
	metricResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "selfheal_resolve_duration_seconds",
		Help:    "End-to-end locator resolution latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
)
