package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepsTotal counts pipeline step completions by outcome (ok, error, cancelled)
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyber_swap_steps_total",
			Help: "Total number of swap pipeline steps completed",
		},
		[]string{"step", "outcome"},
	)

	// StepLatency tracks how long the service took to answer a step
	StepLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kyber_swap_step_latency_seconds",
			Help:    "Swap pipeline step latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// RatePollsTotal counts expected rate requests issued by the poller
	RatePollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kyber_swap_rate_polls_total",
			Help: "Total number of expected rate requests issued by the poller",
		},
	)

	// ActiveWatches is 1 while an expected rate watch is running
	ActiveWatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kyber_swap_rate_watches_active",
			Help: "Number of running expected rate watches",
		},
	)

	// CatalogCacheTotal counts catalog cache lookups by result (hit, miss, error)
	CatalogCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyber_swap_catalog_cache_total",
			Help: "Total number of currency catalog cache lookups",
		},
		[]string{"result"},
	)
)
