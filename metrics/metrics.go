// Package metrics exposes the watcher's Prometheus instruments, partitioned
// by network and operation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgelens",
		Subsystem: "fetch",
		Name:      "attempts_total",
		Help:      "Total fetch attempts, including retries",
	}, []string{"network", "operation"})

	ProviderFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgelens",
		Subsystem: "fetch",
		Name:      "provider_failures_total",
		Help:      "Total failed attempts per provider endpoint",
	}, []string{"network", "provider"})

	DepthReductionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgelens",
		Subsystem: "fetch",
		Name:      "depth_reductions_total",
		Help:      "Total search-depth reductions forced by rate limiting",
	}, []string{"network", "operation"})

	RefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridgelens",
		Subsystem: "pipeline",
		Name:      "refresh_total",
		Help:      "Total refresh cycles started",
	})

	RefreshFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridgelens",
		Subsystem: "pipeline",
		Name:      "refresh_failures_total",
		Help:      "Total refresh cycles that ended in failure",
	})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bridgelens",
		Subsystem: "pipeline",
		Name:      "refresh_duration_seconds",
		Help:      "Wall time of one full refresh cycle",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	SuspiciousClaims = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgelens",
		Subsystem: "classify",
		Name:      "suspicious_claims",
		Help:      "Suspicious claims in the latest aggregation result",
	})

	PendingTransfers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgelens",
		Subsystem: "classify",
		Name:      "pending_transfers",
		Help:      "Pending transfers in the latest aggregation result",
	})
)
