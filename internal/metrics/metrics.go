// Package metrics exposes the service's Prometheus instrumentation. All
// collectors are registered on the default registry and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts relay attempts by terminal status.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blossom",
		Subsystem: "executions",
		Name:      "total",
		Help:      "Relay executions by terminal status.",
	}, []string{"status"})

	// ExecutionDuration tracks submit-to-terminal latency.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "blossom",
		Subsystem: "executions",
		Name:      "duration_seconds",
		Help:      "Relay execution latency from request to terminal status.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
	})

	// PolicyDenialsTotal counts policy denials by code.
	PolicyDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blossom",
		Subsystem: "policy",
		Name:      "denials_total",
		Help:      "Policy engine denials by code.",
	}, []string{"code"})

	// ValidationFailuresTotal counts plan validation rejects by code.
	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blossom",
		Subsystem: "plans",
		Name:      "validation_failures_total",
		Help:      "Plan validation rejects by code.",
	}, []string{"code"})

	// FundingDecisionsTotal counts funding ladder outcomes by mode.
	FundingDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blossom",
		Subsystem: "funding",
		Name:      "decisions_total",
		Help:      "Funding ladder decisions by mode.",
	}, []string{"mode"})

	// RoutesTotal counts cross-chain routing outcomes.
	RoutesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blossom",
		Subsystem: "routing",
		Name:      "total",
		Help:      "Cross-chain routing outcomes by code and whether funds moved.",
	}, []string{"code", "did_route"})

	// QueueReplaysTotal counts idempotent replays served from the queue.
	QueueReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blossom",
		Subsystem: "queue",
		Name:      "replays_total",
		Help:      "Requests answered verbatim from a terminal queue entry.",
	})

	// RelayerBalanceWei gauges the relayer's native balance.
	RelayerBalanceWei = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blossom",
		Subsystem: "relayer",
		Name:      "balance_wei",
		Help:      "Relayer native gas balance in wei.",
	})
)
