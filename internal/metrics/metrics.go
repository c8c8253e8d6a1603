// Package metrics defines the Prometheus collectors shared by the indexer,
// aggregator, simulation pipeline and HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "poolscope"

// Metrics contains all the Prometheus metrics of the service.
type Metrics struct {
	LastProcessedLedger *prometheus.GaugeVec
	DeploymentsIngested *prometheus.CounterVec
	RegistryAppends     *prometheus.CounterVec

	PoolsReported       *prometheus.GaugeVec
	PoolFailures        *prometheus.CounterVec
	AggregationDuration *prometheus.HistogramVec

	SimulateRequests *prometheus.CounterVec
	SimulateDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		LastProcessedLedger: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_processed_ledger",
			Help:      "Sequence of the last ledger whose events were ingested.",
		}, []string{}),

		DeploymentsIngested: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployment_events_total",
			Help:      "Deployment events seen on ledger close.",
		}, []string{}),

		RegistryAppends: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_appends_total",
			Help:      "Registry append attempts, labeled by outcome.",
		}, []string{"outcome"}),

		PoolsReported: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pools_reported",
			Help:      "Pools included in the most recent listing.",
		}, []string{}),

		PoolFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_failures_total",
			Help:      "Pools left out of a listing, labeled by failing stage.",
		}, []string{"stage"}),

		AggregationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Time to build one full pool listing.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),

		SimulateRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulate_requests_total",
			Help:      "Simulation requests, labeled by action and outcome.",
		}, []string{"action", "outcome"}),

		SimulateDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulate_duration_seconds",
			Help:      "Time to resolve, simulate and patch one request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// NewDiscard returns metrics registered on a private registry, for callers
// that do not export them.
func NewDiscard() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
