// Package metrics exposes Prometheus counters for the scheduling engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "study_scheduler"

// Strategy outcomes
const (
	OutcomeError      = "error"
	OutcomeUnverified = "unverified"
	OutcomeVerified   = "verified"
)

// Metrics holds the engine's collectors
type Metrics struct {
	strategyAttempts *prometheus.CounterVec
	reconciliations  *prometheus.CounterVec
	batchItems       *prometheus.CounterVec
	storeRetries     *prometheus.CounterVec
	lockWaitSeconds  prometheus.Histogram
}

// New creates the collectors and registers them with registry
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		strategyAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "association_strategy_attempts_total",
			Help:      "Association deletion strategy attempts by operation, strategy and outcome",
		}, []string{"operation", "strategy", "outcome"}),
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "association_reconciliations_total",
			Help:      "Association reconciliations by action and result",
		}, []string{"action", "result"}),
		batchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Batch items by operation and result",
		}, []string{"operation", "result"}),
		storeRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "association_store_retries_total",
			Help:      "Association store calls retried after a transport failure",
		}, []string{"call"}),
		lockWaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "volunteer_lock_wait_seconds",
			Help:      "Time spent waiting for a per-volunteer lock",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

// StrategyAttempt counts one strategy attempt
func (m *Metrics) StrategyAttempt(operation, strategy, outcome string) {
	if m == nil {
		return
	}
	m.strategyAttempts.WithLabelValues(operation, strategy, outcome).Inc()
}

// Reconciliation counts one reconciliation
func (m *Metrics) Reconciliation(action, result string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(action, result).Inc()
}

// BatchItems counts n batch items with the given result
func (m *Metrics) BatchItems(operation, result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.batchItems.WithLabelValues(operation, result).Add(float64(n))
}

// StoreRetry counts a retried association store call
func (m *Metrics) StoreRetry(call string) {
	if m == nil {
		return
	}
	m.storeRetries.WithLabelValues(call).Inc()
}

// LockWait observes time spent acquiring a volunteer lock
func (m *Metrics) LockWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWaitSeconds.Observe(seconds)
}
