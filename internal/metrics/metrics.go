// Package metrics provides Prometheus metrics for the call signaling service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallTransitions counts applied call transitions by operation and resulting state.
	CallTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webconf_call_transitions_total",
			Help: "Total number of call transitions",
		},
		[]string{"operation", "state"},
	)

	// CallConflicts counts AddCall requests rejected with a conflict.
	CallConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webconf_call_conflicts_total",
			Help: "Total number of rejected conflicting calls",
		},
		[]string{"reason"},
	)

	// CallsReconciled counts records deleted by conflict detection or startup purge.
	CallsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webconf_calls_reconciled_total",
			Help: "Total number of stale or superseded call records deleted",
		},
		[]string{"reason"},
	)

	// OperationDuration tracks engine operation latency.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webconf_operation_duration_seconds",
			Help:    "Duration of call engine operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webconf_notifications_delivered_total",
			Help: "Total number of events delivered to listeners",
		},
		[]string{"event"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webconf_notification_failures_total",
			Help: "Total number of listener callbacks that failed",
		},
		[]string{"event"},
	)

	// Listeners tracks registered listeners.
	Listeners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webconf_listeners",
			Help: "Number of registered call listeners",
		},
	)

	// ProviderTokensIssued counts provider join tokens.
	ProviderTokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webconf_provider_tokens_issued_total",
			Help: "Total number of provider join tokens issued",
		},
		[]string{"provider"},
	)
)

// RecordTransition increments transition metrics.
func RecordTransition(operation, state string) {
	CallTransitions.WithLabelValues(operation, state).Inc()
}

// RecordReconciled adds n reconciled records for reason.
func RecordReconciled(reason string, n int) {
	CallsReconciled.WithLabelValues(reason).Add(float64(n))
}
