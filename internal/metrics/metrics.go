// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package metrics holds the Prometheus collectors for the sync core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fetch metrics
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_fetch_total",
			Help: "Position fetches by outcome",
		},
		[]string{"result"}, // "applied", "stale", "error"
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fieldsync_fetch_duration_seconds",
			Help:    "Duration of position fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	MarkersLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldsync_markers_loaded",
			Help: "Markers held by the record store after the last applied fetch",
		},
	)

	MarkersSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldsync_markers_skipped_total",
			Help: "Malformed markers dropped at the network boundary",
		},
	)

	// Mutation metrics
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_mutations_total",
			Help: "Mutation sends by endpoint and outcome",
		},
		[]string{"endpoint", "result"}, // result: "success", "transient"
	)

	// Retry queue metrics
	RetryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldsync_retry_queue_depth",
			Help: "Mutations waiting in the retry queue",
		},
	)

	RetryEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldsync_retry_enqueued_total",
			Help: "Mutations appended to the retry queue",
		},
	)

	RetryReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_retry_replays_total",
			Help: "Replay passes by outcome",
		},
		[]string{"result"}, // "drained", "partial", "skipped"
	)

	DurabilityWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_durability_warnings_total",
			Help: "Local storage failures that were logged and swallowed",
		},
		[]string{"operation"},
	)

	// Connectivity metrics
	ConnectivityState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldsync_connectivity_state",
			Help: "Current connectivity (0=none, 1=cellular, 2=wifi)",
		},
	)

	ConnectivityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_connectivity_transitions_total",
			Help: "Connectivity state changes",
		},
		[]string{"from", "to"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Local API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_api_requests_total",
			Help: "Local control API requests",
		},
		[]string{"method", "route", "status"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldsync_websocket_clients",
			Help: "Connected event subscribers",
		},
	)
)

// RecordFetch records the outcome of a position fetch.
func RecordFetch(result string, duration time.Duration) {
	FetchTotal.WithLabelValues(result).Inc()
	if duration > 0 {
		FetchDuration.Observe(duration.Seconds())
	}
}

// RecordMutation records a mutation send.
func RecordMutation(endpoint string, err error) {
	result := "success"
	if err != nil {
		result = "transient"
	}
	MutationsTotal.WithLabelValues(endpoint, result).Inc()
}

// RecordDurabilityWarning counts a swallowed storage failure.
func RecordDurabilityWarning(operation string) {
	DurabilityWarnings.WithLabelValues(operation).Inc()
}

// RecordConnectivityTransition updates the state gauge and transition counter.
func RecordConnectivityTransition(from, to string, level float64) {
	ConnectivityState.Set(level)
	ConnectivityTransitions.WithLabelValues(from, to).Inc()
}
