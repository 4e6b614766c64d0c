// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Channel Metrics
	ChannelQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotsync_channel_queue_depth",
			Help: "Number of outbound messages waiting for the transport to open",
		},
	)

	ChannelMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_channel_messages_sent_total",
			Help: "Total number of outbound messages written to the transport",
		},
		[]string{"type"},
	)

	ChannelMessagesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotsync_channel_messages_expired_total",
			Help: "Total number of queued messages discarded after the queue TTL",
		},
	)

	ChannelSendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_channel_send_failures_total",
			Help: "Total number of sends resolved as undelivered",
		},
		[]string{"reason"}, // write_error, overflow, cancelled, expired
	)

	// Transport Metrics
	TransportState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotsync_transport_state",
			Help: "Backend transport state (0=connecting, 1=open, 2=closed)",
		},
	)

	TransportReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotsync_transport_reconnects_total",
			Help: "Total number of reconnect attempts to the backend",
		},
	)

	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_inbound_messages_total",
			Help: "Total number of inbound envelopes received from the backend",
		},
		[]string{"type"},
	)

	InboundDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotsync_inbound_decode_errors_total",
			Help: "Total number of inbound frames that could not be decoded",
		},
	)

	StreamHandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotsync_stream_handler_panics_total",
			Help: "Total number of recovered panics in inbound subscribers",
		},
	)

	// Confirmation Metrics
	ConfirmOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_confirm_outcomes_total",
			Help: "Total number of confirmation waits by outcome",
		},
		[]string{"op", "outcome"},
	)

	ConfirmWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotsync_confirm_wait_seconds",
			Help:    "Time spent waiting for a mutation confirmation",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"op"},
	)

	// Mutation Metrics
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_mutations_total",
			Help: "Total number of coordinated mutations by result",
		},
		[]string{"op", "result"},
	)

	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotsync_mutation_duration_seconds",
			Help:    "End-to-end duration of coordinated mutations",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"op"},
	)

	PendingMutations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotsync_pending_mutations",
			Help: "Number of mutations awaiting confirmation",
		},
	)

	// Echo Suppression Metrics
	EchoFingerprints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotsync_echo_fingerprints",
			Help: "Number of live echo fingerprints",
		},
	)

	EchoSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotsync_echo_suppressed_total",
			Help: "Total number of inbound broadcasts recognized as local echoes",
		},
	)

	// Event Store Metrics
	StoreReservations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotsync_store_reservations",
			Help: "Number of reservations held in the local event store",
		},
	)

	BroadcastsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_broadcasts_applied_total",
			Help: "Total number of inbound broadcasts applied to the event store",
		},
		[]string{"type"},
	)

	// UI Hub Metrics
	UIHubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotsync_uihub_clients",
			Help: "Current number of connected UI WebSocket clients",
		},
	)

	UIHubMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_uihub_messages_sent_total",
			Help: "Total number of messages pushed to UI clients",
		},
		[]string{"type"},
	)

	UIHubDroppedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotsync_uihub_dropped_messages_total",
			Help: "Total number of UI messages dropped because a client was too slow",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_api_requests_total",
			Help: "Total number of control API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotsync_api_request_duration_seconds",
			Help:    "Duration of control API requests in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Fallback Metrics
	FallbackRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_fallback_requests_total",
			Help: "Total number of HTTP fallback requests",
		},
		[]string{"endpoint", "result"},
	)

	// Circuit Breaker Metrics
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
)

// RecordAPIRequest records control API request metrics.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMutation records a coordinator result. result is "success" or a failure kind.
func RecordMutation(op, result string, duration time.Duration) {
	Mutations.WithLabelValues(op, result).Inc()
	MutationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordConfirm records how a confirmation wait ended.
func RecordConfirm(op, outcome string, waited time.Duration) {
	ConfirmOutcomes.WithLabelValues(op, outcome).Inc()
	ConfirmWaitDuration.WithLabelValues(op).Observe(waited.Seconds())
}

// RecordSendFailure counts a send resolved as undelivered.
func RecordSendFailure(reason string) {
	ChannelSendFailures.WithLabelValues(reason).Inc()
	if reason == "expired" {
		ChannelMessagesExpired.Inc()
	}
}
