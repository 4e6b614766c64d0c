// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package metrics provides Prometheus metrics for the synchronization engine.

Collectors are registered on the default registry through promauto and
exposed by the control API at /metrics:

	curl http://127.0.0.1:8740/metrics

# Available Metrics

Channel:
  - slotsync_channel_queue_depth: Messages waiting for the transport (gauge)
  - slotsync_channel_messages_sent_total: Messages written (counter)
    Labels: type
  - slotsync_channel_messages_expired_total: Queued messages dropped after the queue TTL (counter)
  - slotsync_channel_send_failures_total: Sends resolved false (counter)
    Labels: reason (write_error, overflow, cancelled, expired)

Transport:
  - slotsync_transport_state: 0=connecting, 1=open, 2=closed (gauge)
  - slotsync_transport_reconnects_total: Dial attempts after the first (counter)
  - slotsync_inbound_messages_total: Decoded inbound envelopes (counter)
    Labels: type

Confirmation and mutations:
  - slotsync_confirm_outcomes_total: Confirmation waits by outcome (counter)
    Labels: op, outcome (ack, nack, broadcast, timeout, ceiling, cancelled)
  - slotsync_confirm_wait_seconds: Time spent waiting for confirmation (histogram)
  - slotsync_mutations_total: Coordinator results (counter)
    Labels: op, result (success or a failure kind)
  - slotsync_pending_mutations: Outstanding mutations (gauge)

Echo suppression:
  - slotsync_echo_fingerprints: Live fingerprints (gauge)
  - slotsync_echo_suppressed_total: Broadcasts recognized as echoes (counter)

Circuit breaker (HTTP fallback):
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - circuit_breaker_requests_total: Requests by result (counter)
  - circuit_breaker_state_transitions_total: State changes (counter)

# Example Alert

	groups:
	  - name: slotsync
	    rules:
	      - alert: SlotsyncQueueBacklog
	        expr: slotsync_channel_queue_depth > 50
	        for: 1m
*/
package metrics
