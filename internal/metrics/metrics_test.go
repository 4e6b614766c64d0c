// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMutation(t *testing.T) {
	before := testutil.ToFloat64(Mutations.WithLabelValues("modify", "rejected"))

	RecordMutation("modify", "rejected", 120*time.Millisecond)

	if got := testutil.ToFloat64(Mutations.WithLabelValues("modify", "rejected")); got != before+1 {
		t.Errorf("mutations counter = %v, want %v", got, before+1)
	}
}

func TestRecordConfirm(t *testing.T) {
	before := testutil.ToFloat64(ConfirmOutcomes.WithLabelValues("cancel", "ceiling"))

	RecordConfirm("cancel", "ceiling", 30*time.Second)

	if got := testutil.ToFloat64(ConfirmOutcomes.WithLabelValues("cancel", "ceiling")); got != before+1 {
		t.Errorf("confirm outcome counter = %v, want %v", got, before+1)
	}
}

func TestRecordSendFailure(t *testing.T) {
	tests := []struct {
		reason        string
		expiredDelta  float64
		failuresDelta float64
	}{
		{"expired", 1, 1},
		{"write_error", 0, 1},
		{"overflow", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			expired := testutil.ToFloat64(ChannelMessagesExpired)
			failures := testutil.ToFloat64(ChannelSendFailures.WithLabelValues(tt.reason))

			RecordSendFailure(tt.reason)

			if got := testutil.ToFloat64(ChannelMessagesExpired) - expired; got != tt.expiredDelta {
				t.Errorf("expired delta = %v, want %v", got, tt.expiredDelta)
			}
			if got := testutil.ToFloat64(ChannelSendFailures.WithLabelValues(tt.reason)) - failures; got != tt.failuresDelta {
				t.Errorf("failures delta = %v, want %v", got, tt.failuresDelta)
			}
		})
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/reservations/modify", "200"))

	RecordAPIRequest("POST", "/api/v1/reservations/modify", "200", 5*time.Millisecond)

	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/reservations/modify", "200")); got != before+1 {
		t.Errorf("api requests = %v, want %v", got, before+1)
	}
}
