// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package models

// FailureKind classifies why a mutation did not succeed.
type FailureKind string

const (
	// FailureBlocked: the target date is administratively blocked. No network call was made.
	FailureBlocked FailureKind = "blocked"
	// FailureSendFailure: the message could not be written or expired in the queue.
	FailureSendFailure FailureKind = "send_failure"
	// FailureRejected: the backend replied with a nack.
	FailureRejected FailureKind = "rejected"
	// FailureTimedOut: no ack, nack or matching broadcast arrived in time.
	FailureTimedOut FailureKind = "timed_out"
	// FailureStale: the entry changed locally while the mutation was in flight.
	FailureStale FailureKind = "stale"
	// FailureSuperseded: a newer mutation on the same reservation replaced this one.
	FailureSuperseded FailureKind = "superseded"
	FailureNotFound   FailureKind = "not_found"
	FailureNotMovable FailureKind = "not_movable"
)

// Default failure reasons.
const (
	ReasonSlotUnavailable = "slot unavailable"
	ReasonTimedOut        = "request timed out"
	ReasonSendFailed      = "message could not be delivered"
	ReasonBlockedDate     = "date is blocked"
	ReasonSuperseded      = "superseded by a newer change"
	ReasonStale           = "reservation changed while the request was in flight"
)

// Result is the outcome of a coordinated mutation. Coordinator operations
// never return errors; every outcome is a Result.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Failure FailureKind `json:"failure,omitempty"`

	// Revert tells the caller to animate the entry back to its prior position.
	Revert bool `json:"revert,omitempty"`

	// Reservation is the entry after the mutation settled, when it still exists.
	Reservation *Reservation `json:"reservation,omitempty"`
}

// Succeeded builds a success result.
func Succeeded(message string) Result {
	return Result{Success: true, Message: message}
}

// Failed builds a failure result. An empty message falls back to a default
// reason for the kind.
func Failed(kind FailureKind, message string) Result {
	if message == "" {
		message = defaultReason(kind)
	}
	return Result{
		Failure: kind,
		Message: message,
		Revert:  kind != FailureStale && kind != FailureSuperseded,
	}
}

func defaultReason(kind FailureKind) string {
	switch kind {
	case FailureTimedOut:
		return ReasonTimedOut
	case FailureSendFailure:
		return ReasonSendFailed
	case FailureBlocked:
		return ReasonBlockedDate
	case FailureSuperseded:
		return ReasonSuperseded
	case FailureStale:
		return ReasonStale
	case FailureNotFound:
		return "reservation not found"
	case FailureNotMovable:
		return "reservation cannot be moved"
	default:
		return ReasonSlotUnavailable
	}
}
