// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package models defines the data structures shared across Slotsync.

Key Components:

  - Reservation: a calendar entry held in the local event store
  - Outbound / Envelope: the backend wire format, {"type": ..., "data": ...}
  - ModifyReservationData, CancelReservationData: outbound mutation payloads
  - AckData, ReservationData: inbound acknowledgement and broadcast payloads
  - Result, FailureKind: the outcome of a coordinated mutation

Wire example (outbound modify):

	{
	  "type": "modify_reservation",
	  "data": {
	    "subject_id": "s-1042",
	    "date": "2026-03-14",
	    "time_slot": "11:00",
	    "approximate": false,
	    "correlation_id": "5b0e6a3c-..."
	  }
	}
*/
package models
