// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package channel owns the single connection to the reservation backend.

Components:

  - Transport: the connection abstraction (State, WriteMessage)
  - WebSocketTransport: gorilla/websocket implementation with reconnect
    backoff (1s doubling to 32s), keep-alive pings and an optional bearer token
  - Channel: the only writer to the transport. Send writes immediately when
    the transport is open and otherwise queues the message; Run drains the
    queue in FIFO order once the transport opens
  - Stream: inbound envelopes fanned out to subscribers in arrival order

Queue semantics:

	Send(ctx, msg)  ──open──▶ write ──▶ true / false on write error
	      │
	      └─not open──▶ queue ──(transport opens)──▶ write in FIFO order
	                      │
	                      └─older than queue TTL──▶ false, never written

A queued sender blocks until its entry resolves or its context ends. An
overfull queue resolves new entries false immediately.
*/
package channel
