// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package uihub pushes live updates to connected UI clients over WebSocket.

The hub is the bridge between the engine and whatever renders the calendar:

  - as a store.Observer it forwards every event store write as an
    events_changed message, except reflow writes, which only repack
    positions and would otherwise loop back into the UI's own change
    detection
  - as a broadcast.Notifier it forwards remote changes made by other
    operators as notification messages

Architecture:

	┌──────────┐
	│   Hub    │ ← store changes, notifications
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│ Client1  │ Client2 │ Client3 │
	└──────────┴─────────┴─────────┘

Each client has a read goroutine (answers "ping" with "pong") and a write
goroutine (drains its send buffer and keeps the socket alive). A client whose
buffer is full is dropped rather than slowing the hub down.

Message shape:

	{"type": "events_changed", "data": {"origin": "remote", "upserted": [...], "removed": ["42"]}}
	{"type": "notification",   "data": {"kind": "reservation_updated", "payload": {...}}}
*/
package uihub
