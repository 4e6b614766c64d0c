// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package channel

import "errors"

// ErrNotConnected is returned by WriteMessage when no connection is open.
var ErrNotConnected = errors.New("transport not connected")

// State is the lifecycle state of a transport.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is a message-oriented connection to the backend.
type Transport interface {
	State() State
	WriteMessage(data []byte) error
}

// StateReporter is the read-only view of a transport used by components that
// only need to know whether the connection is open.
type StateReporter interface {
	State() State
}
