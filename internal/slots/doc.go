// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

// Package slots assigns reservations to coarse time slots and packs the
// occupants of a slot into non-overlapping sub-positions.
//
// The day is divided into fixed-duration slots anchored at the window start
// (default: two hours from 09:00). NormalizeToSlotBase maps any wall-clock
// time to the start of its slot. PackSlot lays out every packable reservation
// of one slot, sorted by (kind, display name, id):
//
//	09:00 ─┬─ Alice   09:00-09:15
//	       ├─ Bob     09:16-09:31
//	       ├─ Carol   09:32-09:47
//	       ...
//
// Entries are 15 minutes wide once the slot holds six or more of them and 20
// minutes otherwise, separated by a one-minute gap. Packing is recomputed from
// scratch for every affected slot; both functions are pure.
package slots
