// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Kind classifies a reservation. Lower kinds are packed first within a slot.
type Kind int

const (
	KindRegular    Kind = 0
	KindFollowUp   Kind = 1
	KindNonMovable Kind = 2
)

// Movable reports whether reservations of this kind may be dragged and packed.
func (k Kind) Movable() bool {
	return k != KindNonMovable
}

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindFollowUp:
		return "follow_up"
	case KindNonMovable:
		return "non_movable"
	default:
		return "kind_" + strconv.Itoa(int(k))
	}
}

// Reservation is one calendar entry in the local event store.
//
// Time is the anchor start time as requested by the operator or reported by
// the backend. SlotTime is derived from it by the event store and is never
// set by callers. RawStart and RawEnd are render positions inside the slot,
// rewritten by slot packing.
type Reservation struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	SlotTime    string    `json:"slot_time"`
	RawStart    time.Time `json:"raw_start"`
	RawEnd      time.Time `json:"raw_end"`
	Kind        Kind      `json:"kind"`
	DisplayName string    `json:"display_name"`
	Cancelled   bool      `json:"cancelled"`
}

// Slot returns the coarse slot the reservation occupies.
func (r *Reservation) Slot() SlotKey {
	return SlotKey{Date: r.Date, SlotTime: r.SlotTime}
}

// Packable reports whether the reservation takes part in slot packing.
func (r *Reservation) Packable() bool {
	return !r.Cancelled && r.Kind.Movable()
}

// SlotKey identifies a coarse slot on a given day.
type SlotKey struct {
	Date     string
	SlotTime string
}

// String formats the key as "date slotTime".
func (k SlotKey) String() string {
	return k.Date + " " + k.SlotTime
}

// FlexibleID accepts both JSON strings and numbers. Some backends emit
// numeric reservation ids in broadcasts.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("reservation id must be a string or number, got %s", b)
	}
	*id = FlexibleID(b)
	return nil
}
