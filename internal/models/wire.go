// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package models

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// MessageType is the "type" field of a backend message.
type MessageType string

const (
	TypeModifyReservation MessageType = "modify_reservation"
	TypeCancelReservation MessageType = "cancel_reservation"

	TypeModifyAck  MessageType = "modify_reservation_ack"
	TypeModifyNack MessageType = "modify_reservation_nack"
	TypeCancelAck  MessageType = "cancel_reservation_ack"
	TypeCancelNack MessageType = "cancel_reservation_nack"

	TypeReservationCreated    MessageType = "reservation_created"
	TypeReservationUpdated    MessageType = "reservation_updated"
	TypeReservationReinstated MessageType = "reservation_reinstated"
	TypeReservationCancelled  MessageType = "reservation_cancelled"
)

// IsAck reports whether t is a positive acknowledgement.
func (t MessageType) IsAck() bool {
	return strings.HasSuffix(string(t), "_ack")
}

// IsNack reports whether t is a negative acknowledgement.
func (t MessageType) IsNack() bool {
	return strings.HasSuffix(string(t), "_nack")
}

// IsBroadcast reports whether t is a reservation state broadcast.
func (t MessageType) IsBroadcast() bool {
	switch t {
	case TypeReservationCreated, TypeReservationUpdated, TypeReservationReinstated, TypeReservationCancelled:
		return true
	}
	return false
}

// Outbound is a message written to the backend.
type Outbound struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// Envelope is an inbound backend message with its payload left undecoded.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ModifyReservationData is the payload of modify_reservation.
type ModifyReservationData struct {
	SubjectID     string  `json:"subject_id"`
	Date          string  `json:"date"`
	TimeSlot      string  `json:"time_slot"`
	DisplayName   *string `json:"display_name,omitempty"`
	Kind          *Kind   `json:"kind,omitempty"`
	Approximate   bool    `json:"approximate"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

// CancelReservationData is the payload of cancel_reservation. Servers that do
// not acknowledge cancels ignore the correlation id.
type CancelReservationData struct {
	SubjectID     string `json:"subject_id"`
	Date          string `json:"date"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// AckData is the payload of every *_ack and *_nack message.
type AckData struct {
	CorrelationID string `json:"correlation_id"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Reason returns the human-readable reason, preferring Error over Message.
func (a *AckData) Reason() string {
	if a.Error != "" {
		return a.Error
	}
	return a.Message
}

// ReservationData is the payload of reservation_* broadcasts.
type ReservationData struct {
	ID          FlexibleID `json:"id"`
	SubjectID   string     `json:"subject_id"`
	Date        string     `json:"date"`
	TimeSlot    string     `json:"time_slot"`
	DisplayName *string    `json:"display_name,omitempty"`
	Kind        *Kind      `json:"kind,omitempty"`
}

// DecodeAck decodes an ack or nack payload.
func DecodeAck(env *Envelope) (*AckData, error) {
	var a AckData
	if err := json.Unmarshal(env.Data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DecodeReservation decodes a reservation broadcast payload.
func DecodeReservation(env *Envelope) (*ReservationData, error) {
	var r ReservationData
	if err := json.Unmarshal(env.Data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Merge applies the broadcast onto prev and returns the resulting reservation.
// Optional fields missing from the payload keep their previous values. The
// render positions are cleared so the store re-anchors the entry.
func (d *ReservationData) Merge(prev Reservation) Reservation {
	r := prev
	if d.ID != "" {
		r.ID = string(d.ID)
	}
	r.SubjectID = d.SubjectID
	r.Date = d.Date
	r.Time = d.TimeSlot
	if d.DisplayName != nil {
		r.DisplayName = *d.DisplayName
	}
	if d.Kind != nil {
		r.Kind = *d.Kind
	}
	r.Cancelled = false
	r.RawStart = time.Time{}
	r.RawEnd = time.Time{}
	return r
}
