// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slotsync/internal/coordinator"
	"github.com/tomtom215/slotsync/internal/models"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 * 1024

// ModifyRequest is the body of POST /api/v1/reservations/modify.
type ModifyRequest struct {
	ReservationID string  `json:"reservation_id,omitempty" validate:"omitempty,max=128"`
	SubjectID     string  `json:"subject_id" validate:"required,max=128"`
	Date          string  `json:"date" validate:"required,caldate"`
	TimeSlot      string  `json:"time_slot" validate:"required,slottime"`
	Kind          *int    `json:"kind,omitempty" validate:"omitempty,gte=0,lte=2"`
	DisplayName   *string `json:"display_name,omitempty" validate:"omitempty,max=256"`
	Approximate   bool    `json:"approximate"`
}

// Target converts the request into a coordinator target.
func (req *ModifyRequest) Target() coordinator.Target {
	t := coordinator.Target{
		ReservationID: req.ReservationID,
		Date:          req.Date,
		SlotTime:      req.TimeSlot,
		DisplayName:   req.DisplayName,
		Approximate:   req.Approximate,
	}
	if req.Kind != nil {
		k := models.Kind(*req.Kind)
		t.Kind = &k
	}
	return t
}

// CancelRequest is the body of POST /api/v1/reservations/cancel.
type CancelRequest struct {
	SubjectID string `json:"subject_id" validate:"required,max=128"`
	Date      string `json:"date" validate:"required,caldate"`
}

// EventsQuery holds the optional filters of GET /api/v1/events.
type EventsQuery struct {
	Date             string `validate:"omitempty,caldate"`
	SubjectID        string `validate:"omitempty,max=128"`
	IncludeCancelled bool
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
