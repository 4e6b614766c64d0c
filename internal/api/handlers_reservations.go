// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/validation"
)

// Events lists reservations from the event store, ordered by date and time.
//
// Query parameters:
//   - date: only reservations on this YYYY-MM-DD day
//   - subject_id: only this subject's reservations
//   - include_cancelled: also return entries with a cancel in flight
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	query := EventsQuery{
		Date:      q.Get("date"),
		SubjectID: q.Get("subject_id"),
	}
	if raw := q.Get("include_cancelled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			rw.BadRequest("include_cancelled must be a boolean")
			return
		}
		query.IncludeCancelled = v
	}
	if verr := validation.ValidateStruct(&query); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Code, apiErr.Message)
		return
	}

	var all []models.Reservation
	if query.SubjectID != "" {
		all = h.events.BySubject(query.SubjectID)
	} else {
		all = h.events.All()
	}

	out := make([]models.Reservation, 0, len(all))
	for _, res := range all {
		if query.Date != "" && res.Date != query.Date {
			continue
		}
		if res.Cancelled && !query.IncludeCancelled {
			continue
		}
		out = append(out, res)
	}
	rw.List(out, len(out))
}

// ModifyReservation moves or edits a reservation and waits for the backend
// to confirm it.
func (h *Handler) ModifyReservation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ModifyRequest
	if err := decodeJSON(r, w, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Code, apiErr.Message)
		return
	}

	ctx := logging.ContextWithSubjectID(r.Context(), req.SubjectID)
	res := h.mutator.Modify(ctx, req.SubjectID, req.Target())
	writeResult(rw, res)
}

// CancelReservation cancels a subject's reservation on a date and waits for
// the backend to confirm it.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CancelRequest
	if err := decodeJSON(r, w, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Code, apiErr.Message)
		return
	}

	ctx := logging.ContextWithSubjectID(r.Context(), req.SubjectID)
	res := h.mutator.Cancel(ctx, req.SubjectID, req.Date)
	writeResult(rw, res)
}

// writeResult renders a coordinator Result. Failures carry the full Result
// in error.details so the UI can honour its revert flag.
func writeResult(rw *ResponseWriter, res models.Result) {
	if res.Success {
		rw.Success(res)
		return
	}
	rw.ErrorWithDetails(failureStatus(res.Failure), strings.ToUpper(string(res.Failure)), res.Message, res)
}

// failureStatus maps a failure kind to an HTTP status.
func failureStatus(kind models.FailureKind) int {
	switch kind {
	case models.FailureNotFound:
		return http.StatusNotFound
	case models.FailureBlocked, models.FailureNotMovable, models.FailureStale, models.FailureSuperseded:
		return http.StatusConflict
	case models.FailureRejected:
		return http.StatusUnprocessableEntity
	case models.FailureTimedOut:
		return http.StatusGatewayTimeout
	case models.FailureSendFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
