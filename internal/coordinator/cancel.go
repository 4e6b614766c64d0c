// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/slotsync/internal/channel"
	"github.com/tomtom215/slotsync/internal/confirm"
	"github.com/tomtom215/slotsync/internal/echo"
	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/store"
)

const opCancel = "cancel"

// Cancel cancels subjectID's reservation on date.
func (c *Coordinator) Cancel(ctx context.Context, subjectID, date string) models.Result {
	started := time.Now()

	cur, _, ok := c.store.FindBySubjectDate(subjectID, date)
	if !ok {
		return record(opCancel, started, models.Failed(models.FailureNotFound, ""))
	}

	correlationID := newCorrelationID()
	log := logging.With().
		Str("op", opCancel).
		Str("correlation_id", correlationID).
		Str("reservation_id", cur.ID).
		Str("subject_id", subjectID).
		Str("date", date).
		Logger()

	echoKey := echo.CancelKey(subjectID, date)
	c.echoes.Mark(echoKey, c.cfg.CancelEchoTTL)

	p, optimistic, waitCtx, err := c.begin(ctx, opCancel, cur, func(r models.Reservation) models.Reservation {
		r.Cancelled = true
		return r
	})
	if err != nil {
		log.Warn().Err(err).Msg("Optimistic write failed")
		return record(opCancel, started, models.Failed(models.FailureRejected, err.Error()))
	}

	res := c.cancelRemote(waitCtx, log, correlationID, cur)

	if c.end(cur.ID, p) {
		log.Debug().Msg("Cancel superseded by a newer change")
		return record(opCancel, started, models.Failed(models.FailureSuperseded, ""))
	}

	if res.Success {
		c.store.Remove(cur.ID, store.OriginLocal)
		c.reflow(cur.Slot())
		log.Info().Msg("Cancel confirmed")
		return record(opCancel, started, res)
	}

	c.echoes.Unmark(echoKey)
	return record(opCancel, started, c.rollback(p, optimistic, res.Failure, res.Message))
}

// cancelRemote asks the backend to cancel, over the channel when it is open
// and over HTTP otherwise. A failed channel send retries over HTTP.
func (c *Coordinator) cancelRemote(ctx context.Context, log zerolog.Logger, correlationID string, cur models.Reservation) models.Result {
	if c.http != nil && c.sender.State() != channel.StateOpen {
		log.Info().Msg("Transport not open, cancelling over HTTP")
		return c.http.CancelReservation(ctx, cur.SubjectID, cur.Date)
	}

	msg := models.Outbound{
		Type: models.TypeCancelReservation,
		Data: models.CancelReservationData{
			SubjectID:     cur.SubjectID,
			Date:          cur.Date,
			CorrelationID: correlationID,
		},
	}
	sent, outcome := c.exchange(ctx, msg, confirm.CancelExpectation(correlationID, cur.ID, cur.SubjectID, cur.Date))
	if outcome.Success {
		return models.Succeeded(outcome.Message)
	}
	if !sent && c.http != nil && ctx.Err() == nil {
		log.Info().Msg("Channel send failed, cancelling over HTTP")
		return c.http.CancelReservation(ctx, cur.SubjectID, cur.Date)
	}
	return models.Failed(failureFor(sent, outcome), nackReason(outcome))
}
