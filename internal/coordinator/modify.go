// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package coordinator

import (
	"context"
	"time"

	"github.com/tomtom215/slotsync/internal/confirm"
	"github.com/tomtom215/slotsync/internal/echo"
	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/models"
)

const opModify = "modify"

// Modify moves or edits a reservation of subjectID.
func (c *Coordinator) Modify(ctx context.Context, subjectID string, target Target) models.Result {
	started := time.Now()

	if c.blocked.IsBlockedDate(target.Date) {
		logging.Info().Str("subject_id", subjectID).Str("date", target.Date).Msg("Modify refused, target date is blocked")
		return record(opModify, started, models.Failed(models.FailureBlocked, ""))
	}

	cur, ok := c.lookup(subjectID, target.ReservationID)
	if !ok {
		return record(opModify, started, models.Failed(models.FailureNotFound, ""))
	}
	if !cur.Kind.Movable() {
		return record(opModify, started, models.Failed(models.FailureNotMovable, ""))
	}
	if subjectID == "" {
		subjectID = cur.SubjectID
	}

	slot, err := c.store.Engine().NormalizeToSlotBase(target.Date, target.SlotTime)
	if err != nil {
		return record(opModify, started, models.Failed(models.FailureRejected, err.Error()))
	}

	correlationID := newCorrelationID()
	log := logging.With().
		Str("op", opModify).
		Str("correlation_id", correlationID).
		Str("reservation_id", cur.ID).
		Str("subject_id", subjectID).
		Logger()

	c.echoes.Mark(echo.ModifyKey(subjectID, target.Date, slot, target.Approximate), c.cfg.ModifyEchoTTL)

	// A modify that supersedes an in-flight cancel reinstates the entry.
	p, optimistic, waitCtx, err := c.begin(ctx, opModify, cur, func(r models.Reservation) models.Reservation {
		r.Cancelled = false
		r.Date = target.Date
		r.Time = target.SlotTime
		r.RawStart, r.RawEnd = time.Time{}, time.Time{}
		if target.Kind != nil {
			r.Kind = *target.Kind
		}
		if target.DisplayName != nil {
			r.DisplayName = *target.DisplayName
		}
		return r
	})
	if err != nil {
		log.Warn().Err(err).Msg("Optimistic write failed")
		return record(opModify, started, models.Failed(models.FailureRejected, err.Error()))
	}
	log.Debug().
		Str("from", cur.Slot().String()).
		Str("to", optimistic.Slot().String()).
		Uint64("generation", p.gen).
		Msg("Applied optimistic modify")

	msg := models.Outbound{
		Type: models.TypeModifyReservation,
		Data: models.ModifyReservationData{
			SubjectID:     subjectID,
			Date:          target.Date,
			TimeSlot:      target.SlotTime,
			DisplayName:   target.DisplayName,
			Kind:          target.Kind,
			Approximate:   target.Approximate,
			CorrelationID: correlationID,
		},
	}
	sent, outcome := c.exchange(waitCtx, msg, confirm.ModifyExpectation(correlationID, cur.ID, subjectID, target.Date))

	if c.end(cur.ID, p) {
		log.Debug().Msg("Modify superseded by a newer change")
		return record(opModify, started, models.Failed(models.FailureSuperseded, ""))
	}

	if outcome.Success {
		c.reflow(p.prior.Slot(), optimistic.Slot())
		res := models.Succeeded(outcome.Message)
		if r, _, ok := c.store.Get(cur.ID); ok {
			res.Reservation = &r
		}
		log.Info().Str("source", string(outcome.Source)).Msg("Modify confirmed")
		return record(opModify, started, res)
	}

	c.echoes.Unmark(echo.ModifyKey(subjectID, target.Date, slot, target.Approximate))
	return record(opModify, started, c.rollback(p, optimistic, failureFor(sent, outcome), nackReason(outcome)))
}

// lookup finds the reservation to modify. Without an id the subject must
// own exactly one active reservation.
func (c *Coordinator) lookup(subjectID, id string) (models.Reservation, bool) {
	if id != "" {
		r, _, ok := c.store.Get(id)
		if !ok || (subjectID != "" && r.SubjectID != subjectID) {
			return models.Reservation{}, false
		}
		return r, true
	}

	var found []models.Reservation
	for _, r := range c.store.BySubject(subjectID) {
		if !r.Cancelled {
			found = append(found, r)
		}
	}
	if len(found) != 1 {
		return models.Reservation{}, false
	}
	return found[0], true
}

// nackReason keeps backend-supplied reasons and drops our own timeout text so
// the failure default applies.
func nackReason(o confirm.Outcome) string {
	if o.Source == confirm.SourceNack {
		return o.Message
	}
	return ""
}
