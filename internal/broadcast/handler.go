// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

// Package broadcast applies backend reservation broadcasts to the event store.
//
// Every broadcast updates the store, including echoes of our own writes, so
// the store always converges on the backend's view. Only broadcasts that are
// not echoes reach the Notifier.
package broadcast

import (
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/slotsync/internal/channel"
	"github.com/tomtom215/slotsync/internal/echo"
	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/store"
)

// tempIDPrefix marks ids assigned locally to broadcasts that carried none.
const tempIDPrefix = "tmp-"

// Notifier receives remote changes worth showing to the operator.
type Notifier interface {
	Notify(kind string, payload any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind string, payload any)

// Notify implements Notifier.
func (f NotifierFunc) Notify(kind string, payload any) { f(kind, payload) }

// Notification is the payload handed to the Notifier.
type Notification struct {
	Type        models.MessageType `json:"type"`
	Reservation models.Reservation `json:"reservation"`
}

// Handler reconciles broadcasts into the store.
type Handler struct {
	store    *store.Store
	echoes   *echo.Registry
	notifier Notifier
}

// New creates a Handler. A nil notifier drops notifications.
func New(st *store.Store, echoes *echo.Registry, notifier Notifier) *Handler {
	if notifier == nil {
		notifier = NotifierFunc(func(string, any) {})
	}
	return &Handler{store: st, echoes: echoes, notifier: notifier}
}

// Attach subscribes the handler to stream for the lifetime of the process.
func (h *Handler) Attach(stream *channel.Stream) *channel.Subscription {
	return stream.Subscribe(h.Handle)
}

// Handle processes one inbound message. Non-broadcast messages are ignored.
func (h *Handler) Handle(env models.Envelope) {
	if !env.Type.IsBroadcast() {
		return
	}
	data, err := models.DecodeReservation(&env)
	if err != nil || data.SubjectID == "" || data.Date == "" {
		metrics.InboundDecodeErrors.Inc()
		logging.Warn().Err(err).Str("type", string(env.Type)).Msg("Ignoring malformed reservation broadcast")
		return
	}

	var applied models.Reservation
	var ok bool
	if env.Type == models.TypeReservationCancelled {
		applied, ok = h.applyCancel(data)
	} else {
		applied, ok = h.applyUpsert(data)
	}
	if !ok {
		return
	}
	metrics.BroadcastsApplied.WithLabelValues(string(env.Type)).Inc()

	slot := applied.SlotTime
	if env.Type == models.TypeReservationCancelled {
		slot = ""
	}
	if h.echoes.IsMarkedAny(echo.BroadcastKeys(env.Type, data.SubjectID, data.Date, slot)...) {
		metrics.EchoSuppressed.Inc()
		logging.Debug().
			Str("type", string(env.Type)).
			Str("reservation_id", applied.ID).
			Msg("Suppressed notification for echo of a local change")
		return
	}
	h.notifier.Notify(string(env.Type), Notification{Type: env.Type, Reservation: applied})
}

// previous finds the entry a broadcast refers to, by id first and then by
// (subject, date).
func (h *Handler) previous(data *models.ReservationData) (models.Reservation, bool) {
	if data.ID != "" {
		if r, _, ok := h.store.Get(string(data.ID)); ok {
			return r, true
		}
	}
	r, _, ok := h.store.FindBySubjectDate(data.SubjectID, data.Date)
	if ok && data.ID != "" && r.ID != string(data.ID) && !isTempID(r.ID) {
		// A different reservation of the same subject on the same day.
		return models.Reservation{}, false
	}
	return r, ok
}

func (h *Handler) applyUpsert(data *models.ReservationData) (models.Reservation, bool) {
	prev, existed := h.previous(data)

	next := data.Merge(prev)
	if next.ID == "" {
		next.ID = tempIDPrefix + uuid.NewString()
	}
	if existed && prev.ID != next.ID {
		// The backend assigned the permanent id.
		h.store.Remove(prev.ID, store.OriginRemote)
	}

	stored, _, err := h.store.Put(next, store.OriginRemote)
	if err != nil {
		logging.Warn().Err(err).Str("reservation_id", next.ID).Msg("Failed to apply reservation broadcast")
		return models.Reservation{}, false
	}

	keys := []models.SlotKey{stored.Slot()}
	if existed {
		keys = append(keys, prev.Slot())
	}
	if err := h.store.Reflow(keys...); err != nil {
		logging.Warn().Err(err).Msg("Slot reflow failed")
	}
	if r, _, ok := h.store.Get(stored.ID); ok {
		stored = r
	}
	return stored, true
}

func (h *Handler) applyCancel(data *models.ReservationData) (models.Reservation, bool) {
	prev, existed := h.previous(data)
	if !existed {
		// Already gone locally, typically removed by our own confirmed cancel.
		r := data.Merge(models.Reservation{})
		r.Cancelled = true
		return r, true
	}

	h.store.Remove(prev.ID, store.OriginRemote)
	if err := h.store.Reflow(prev.Slot()); err != nil {
		logging.Warn().Err(err).Msg("Slot reflow failed")
	}
	prev.Cancelled = true
	return prev, true
}

func isTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
