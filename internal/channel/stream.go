// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package channel

import (
	"sync"

	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
)

// Handler receives inbound envelopes.
type Handler func(models.Envelope)

// Stream fans inbound envelopes out to subscribers.
type Stream struct {
	mu     sync.RWMutex
	subs   []*Subscription
	nextID uint64
}

// Subscription is a registered handler. Unsubscribe is idempotent.
type Subscription struct {
	stream *Stream
	id     uint64
	fn     Handler
	once   sync.Once
}

// NewStream creates a stream with no subscribers.
func NewStream() *Stream {
	return &Stream{}
}

// Subscribe registers fn. Handlers run in subscription order.
func (s *Stream) Subscribe(fn Handler) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub := &Subscription{stream: s, id: s.nextID, fn: fn}
	s.subs = append(s.subs, sub)
	return sub
}

// Unsubscribe removes the handler. It is safe to call from inside the handler.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		s := sub.stream
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.subs {
			if other.id == sub.id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	})
}

// Len returns the number of subscribers.
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Publish delivers env to every current subscriber on the caller's goroutine.
// A panicking handler is logged and skipped.
func (s *Stream) Publish(env models.Envelope) {
	s.mu.RLock()
	subs := make([]*Subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()

	for _, sub := range subs {
		deliver(sub.fn, env)
	}
}

func deliver(fn Handler, env models.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			metrics.StreamHandlerPanics.Inc()
			logging.Error().
				Str("type", string(env.Type)).
				Interface("panic", r).
				Msg("Inbound handler panicked")
		}
	}()
	fn(env)
}
