// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package confirm

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/slotsync/internal/channel"
	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
)

// Source records which event settled a wait.
type Source string

const (
	SourceAck       Source = "ack"
	SourceNack      Source = "nack"
	SourceBroadcast Source = "broadcast"
	SourceTimeout   Source = "timeout"
	SourceCeiling   Source = "ceiling"
	SourceCancelled Source = "cancelled"
)

// Outcome is the result of a confirmation wait.
type Outcome struct {
	Success bool
	Message string
	Source  Source
}

// TimedOut reports whether the wait ended without any answer from the backend.
func (o Outcome) TimedOut() bool {
	return o.Source == SourceTimeout || o.Source == SourceCeiling
}

// Expectation describes the inbound messages that settle one mutation.
type Expectation struct {
	// Op labels metrics and logs ("modify" or "cancel").
	Op string

	CorrelationID string
	ReservationID string
	SubjectID     string
	Date          string

	Ack        models.MessageType
	Nack       models.MessageType
	Broadcasts []models.MessageType
}

// ModifyExpectation returns the Expectation for a modify_reservation request.
func ModifyExpectation(correlationID, reservationID, subjectID, date string) Expectation {
	return Expectation{
		Op:            "modify",
		CorrelationID: correlationID,
		ReservationID: reservationID,
		SubjectID:     subjectID,
		Date:          date,
		Ack:           models.TypeModifyAck,
		Nack:          models.TypeModifyNack,
		Broadcasts:    []models.MessageType{models.TypeReservationUpdated, models.TypeReservationReinstated},
	}
}

// CancelExpectation returns the Expectation for a cancel_reservation request.
func CancelExpectation(correlationID, reservationID, subjectID, date string) Expectation {
	return Expectation{
		Op:            "cancel",
		CorrelationID: correlationID,
		ReservationID: reservationID,
		SubjectID:     subjectID,
		Date:          date,
		Ack:           models.TypeCancelAck,
		Nack:          models.TypeCancelNack,
		Broadcasts:    []models.MessageType{models.TypeReservationCancelled},
	}
}

// match reports whether env settles the wait described by s.
func (s *Expectation) match(env models.Envelope) (Outcome, bool) {
	switch {
	case env.Type == s.Ack || env.Type == s.Nack:
		if s.CorrelationID == "" {
			return Outcome{}, false
		}
		ack, err := models.DecodeAck(&env)
		if err != nil || ack.CorrelationID != s.CorrelationID {
			return Outcome{}, false
		}
		if env.Type == s.Ack {
			return Outcome{Success: true, Message: ack.Message, Source: SourceAck}, true
		}
		return Outcome{Message: ack.Reason(), Source: SourceNack}, true

	case slices.Contains(s.Broadcasts, env.Type):
		data, err := models.DecodeReservation(&env)
		if err != nil {
			return Outcome{}, false
		}
		byID := s.ReservationID != "" && string(data.ID) == s.ReservationID
		byPair := s.SubjectID != "" && data.SubjectID == s.SubjectID && data.Date == s.Date
		if byID || byPair {
			return Outcome{Success: true, Source: SourceBroadcast}, true
		}
	}
	return Outcome{}, false
}

// Config tunes confirmation waits.
type Config struct {
	Timeout          time.Duration
	Ceiling          time.Duration
	OpenPollInterval time.Duration
}

// DefaultConfig returns the standard confirmation timings.
func DefaultConfig() Config {
	return Config{
		Timeout:          10 * time.Second,
		Ceiling:          30 * time.Second,
		OpenPollInterval: 100 * time.Millisecond,
	}
}

// Registry matches inbound messages to outstanding waits.
type Registry struct {
	stream  *channel.Stream
	state   channel.StateReporter
	cfg     Config
	waiting atomic.Int64
}

// New creates a Registry reading from stream and gating timeouts on state.
func New(stream *channel.Stream, state channel.StateReporter, cfg Config) *Registry {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = def.Ceiling
	}
	if cfg.OpenPollInterval <= 0 {
		cfg.OpenPollInterval = def.OpenPollInterval
	}
	return &Registry{stream: stream, state: state, cfg: cfg}
}

// Config returns the effective timings.
func (r *Registry) Config() Config {
	return r.cfg
}

// Waiting returns the number of waits in progress.
func (r *Registry) Waiting() int {
	return int(r.waiting.Load())
}

// Wait is a subscription for one Expectation, created by Watch. Await must be
// called exactly once to release it.
type Wait struct {
	r       *Registry
	exp     Expectation
	sub     *channel.Subscription
	settled chan Outcome
	once    sync.Once
}

// Watch starts listening for exp immediately. Callers that send the request
// themselves watch first so a fast answer cannot slip past the subscription.
func (r *Registry) Watch(exp Expectation) *Wait {
	r.waiting.Add(1)
	w := &Wait{r: r, exp: exp, settled: make(chan Outcome, 1)}
	w.sub = r.stream.Subscribe(func(env models.Envelope) {
		if o, ok := exp.match(env); ok {
			w.once.Do(func() { w.settled <- o })
		}
	})
	return w
}

// Await watches exp and blocks until it is settled. A non-positive timeout
// uses the configured default.
func (r *Registry) Await(ctx context.Context, exp Expectation, timeout time.Duration) Outcome {
	return r.Watch(exp).Await(ctx, timeout)
}

// Await blocks until the watched exp is settled. A non-positive timeout
// uses the configured default.
func (w *Wait) Await(ctx context.Context, timeout time.Duration) Outcome {
	r := w.r
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}
	started := time.Now()
	defer r.waiting.Add(-1)
	defer w.sub.Unsubscribe()

	ceiling := time.NewTimer(r.cfg.Ceiling)
	defer ceiling.Stop()

	var window *time.Timer
	var windowC <-chan time.Time
	defer func() {
		if window != nil {
			window.Stop()
		}
	}()
	startWindow := func() {
		window = time.NewTimer(timeout)
		windowC = window.C
	}

	var poll *time.Ticker
	var pollC <-chan time.Time
	if r.state.State() == channel.StateOpen {
		startWindow()
	} else {
		poll = time.NewTicker(r.cfg.OpenPollInterval)
		defer poll.Stop()
		pollC = poll.C
	}

	// answered prefers a backend answer that raced with a timer.
	answered := func(fallback Outcome) Outcome {
		select {
		case o := <-w.settled:
			return o
		default:
			return fallback
		}
	}

	for {
		select {
		case o := <-w.settled:
			return r.finish(w.exp, o, started)

		case <-pollC:
			if r.state.State() == channel.StateOpen {
				poll.Stop()
				pollC = nil
				startWindow()
			}

		case <-windowC:
			return r.finish(w.exp, answered(Outcome{Message: models.ReasonTimedOut, Source: SourceTimeout}), started)

		case <-ceiling.C:
			return r.finish(w.exp, answered(Outcome{Message: models.ReasonTimedOut, Source: SourceCeiling}), started)

		case <-ctx.Done():
			return r.finish(w.exp, answered(Outcome{Message: ctx.Err().Error(), Source: SourceCancelled}), started)
		}
	}
}

func (r *Registry) finish(exp Expectation, o Outcome, started time.Time) Outcome {
	waited := time.Since(started)
	metrics.RecordConfirm(exp.Op, string(o.Source), waited)

	ev := logging.Debug()
	if o.TimedOut() {
		ev = logging.Warn()
	}
	ev.Str("op", exp.Op).
		Str("correlation_id", exp.CorrelationID).
		Str("reservation_id", exp.ReservationID).
		Str("source", string(o.Source)).
		Bool("success", o.Success).
		Dur("waited", waited).
		Msg("Confirmation settled")
	return o
}
