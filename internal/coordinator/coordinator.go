// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/slotsync/internal/channel"
	"github.com/tomtom215/slotsync/internal/confirm"
	"github.com/tomtom215/slotsync/internal/echo"
	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/store"
)

// BlockedDates reports administratively blocked days.
type BlockedDates interface {
	IsBlockedDate(date string) bool
}

// Canceller cancels synchronously outside the channel.
type Canceller interface {
	CancelReservation(ctx context.Context, subjectID, date string) models.Result
}

// Sender is the outbound side of the backend channel.
type Sender interface {
	Send(ctx context.Context, msg models.Outbound) bool
	State() channel.State
}

// Target describes where a reservation should move.
type Target struct {
	// ReservationID selects the reservation. When empty, the subject's only
	// reservation is used.
	ReservationID string

	Date string

	// SlotTime is the requested start time (HH:MM). It need not be a slot
	// base; the store normalizes it.
	SlotTime string

	Kind        *models.Kind
	DisplayName *string

	// Approximate asks the backend to snap the time to the nearest valid slot.
	Approximate bool
}

// Config tunes the coordinator.
type Config struct {
	ConfirmTimeout time.Duration
	ModifyEchoTTL  time.Duration
	CancelEchoTTL  time.Duration
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		ConfirmTimeout: 10 * time.Second,
		ModifyEchoTTL:  4500 * time.Millisecond,
		CancelEchoTTL:  2 * time.Second,
	}
}

// pending is one outstanding mutation.
type pending struct {
	op        string
	submitted time.Time
	cancel    context.CancelFunc
	prior     models.Reservation
	gen       uint64

	// superseded is guarded by Coordinator.mu.
	superseded bool
}

// Coordinator runs the optimistic mutation protocol.
type Coordinator struct {
	store    *store.Store
	sender   Sender
	registry *confirm.Registry
	echoes   *echo.Registry
	blocked  BlockedDates
	http     Canceller
	cfg      Config

	mu      sync.Mutex
	pending map[string]*pending
}

// Options carries the optional collaborators.
type Options struct {
	// Blocked defaults to a calendar that blocks nothing.
	Blocked BlockedDates

	// HTTP enables the synchronous cancel path. Nil disables it.
	HTTP Canceller
}

// New creates a Coordinator.
func New(st *store.Store, sender Sender, registry *confirm.Registry, echoes *echo.Registry, cfg Config, opts Options) *Coordinator {
	def := DefaultConfig()
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	if cfg.ModifyEchoTTL <= 0 {
		cfg.ModifyEchoTTL = def.ModifyEchoTTL
	}
	if cfg.CancelEchoTTL <= 0 {
		cfg.CancelEchoTTL = def.CancelEchoTTL
	}
	if opts.Blocked == nil {
		opts.Blocked = neverBlocked{}
	}
	return &Coordinator{
		store:    st,
		sender:   sender,
		registry: registry,
		echoes:   echoes,
		blocked:  opts.Blocked,
		http:     opts.HTTP,
		cfg:      cfg,
		pending:  make(map[string]*pending),
	}
}

type neverBlocked struct{}

func (neverBlocked) IsBlockedDate(string) bool { return false }

// Pending returns the number of outstanding mutations.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// begin registers a mutation on key, superseding any outstanding one, and
// applies the optimistic write produced by mutate. It returns the pending
// record, the reservation before and after the write, and a context that is
// cancelled when a newer mutation supersedes this one.
func (c *Coordinator) begin(ctx context.Context, op string, cur models.Reservation, mutate func(models.Reservation) models.Reservation) (*pending, models.Reservation, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prior := cur
	if old, ok := c.pending[cur.ID]; ok {
		prior = old.prior
		old.superseded = true
		old.cancel()
		logging.Debug().Str("reservation_id", cur.ID).Str("op", old.op).Msg("Superseding outstanding mutation")
	}

	next, gen, err := c.store.Put(mutate(cur), store.OriginLocal)
	if err != nil {
		return nil, models.Reservation{}, nil, err
	}

	waitCtx, cancel := context.WithCancel(ctx)
	p := &pending{op: op, submitted: time.Now(), cancel: cancel, prior: prior, gen: gen}
	c.pending[cur.ID] = p
	metrics.PendingMutations.Set(float64(len(c.pending)))
	return p, next, waitCtx, nil
}

// end removes p from the table and reports whether it was superseded.
func (c *Coordinator) end(id string, p *pending) (superseded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.cancel()
	if c.pending[id] == p {
		delete(c.pending, id)
	}
	metrics.PendingMutations.Set(float64(len(c.pending)))
	return p.superseded
}

// exchange watches exp, sends msg and waits for whichever settles first.
// The confirmation subscription is in place before the message can leave.
func (c *Coordinator) exchange(ctx context.Context, msg models.Outbound, exp confirm.Expectation) (sent bool, outcome confirm.Outcome) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wait := c.registry.Watch(exp)
	outcomes := make(chan confirm.Outcome, 1)
	go func() { outcomes <- wait.Await(ctx, c.cfg.ConfirmTimeout) }()

	sends := make(chan bool, 1)
	go func() { sends <- c.sender.Send(ctx, msg) }()

	select {
	case sent = <-sends:
		if !sent {
			cancel()
			return false, <-outcomes
		}
		return true, <-outcomes
	case outcome = <-outcomes:
		// Settled while the message was still queued: withdraw it.
		cancel()
		return <-sends, outcome
	}
}

// rollback restores p.prior if the entry still carries p.gen.
func (c *Coordinator) rollback(p *pending, optimistic models.Reservation, kind models.FailureKind, reason string) models.Result {
	gen, ok, err := c.store.CompareAndPut(p.prior, p.gen, store.OriginRollback)
	if err != nil || !ok {
		logging.Info().
			Str("reservation_id", p.prior.ID).
			Str("op", p.op).
			Str("failure", string(kind)).
			Str("reason", reason).
			Msg("Discarding stale failure, reservation changed while in flight")
		return models.Failed(models.FailureStale, "")
	}
	c.reflow(p.prior.Slot(), optimistic.Slot())

	res := models.Failed(kind, reason)
	prior := p.prior
	res.Reservation = &prior
	logging.Info().
		Str("reservation_id", prior.ID).
		Str("op", p.op).
		Uint64("generation", gen).
		Str("failure", string(kind)).
		Str("reason", res.Message).
		Msg("Rolled back optimistic change")
	return res
}

func (c *Coordinator) reflow(keys ...models.SlotKey) {
	if err := c.store.Reflow(keys...); err != nil {
		logging.Warn().Err(err).Msg("Slot reflow failed")
	}
}

// failureFor maps an unsuccessful exchange to a failure kind.
func failureFor(sent bool, o confirm.Outcome) models.FailureKind {
	switch {
	case o.Source == confirm.SourceNack:
		return models.FailureRejected
	case !sent:
		return models.FailureSendFailure
	default:
		return models.FailureTimedOut
	}
}

func record(op string, started time.Time, res models.Result) models.Result {
	outcome := "success"
	if !res.Success {
		outcome = string(res.Failure)
	}
	metrics.RecordMutation(op, outcome, time.Since(started))
	return res
}

func newCorrelationID() string {
	return uuid.NewString()
}
