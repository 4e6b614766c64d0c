// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slotsync/internal/channel"
	"github.com/tomtom215/slotsync/internal/confirm"
	"github.com/tomtom215/slotsync/internal/echo"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/slots"
	"github.com/tomtom215/slotsync/internal/store"
)

// backend is a scripted transport. respond runs for every written message
// and may publish replies on the stream.
type backend struct {
	state  atomic.Int32
	stream *channel.Stream

	mu      sync.Mutex
	written []models.Envelope
	failing bool
	respond func(b *backend, env models.Envelope)
}

func (b *backend) State() channel.State { return channel.State(b.state.Load()) }

func (b *backend) setState(s channel.State) { b.state.Store(int32(s)) }

func (b *backend) WriteMessage(data []byte) error {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	b.mu.Lock()
	if b.failing {
		b.mu.Unlock()
		return errors.New("connection reset")
	}
	b.written = append(b.written, env)
	respond := b.respond
	b.mu.Unlock()

	if respond != nil {
		go respond(b, env)
	}
	return nil
}

func (b *backend) writes() []models.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Envelope(nil), b.written...)
}

// reply publishes typ with data as an inbound message.
func (b *backend) reply(typ models.MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	b.stream.Publish(models.Envelope{Type: typ, Data: raw})
}

func correlationOf(env models.Envelope) string {
	var d struct {
		CorrelationID string `json:"correlation_id"`
	}
	_ = json.Unmarshal(env.Data, &d)
	return d.CorrelationID
}

func ackWith(typ models.MessageType) func(*backend, models.Envelope) {
	return func(b *backend, env models.Envelope) {
		b.reply(typ, models.AckData{CorrelationID: correlationOf(env)})
	}
}

func nackWith(typ models.MessageType, reason string) func(*backend, models.Envelope) {
	return func(b *backend, env models.Envelope) {
		b.reply(typ, models.AckData{CorrelationID: correlationOf(env), Error: reason})
	}
}

type fakeCanceller struct {
	calls  atomic.Int32
	result models.Result
}

func (f *fakeCanceller) CancelReservation(context.Context, string, string) models.Result {
	f.calls.Add(1)
	return f.result
}

type blockedSet map[string]bool

func (b blockedSet) IsBlockedDate(date string) bool { return b[date] }

type harness struct {
	store   *store.Store
	backend *backend
	channel *channel.Channel
	echoes  *echo.Registry
	coord   *Coordinator
}

type harnessOptions struct {
	state   channel.State
	timeout time.Duration
	opts    Options
}

func newHarness(t *testing.T, ho harnessOptions) *harness {
	t.Helper()
	if ho.timeout == 0 {
		ho.timeout = time.Second
	}

	engine, err := slots.New(slots.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(engine)
	stream := channel.NewStream()
	be := &backend{stream: stream}
	be.setState(ho.state)

	ch := channel.New(be, channel.Config{DrainInterval: 5 * time.Millisecond, QueueTTL: 5 * time.Second, MaxQueue: 16})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = ch.Run(ctx) }()

	reg := confirm.New(stream, be, confirm.Config{Timeout: ho.timeout, Ceiling: 5 * time.Second, OpenPollInterval: 5 * time.Millisecond})
	echoes := echo.NewRegistry(time.Second)

	return &harness{
		store:   st,
		backend: be,
		channel: ch,
		echoes:  echoes,
		coord:   New(st, ch, reg, echoes, Config{ConfirmTimeout: ho.timeout}, ho.opts),
	}
}

// seed writes reservations as if loaded from the backend and packs their slots.
func (h *harness) seed(t *testing.T, rs ...models.Reservation) {
	t.Helper()
	keys := make([]models.SlotKey, 0, len(rs))
	for _, r := range rs {
		stored, _, err := h.store.Put(r, store.OriginRemote)
		if err != nil {
			t.Fatalf("seed %s: %v", r.ID, err)
		}
		keys = append(keys, stored.Slot())
	}
	if err := h.store.Reflow(keys...); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) get(t *testing.T, id string) models.Reservation {
	t.Helper()
	r, _, ok := h.store.Get(id)
	if !ok {
		t.Fatalf("reservation %s missing from store", id)
	}
	return r
}

func clock(t *testing.T, ts time.Time) string {
	t.Helper()
	return ts.UTC().Format("15:04")
}
