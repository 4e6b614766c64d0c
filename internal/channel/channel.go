// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package channel

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
)

// Config tunes the outbound queue.
type Config struct {
	DrainInterval time.Duration
	QueueTTL      time.Duration
	MaxQueue      int
}

// DefaultConfig returns the stock queue settings.
func DefaultConfig() Config {
	return Config{
		DrainInterval: 500 * time.Millisecond,
		QueueTTL:      10 * time.Second,
		MaxQueue:      1024,
	}
}

type queuedMessage struct {
	payload    []byte
	msgType    models.MessageType
	enqueuedAt time.Time
	result     chan bool
}

func (m *queuedMessage) resolve(ok bool) {
	m.result <- ok
}

// Channel is the connection-aware outbound path. It is the only component
// that writes to the transport.
type Channel struct {
	transport Transport
	cfg       Config

	// sendMu serializes transport writes so direct sends and queue drains
	// cannot reorder messages.
	sendMu sync.Mutex

	mu    sync.Mutex
	queue []*queuedMessage

	kick chan struct{}
}

// New creates a Channel writing to t.
func New(t Transport, cfg Config) *Channel {
	def := DefaultConfig()
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = def.DrainInterval
	}
	if cfg.QueueTTL <= 0 {
		cfg.QueueTTL = def.QueueTTL
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = def.MaxQueue
	}
	return &Channel{
		transport: t,
		cfg:       cfg,
		kick:      make(chan struct{}, 1),
	}
}

// State reports the transport state.
func (c *Channel) State() State {
	return c.transport.State()
}

// QueueDepth returns the number of messages waiting for the transport.
func (c *Channel) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Send delivers msg and reports whether it was written to the transport.
// While the transport is not open the call blocks until the queued entry is
// written, expires, or ctx ends. Send never returns an error; every failure
// resolves false.
func (c *Channel) Send(ctx context.Context, msg models.Outbound) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		logging.Error().Err(err).Str("type", string(msg.Type)).Msg("Failed to encode outbound message")
		metrics.RecordSendFailure("encode")
		return false
	}

	if ok, handled := c.sendDirect(payload, msg.Type); handled {
		return ok
	}

	entry := &queuedMessage{
		payload:    payload,
		msgType:    msg.Type,
		enqueuedAt: time.Now(),
		result:     make(chan bool, 1),
	}
	if !c.enqueue(entry) {
		metrics.RecordSendFailure("overflow")
		logging.Warn().
			Str("type", string(msg.Type)).
			Int("max_queue", c.cfg.MaxQueue).
			Msg("Outbound queue full, dropping message")
		return false
	}
	logging.Debug().
		Str("type", string(msg.Type)).
		Str("state", c.transport.State().String()).
		Msg("Transport not open, message queued")

	select {
	case ok := <-entry.result:
		return ok
	case <-ctx.Done():
		if c.withdraw(entry) {
			metrics.RecordSendFailure("cancelled")
			return false
		}
		// Already taken by the drain loop; its result is imminent.
		return <-entry.result
	}
}

// sendDirect writes immediately when the transport is open and nothing is
// queued ahead. handled is false when the message must be queued.
func (c *Channel) sendDirect(payload []byte, typ models.MessageType) (ok, handled bool) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.transport.State() != StateOpen || c.QueueDepth() > 0 {
		return false, false
	}
	return c.write(payload, typ), true
}

func (c *Channel) enqueue(entry *queuedMessage) bool {
	c.mu.Lock()
	if len(c.queue) >= c.cfg.MaxQueue {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, entry)
	depth := len(c.queue)
	c.mu.Unlock()

	metrics.ChannelQueueDepth.Set(float64(depth))
	select {
	case c.kick <- struct{}{}:
	default:
	}
	return true
}

// withdraw removes entry from the queue. It reports false when the entry was
// already taken by the drain loop.
func (c *Channel) withdraw(entry *queuedMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.queue {
		if e == entry {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			metrics.ChannelQueueDepth.Set(float64(len(c.queue)))
			return true
		}
	}
	return false
}

// Run drains the queue every DrainInterval until ctx ends. Entries still
// queued at shutdown resolve false.
func (c *Channel) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.failAll("cancelled")
			return ctx.Err()
		case <-ticker.C:
			c.Drain()
		case <-c.kick:
			c.Drain()
		}
	}
}

// Drain expires stale entries and, when the transport is open, writes the
// rest in FIFO order.
func (c *Channel) Drain() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	for {
		entry, expired := c.next()
		if entry == nil {
			return
		}
		if expired {
			metrics.RecordSendFailure("expired")
			logging.Warn().
				Str("type", string(entry.msgType)).
				Dur("age", time.Since(entry.enqueuedAt)).
				Msg("Queued message expired before the transport opened")
			entry.resolve(false)
			continue
		}
		entry.resolve(c.write(entry.payload, entry.msgType))
	}
}

// next pops the head of the queue. Expired heads are always popped; a live
// head is popped only when the transport is open.
func (c *Channel) next() (entry *queuedMessage, expired bool) {
	c.mu.Lock()
	defer func() {
		metrics.ChannelQueueDepth.Set(float64(len(c.queue)))
		c.mu.Unlock()
	}()

	if len(c.queue) == 0 {
		return nil, false
	}
	head := c.queue[0]
	expired = time.Since(head.enqueuedAt) > c.cfg.QueueTTL
	if !expired && c.transport.State() != StateOpen {
		return nil, false
	}
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return head, expired
}

// write sends payload, converting errors and panics into false.
func (c *Channel) write(payload []byte, typ models.MessageType) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordSendFailure("write_error")
			logging.Error().Str("type", string(typ)).Interface("panic", r).Msg("Transport write panicked")
			ok = false
		}
	}()

	if err := c.transport.WriteMessage(payload); err != nil {
		metrics.RecordSendFailure("write_error")
		logging.Warn().Err(err).Str("type", string(typ)).Msg("Transport write failed")
		return false
	}
	metrics.ChannelMessagesSent.WithLabelValues(string(typ)).Inc()
	return true
}

func (c *Channel) failAll(reason string) {
	c.mu.Lock()
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()
	metrics.ChannelQueueDepth.Set(0)

	for _, e := range pending {
		metrics.RecordSendFailure(reason)
		e.resolve(false)
	}
	if len(pending) > 0 {
		logging.Info().Int("count", len(pending)).Str("reason", reason).Msg("Resolved queued messages as undelivered")
	}
}
