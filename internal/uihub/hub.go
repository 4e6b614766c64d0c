// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package uihub

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/store"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types sent to UI clients.
const (
	MessageTypeEventsChanged = "events_changed"
	MessageTypeNotification  = "notification"
	MessageTypeSnapshot      = "snapshot"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// Message is a UI WebSocket message.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// EventsChangedData is the payload of events_changed.
type EventsChangedData struct {
	Origin   string               `json:"origin"`
	Upserted []models.Reservation `json:"upserted,omitempty"`
	Removed  []string             `json:"removed,omitempty"`
}

// NotificationData is the payload of notification.
type NotificationData struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// SnapshotFunc returns the reservations sent to a client when it connects.
type SnapshotFunc func() []models.Reservation

// Hub tracks UI clients and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	snapshot   SnapshotFunc
	mu         sync.RWMutex
}

// NewHub creates a Hub. snapshot may be nil.
func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		snapshot:   snapshot,
	}
}

// Register adds a client. It blocks until the hub loop accepts it and returns
// false if the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave removes a client. It is a no-op once the hub has stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run processes registrations and broadcasts until ctx ends. Lifecycle events
// are handled before broadcasts so a message never reaches a client that has
// already left.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.register:
			h.add(client)
			continue
		case client := <-h.unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UIHubClients.Set(float64(n))

	if h.snapshot != nil {
		client.trySend(Message{Type: MessageTypeSnapshot, Data: h.snapshot()})
	}
	logging.Info().Int("total_clients", n).Msg("UI client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UIHubClients.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("UI client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	h.stopOnce.Do(func() { close(h.done) })
	count := h.ClientCount()
	h.closeAllClients()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "ui-hub").
		Str("reason", string(reason)).
		Int("clients_closed", count).
		Msg("UI hub stopped")
}

// broadcastToClients delivers message in client id order and drops clients
// whose buffer is full.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedClientsLocked()
	var slow []*Client
	for _, client := range clients {
		if client.trySend(message) {
			metrics.UIHubMessagesSent.WithLabelValues(message.Type).Inc()
			continue
		}
		slow = append(slow, client)
	}
	for _, client := range slow {
		metrics.UIHubDroppedMessages.Inc()
		client.close()
		delete(h.clients, client)
	}
	if len(slow) > 0 {
		metrics.UIHubClients.Set(float64(len(h.clients)))
		logging.Warn().Int("dropped_clients", len(slow)).Msg("Dropped slow UI clients")
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.sortedClientsLocked() {
		client.close()
		delete(h.clients, client)
	}
	metrics.UIHubClients.Set(0)
}

func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	slices.SortFunc(clients, func(a, b *Client) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return clients
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON queues a message for every client. It never blocks.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.UIHubDroppedMessages.Inc()
		logging.Warn().Str("message_type", messageType).Msg("UI broadcast channel full, dropping message")
	}
}

// OnChange forwards event store writes. Reflow writes are ignored.
func (h *Hub) OnChange(c store.Change) {
	if c.Origin == store.OriginReflow {
		return
	}
	h.BroadcastJSON(MessageTypeEventsChanged, EventsChangedData{
		Origin:   c.Origin.String(),
		Upserted: c.Upserted,
		Removed:  c.Removed,
	})
}

// Notify forwards a remote change notification.
func (h *Hub) Notify(kind string, payload any) {
	h.BroadcastJSON(MessageTypeNotification, NotificationData{Kind: kind, Payload: payload})
}

// Upgrader returns the WebSocket upgrader used by ServeWS. A nil checkOrigin
// falls back to gorilla's same-origin check.
func Upgrader(checkOrigin func(*http.Request) bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// ServeWS upgrades the request and attaches the connection to h.
func (h *Hub) ServeWS(upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("UI websocket upgrade failed")
		return
	}
	client := NewClient(h, conn)
	if !h.Register(client) {
		_ = conn.Close()
		return
	}
	client.Start()
}
