// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/slotsync/internal/models"
)

type backendStub struct {
	server   *httptest.Server
	auth     chan string
	received chan []byte
	conns    chan *websocket.Conn
}

func newBackendStub(t *testing.T) *backendStub {
	t.Helper()
	b := &backendStub{
		auth:     make(chan string, 4),
		received: make(chan []byte, 16),
		conns:    make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			b.received <- data
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backendStub) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func waitForState(t *testing.T, tr *WebSocketTransport, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for tr.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("transport state = %s, want %s", tr.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketTransport_RoundTrip(t *testing.T) {
	backend := newBackendStub(t)
	stream := NewStream()
	inbound := make(chan models.Envelope, 4)
	stream.Subscribe(func(env models.Envelope) { inbound <- env })

	tr := NewWebSocketTransport(WebSocketConfig{URL: backend.url(), Token: "secret"}, stream)
	if tr.State() != StateConnecting {
		t.Fatalf("initial state = %s, want connecting", tr.State())
	}
	if err := tr.WriteMessage([]byte(`{}`)); err != ErrNotConnected {
		t.Errorf("WriteMessage() before connect error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- tr.Run(ctx) }()

	if got := <-backend.auth; got != "Bearer secret" {
		t.Errorf("Authorization header = %q, want %q", got, "Bearer secret")
	}
	waitForState(t, tr, StateOpen)
	conn := <-backend.conns

	if err := tr.WriteMessage([]byte(`{"type":"modify_reservation","data":{}}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	select {
	case data := <-backend.received:
		if !strings.Contains(string(data), "modify_reservation") {
			t.Errorf("backend received %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backend did not receive the message")
	}

	// A malformed frame is dropped and the next valid one still arrives.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"modify_reservation_ack","data":{"correlation_id":"c1"}}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case env := <-inbound:
		if env.Type != models.TypeModifyAck {
			t.Errorf("inbound type = %s, want %s", env.Type, models.TypeModifyAck)
		}
		ack, err := models.DecodeAck(&env)
		if err != nil || ack.CorrelationID != "c1" {
			t.Errorf("DecodeAck() = %+v, %v", ack, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not published")
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if tr.State() != StateClosed {
		t.Errorf("state after shutdown = %s, want closed", tr.State())
	}
}

func TestWebSocketTransport_ReconnectsAfterServerClose(t *testing.T) {
	backend := newBackendStub(t)
	tr := NewWebSocketTransport(WebSocketConfig{
		URL:          backend.url(),
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 20 * time.Millisecond,
	}, NewStream())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tr.Run(ctx) }()

	first := <-backend.conns
	waitForState(t, tr, StateOpen)
	_ = first.Close()

	select {
	case <-backend.conns:
	case <-time.After(3 * time.Second):
		t.Fatal("transport did not reconnect")
	}
	waitForState(t, tr, StateOpen)
}

func TestWebSocketTransport_DialFailureKeepsRetrying(t *testing.T) {
	tr := NewWebSocketTransport(WebSocketConfig{
		URL:          "ws://127.0.0.1:1/ws",
		ReconnectMin: 5 * time.Millisecond,
		ReconnectMax: 10 * time.Millisecond,
	}, NewStream())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := tr.Run(ctx)
	if err == nil {
		t.Fatal("Run() returned nil, want context error")
	}
	if tr.State() != StateClosed {
		t.Errorf("state = %s, want closed", tr.State())
	}
}
