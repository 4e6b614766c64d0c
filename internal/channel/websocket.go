// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
)

// WebSocketConfig configures the backend WebSocket connection.
type WebSocketConfig struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
}

// WebSocketTransport keeps one WebSocket connection to the backend alive and
// publishes every inbound envelope on a Stream.
type WebSocketTransport struct {
	cfg    WebSocketConfig
	stream *Stream
	dialer websocket.Dialer

	state atomic.Int32

	// connMu guards conn and serializes writes, which gorilla/websocket
	// requires.
	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewWebSocketTransport creates a transport that publishes inbound messages on stream.
func NewWebSocketTransport(cfg WebSocketConfig, stream *Stream) *WebSocketTransport {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 1 * time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 32 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	t := &WebSocketTransport{
		cfg:    cfg,
		stream: stream,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
	t.setState(StateConnecting)
	return t
}

// State reports the connection state.
func (t *WebSocketTransport) State() State {
	return State(t.state.Load())
}

func (t *WebSocketTransport) setState(s State) {
	t.state.Store(int32(s))
	metrics.TransportState.Set(float64(s))
}

// WriteMessage writes one text frame.
func (t *WebSocketTransport) WriteMessage(data []byte) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return ErrNotConnected
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Run connects and reconnects with exponential backoff until ctx ends.
func (t *WebSocketTransport) Run(ctx context.Context) error {
	defer t.setState(StateClosed)

	delay := t.cfg.ReconnectMin
	first := true
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !first {
			metrics.TransportReconnects.Inc()
		}
		first = false

		t.setState(StateConnecting)
		conn, err := t.dial(ctx)
		if err != nil {
			logging.Warn().Err(err).Dur("retry_in", delay).Msg("Backend connection failed")
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			delay = min(delay*2, t.cfg.ReconnectMax)
			continue
		}

		delay = t.cfg.ReconnectMin
		t.serve(ctx, conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Info().Dur("retry_in", delay).Msg("Backend connection lost, reconnecting")
		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
	}
}

func (t *WebSocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if t.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	conn, resp, err := t.dialer.DialContext(ctx, t.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close handshake response body")
		}
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// serve runs the read and ping loops for one connection and returns when
// either fails or ctx ends.
func (t *WebSocketTransport) serve(ctx context.Context, conn *websocket.Conn) {
	readTimeout := 2 * t.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()
	t.setState(StateOpen)
	logging.Info().Str("url", t.cfg.URL).Msg("Connected to backend")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.pingLoop(done)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			t.closeConn(websocket.CloseNormalClosure)
		case <-done:
		}
	}()

	t.readLoop(conn)
	close(done)
	t.setState(StateConnecting)
	t.closeConn(websocket.CloseGoingAway)
	wg.Wait()
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("Backend closed the connection")
			} else {
				logging.Debug().Err(err).Msg("Backend read ended")
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			metrics.InboundDecodeErrors.Inc()
			logging.Warn().Err(err).Int("bytes", len(data)).Msg("Dropping malformed inbound message")
			continue
		}
		metrics.InboundMessages.WithLabelValues(string(env.Type)).Inc()
		t.stream.Publish(env)
	}
}

func (t *WebSocketTransport) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.connMu.Lock()
			var err error
			if t.conn != nil {
				err = t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.WriteTimeout))
			}
			t.connMu.Unlock()
			if err != nil {
				logging.Debug().Err(err).Msg("Keep-alive ping failed")
				t.closeConn(websocket.CloseGoingAway)
				return
			}
		}
	}
}

// closeConn sends a close frame and closes the current connection, if any.
func (t *WebSocketTransport) closeConn(code int) {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn == nil {
		return
	}
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
	if err := t.conn.Close(); err != nil {
		logging.Debug().Err(err).Msg("Failed to close backend connection")
	}
	t.conn = nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
