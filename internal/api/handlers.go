// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package api

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/slotsync/internal/channel"
	"github.com/tomtom215/slotsync/internal/coordinator"
	"github.com/tomtom215/slotsync/internal/logging"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/uihub"
)

// Mutator issues coordinated mutations. *coordinator.Coordinator satisfies it.
type Mutator interface {
	Modify(ctx context.Context, subjectID string, target coordinator.Target) models.Result
	Cancel(ctx context.Context, subjectID, date string) models.Result
	Pending() int
}

// EventSource reads the event store. *store.Store satisfies it.
type EventSource interface {
	All() []models.Reservation
	BySubject(subjectID string) []models.Reservation
	Len() int
}

// ChannelStatus reports the outbound channel's health. *channel.Channel
// satisfies it.
type ChannelStatus interface {
	State() channel.State
	QueueDepth() int
}

// Deps are the collaborators the handlers serve. Hub may be nil, which
// disables /ws.
type Deps struct {
	Events         EventSource
	Mutator        Mutator
	Channel        ChannelStatus
	Hub            *uihub.Hub
	AllowedOrigins []string
	Version        string
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, WebSocket upgrade
//   - handlers_health.go: health endpoint
//   - handlers_reservations.go: event listing and mutations
type Handler struct {
	events    EventSource
	mutator   Mutator
	channel   ChannelStatus
	hub       *uihub.Hub
	origins   []string
	version   string
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		events:    deps.Events,
		mutator:   deps.Mutator,
		channel:   deps.Channel,
		hub:       deps.Hub,
		origins:   deps.AllowedOrigins,
		version:   version,
		startTime: time.Now(),
	}
}

// WebSocket upgrades the request and attaches it to the UI hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Live updates are disabled")
		return
	}
	h.hub.ServeWS(h.getUpgrader(), w, r)
}

// getUpgrader creates a WebSocket upgrader with origin checking.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return uihub.Upgrader(h.checkWebSocketOrigin)
}

// checkWebSocketOrigin validates WebSocket connection origins. Browsers always
// send Origin, so a missing header is rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	if slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin) {
		return true
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and bounds the length of
// client-supplied values before logging.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
