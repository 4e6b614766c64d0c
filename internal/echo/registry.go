// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

// Package echo recognizes the backend's reflection of our own writes.
//
// Before the coordinator sends a mutation it marks a fingerprint describing
// the broadcast the backend is expected to emit. When that broadcast arrives
// the inbound handler still applies it to the event store, but it skips the
// user-facing notification because the change originated here.
//
// Fingerprints expire on their own after a short TTL and are swept by a
// janitor, so the set never grows without bound.
package echo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
)

const (
	opModify = "modify"
	opCancel = "cancel"

	// anySlot matches every slot on the day. Approximate moves are snapped by
	// the backend, so the resulting slot is unknown when the mark is set.
	anySlot = "*"
)

// Registry is a thread-safe set of fingerprints with per-entry expiry.
type Registry struct {
	mu      sync.Mutex
	entries map[string]time.Time
	sweep   time.Duration
}

// NewRegistry creates an empty registry. sweep is the janitor interval used by Run.
func NewRegistry(sweep time.Duration) *Registry {
	if sweep <= 0 {
		sweep = time.Second
	}
	return &Registry{
		entries: make(map[string]time.Time),
		sweep:   sweep,
	}
}

// Mark records key for ttl. Marking an existing key extends its expiry.
func (r *Registry) Mark(key string, ttl time.Duration) {
	r.mu.Lock()
	r.entries[key] = time.Now().Add(ttl)
	n := len(r.entries)
	r.mu.Unlock()
	metrics.EchoFingerprints.Set(float64(n))
}

// IsMarked reports whether key is marked and not yet expired. An expired
// entry found here is removed immediately.
func (r *Registry) IsMarked(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	expires, ok := r.entries[key]
	if !ok {
		return false
	}
	if !time.Now().Before(expires) {
		delete(r.entries, key)
		return false
	}
	return true
}

// IsMarkedAny reports whether any of keys is marked.
func (r *Registry) IsMarkedAny(keys ...string) bool {
	for _, k := range keys {
		if r.IsMarked(k) {
			return true
		}
	}
	return false
}

// Unmark removes key.
func (r *Registry) Unmark(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	n := len(r.entries)
	r.mu.Unlock()
	metrics.EchoFingerprints.Set(float64(n))
}

// Len returns the number of entries, including expired ones not yet swept.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes expired entries and returns how many were removed.
func (r *Registry) Sweep() int {
	now := time.Now()
	r.mu.Lock()
	removed := 0
	for k, expires := range r.entries {
		if !now.Before(expires) {
			delete(r.entries, k)
			removed++
		}
	}
	n := len(r.entries)
	r.mu.Unlock()
	metrics.EchoFingerprints.Set(float64(n))
	return removed
}

// Run sweeps expired entries until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// ModifyKey fingerprints a modify of subjectID onto (date, slotTime).
// Approximate moves match any slot on the date.
func ModifyKey(subjectID, date, slotTime string, approximate bool) string {
	if approximate {
		slotTime = anySlot
	}
	return join(opModify, subjectID, date, slotTime)
}

// CancelKey fingerprints a cancel of subjectID's reservation on date.
func CancelKey(subjectID, date string) string {
	return join(opCancel, subjectID, date, "")
}

// BroadcastKeys returns the fingerprints an inbound broadcast may match.
// slotTime must already be normalized to its slot base.
func BroadcastKeys(typ models.MessageType, subjectID, date, slotTime string) []string {
	if typ == models.TypeReservationCancelled {
		return []string{CancelKey(subjectID, date)}
	}
	return []string{
		ModifyKey(subjectID, date, slotTime, false),
		ModifyKey(subjectID, date, "", true),
	}
}

func join(parts ...string) string {
	return strings.Join(parts, "|")
}
