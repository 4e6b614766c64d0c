// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

// Package store holds the local calendar: every known reservation keyed by id.
//
// Each write assigns the entry a new generation from a process-wide monotonic
// counter. Late resolutions compare generations before touching an entry so a
// stale rollback never clobbers a newer optimistic state.
//
// Writes are tagged with an Origin. Observers see the origin of every change
// and can ignore reflow writes, which only move render positions inside a
// slot.
package store

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tomtom215/slotsync/internal/metrics"
	"github.com/tomtom215/slotsync/internal/models"
	"github.com/tomtom215/slotsync/internal/slots"
)

// Sentinel errors.
var (
	ErrMissingID = errors.New("reservation id is required")
	ErrNotFound  = errors.New("reservation not found")
)

// Origin tags who made a write.
type Origin int

const (
	// OriginLocal is an optimistic write made by the coordinator.
	OriginLocal Origin = iota
	// OriginRemote is a write applied from a backend broadcast or snapshot.
	OriginRemote
	// OriginReflow only moves RawStart/RawEnd inside a slot.
	OriginReflow
	// OriginRollback restores a pre-mutation snapshot.
	OriginRollback
)

// String returns the origin name used in logs and UI messages.
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginReflow:
		return "reflow"
	case OriginRollback:
		return "rollback"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// Change describes one store write.
type Change struct {
	Origin   Origin
	Upserted []models.Reservation
	Removed  []string
}

// Observer is notified after every write. OnChange runs on the writer's
// goroutine without store locks held and may be called concurrently.
type Observer interface {
	OnChange(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

// OnChange implements Observer.
func (f ObserverFunc) OnChange(c Change) { f(c) }

type entry struct {
	res models.Reservation
	gen uint64
}

// Store is the thread-safe event store.
type Store struct {
	engine *slots.Engine

	mu      sync.RWMutex
	entries map[string]*entry
	gen     uint64

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

// New creates an empty store that derives slot times with engine.
func New(engine *slots.Engine) *Store {
	return &Store{
		engine:    engine,
		entries:   make(map[string]*entry),
		observers: make(map[int]Observer),
	}
}

// Engine returns the slot engine used by the store.
func (s *Store) Engine() *slots.Engine {
	return s.engine
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(o Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

// Get returns the reservation with id and its generation.
func (s *Store) Get(id string) (models.Reservation, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return models.Reservation{}, 0, false
	}
	return e.res, e.gen, true
}

// FindBySubjectDate returns the reservation subjectID holds on date.
func (s *Store) FindBySubjectDate(subjectID, date string) (models.Reservation, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.res.SubjectID == subjectID && e.res.Date == date {
			return e.res, e.gen, true
		}
	}
	return models.Reservation{}, 0, false
}

// BySubject returns every reservation held by subjectID, ordered by date.
func (s *Store) BySubject(subjectID string) []models.Reservation {
	s.mu.RLock()
	out := make([]models.Reservation, 0, 2)
	for _, e := range s.entries {
		if e.res.SubjectID == subjectID {
			out = append(out, e.res)
		}
	}
	s.mu.RUnlock()
	sortReservations(out)
	return out
}

// All returns a copy of every reservation ordered by (date, slot, start, id).
func (s *Store) All() []models.Reservation {
	s.mu.RLock()
	out := make([]models.Reservation, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.res)
	}
	s.mu.RUnlock()
	sortReservations(out)
	return out
}

// Len returns the number of reservations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Put inserts or replaces r. SlotTime is always recomputed from Date and
// Time; a zero RawStart is anchored at Time. Returns the stored value and
// its new generation.
func (s *Store) Put(r models.Reservation, origin Origin) (models.Reservation, uint64, error) {
	if err := s.derive(&r); err != nil {
		return models.Reservation{}, 0, err
	}

	s.mu.Lock()
	gen := s.writeLocked(r)
	s.mu.Unlock()

	s.notify(Change{Origin: origin, Upserted: []models.Reservation{r}})
	return r, gen, nil
}

// CompareAndPut writes r only if the entry with r.ID still carries
// generation expect. ok is false when the entry moved on or disappeared.
func (s *Store) CompareAndPut(r models.Reservation, expect uint64, origin Origin) (gen uint64, ok bool, err error) {
	if err := s.derive(&r); err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	cur, exists := s.entries[r.ID]
	if !exists || cur.gen != expect {
		s.mu.Unlock()
		return 0, false, nil
	}
	gen = s.writeLocked(r)
	s.mu.Unlock()

	s.notify(Change{Origin: origin, Upserted: []models.Reservation{r}})
	return gen, true, nil
}

// Remove deletes the reservation with id. It reports whether it existed.
func (s *Store) Remove(id string, origin Origin) bool {
	s.mu.Lock()
	_, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
		s.gen++
	}
	n := len(s.entries)
	s.mu.Unlock()

	if ok {
		metrics.StoreReservations.Set(float64(n))
		s.notify(Change{Origin: origin, Removed: []string{id}})
	}
	return ok
}

// Replace swaps the whole content for rs, typically from a snapshot load.
// Entries that fail to derive a slot are skipped and reported in the error.
func (s *Store) Replace(rs []models.Reservation, origin Origin) error {
	derived := make([]models.Reservation, 0, len(rs))
	var errs []error
	for i := range rs {
		r := rs[i]
		if err := s.derive(&r); err != nil {
			errs = append(errs, fmt.Errorf("reservation %s: %w", r.ID, err))
			continue
		}
		derived = append(derived, r)
	}

	s.mu.Lock()
	removed := make([]string, 0, len(s.entries))
	for id := range s.entries {
		removed = append(removed, id)
	}
	s.entries = make(map[string]*entry, len(derived))
	for i := range derived {
		s.writeLocked(derived[i])
	}
	s.mu.Unlock()

	s.notify(Change{Origin: origin, Upserted: derived, Removed: removed})
	return errors.Join(errs...)
}

// Reflow repacks every given slot and writes the packed RawStart/RawEnd back.
// Reflow never changes SlotTime or generations.
func (s *Store) Reflow(keys ...models.SlotKey) error {
	var updated []models.Reservation
	var errs []error

	seen := make(map[models.SlotKey]bool, len(keys))
	for _, key := range keys {
		if key.Date == "" || seen[key] {
			continue
		}
		seen[key] = true

		s.mu.Lock()
		members := make([]models.Reservation, 0, 8)
		for _, e := range s.entries {
			if e.res.Slot() == key && e.res.Packable() {
				members = append(members, e.res)
			}
		}
		packed, err := s.engine.PackSlot(members)
		if err != nil {
			s.mu.Unlock()
			errs = append(errs, fmt.Errorf("reflow %s: %w", key, err))
			continue
		}
		for _, p := range packed {
			e, ok := s.entries[p.Reservation.ID]
			if !ok || (e.res.RawStart.Equal(p.Start) && e.res.RawEnd.Equal(p.End)) {
				continue
			}
			e.res.RawStart = p.Start
			e.res.RawEnd = p.End
			updated = append(updated, e.res)
		}
		s.mu.Unlock()
	}

	if len(updated) > 0 {
		s.notify(Change{Origin: OriginReflow, Upserted: updated})
	}
	return errors.Join(errs...)
}

// derive fills SlotTime and, when unset, the anchor render interval.
func (s *Store) derive(r *models.Reservation) error {
	if r.ID == "" {
		return ErrMissingID
	}
	slot, err := s.engine.NormalizeToSlotBase(r.Date, r.Time)
	if err != nil {
		return fmt.Errorf("reservation %s: %w", r.ID, err)
	}
	r.SlotTime = slot
	if r.RawStart.IsZero() {
		start, err := s.engine.At(r.Date, r.Time)
		if err != nil {
			return err
		}
		r.RawStart = start
		r.RawEnd = start.Add(s.engine.Width(1))
	}
	return nil
}

// writeLocked stores r under a fresh generation. Caller holds s.mu.
func (s *Store) writeLocked(r models.Reservation) uint64 {
	s.gen++
	s.entries[r.ID] = &entry{res: r, gen: s.gen}
	metrics.StoreReservations.Set(float64(len(s.entries)))
	return s.gen
}

func (s *Store) notify(c Change) {
	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.obsMu.RUnlock()

	for _, o := range observers {
		o.OnChange(c)
	}
}

func sortReservations(rs []models.Reservation) {
	slices.SortFunc(rs, func(a, b models.Reservation) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.SlotTime, b.SlotTime),
			a.RawStart.Compare(b.RawStart),
			cmp.Compare(a.ID, b.ID),
		)
	})
}
