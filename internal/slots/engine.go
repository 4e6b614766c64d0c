// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package slots

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/slotsync/internal/models"
)

const clockLayout = "15:04"

// ErrInvalidTime is returned for unparsable dates or clock times.
var ErrInvalidTime = errors.New("invalid date or time")

// Config holds slot grid and packing parameters.
type Config struct {
	Duration       time.Duration
	WindowStart    string
	DenseThreshold int
	DenseWidth     time.Duration
	SparseWidth    time.Duration
	Gap            time.Duration
	Location       *time.Location
}

// DefaultConfig returns the stock two-hour grid starting at 09:00.
func DefaultConfig() Config {
	return Config{
		Duration:       2 * time.Hour,
		WindowStart:    "09:00",
		DenseThreshold: 6,
		DenseWidth:     15 * time.Minute,
		SparseWidth:    20 * time.Minute,
		Gap:            1 * time.Minute,
		Location:       time.UTC,
	}
}

// Engine normalizes times to slots and packs slots. It is immutable and safe
// for concurrent use.
type Engine struct {
	cfg         Config
	windowStart int // minutes after midnight
	duration    int // minutes
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Duration < time.Minute || cfg.Duration%time.Minute != 0 {
		return nil, fmt.Errorf("slot duration must be a whole number of minutes, got %s", cfg.Duration)
	}
	start, err := parseClock(cfg.WindowStart)
	if err != nil {
		return nil, fmt.Errorf("window start: %w", err)
	}
	if cfg.DenseThreshold < 1 || cfg.DenseWidth <= 0 || cfg.SparseWidth <= 0 || cfg.Gap < 0 {
		return nil, fmt.Errorf("invalid packing parameters: threshold=%d dense=%s sparse=%s gap=%s",
			cfg.DenseThreshold, cfg.DenseWidth, cfg.SparseWidth, cfg.Gap)
	}
	return &Engine{
		cfg:         cfg,
		windowStart: start,
		duration:    int(cfg.Duration / time.Minute),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// NormalizeToSlotBase returns the HH:MM start of the slot containing clock on
// date. Normalizing an already normalized time returns it unchanged. Times
// before the first full slot of the day clamp to 00:00.
func (e *Engine) NormalizeToSlotBase(date, clock string) (string, error) {
	if _, err := time.ParseInLocation(time.DateOnly, date, e.cfg.Location); err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidTime, date)
	}
	minutes, err := parseClock(clock)
	if err != nil {
		return "", err
	}

	offset := minutes - e.windowStart
	index := floorDiv(offset, e.duration)
	base := e.windowStart + index*e.duration
	if base < 0 {
		base = 0
	}
	return formatClock(base), nil
}

// At returns the instant for clock on date in the engine's location.
func (e *Engine) At(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly+" "+clockLayout, date+" "+trimSeconds(clock), e.cfg.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %s", ErrInvalidTime, date, clock)
	}
	return t, nil
}

// Positioned is a reservation with its packed render interval.
type Positioned struct {
	Reservation models.Reservation
	Index       int
	Start       time.Time
	End         time.Time
}

// PackSlot lays out the packable reservations of one slot. The slot is taken
// from the first packable entry; entries from other slots, cancelled entries
// and non-movable entries are left out. The output order is (kind, display
// name, id) regardless of input order.
func (e *Engine) PackSlot(entries []models.Reservation) ([]Positioned, error) {
	var slot models.SlotKey
	members := make([]models.Reservation, 0, len(entries))
	for i := range entries {
		r := entries[i]
		if !r.Packable() {
			continue
		}
		if len(members) == 0 {
			slot = r.Slot()
		} else if r.Slot() != slot {
			continue
		}
		members = append(members, r)
	}
	if len(members) == 0 {
		return nil, nil
	}

	slotStart, err := e.At(slot.Date, slot.SlotTime)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(members, func(a, b models.Reservation) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			strings.Compare(a.DisplayName, b.DisplayName),
			strings.Compare(a.ID, b.ID),
		)
	})

	width := e.Width(len(members))
	step := width + e.cfg.Gap
	out := make([]Positioned, len(members))
	for i, r := range members {
		start := slotStart.Add(time.Duration(i) * step)
		out[i] = Positioned{
			Reservation: r,
			Index:       i,
			Start:       start,
			End:         start.Add(width),
		}
	}
	return out, nil
}

// Width returns the sub-slot width used for a slot holding n entries.
func (e *Engine) Width(n int) time.Duration {
	if n >= e.cfg.DenseThreshold {
		return e.cfg.DenseWidth
	}
	return e.cfg.SparseWidth
}

func parseClock(clock string) (int, error) {
	t, err := time.Parse(clockLayout, trimSeconds(clock))
	if err != nil {
		return 0, fmt.Errorf("%w: clock %q", ErrInvalidTime, clock)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// trimSeconds accepts HH:MM:SS by dropping the seconds.
func trimSeconds(clock string) string {
	if len(clock) == len("15:04:05") && clock[5] == ':' {
		return clock[:5]
	}
	return clock
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
