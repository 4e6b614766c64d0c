// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

package slots

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/tomtom215/slotsync/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNormalizeToSlotBase(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	tests := []struct {
		clock string
		want  string
	}{
		{"09:00", "09:00"},
		{"09:01", "09:00"},
		{"10:59", "09:00"},
		{"11:00", "11:00"},
		{"12:30", "11:00"},
		{"16:45:30", "15:00"},
		{"08:59", "07:00"},
		{"00:30", "00:00"},
		{"23:59", "23:00"},
	}
	for _, tt := range tests {
		got, err := e.NormalizeToSlotBase("2026-03-14", tt.clock)
		if err != nil {
			t.Errorf("NormalizeToSlotBase(%s) error = %v", tt.clock, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeToSlotBase(%s) = %s, want %s", tt.clock, got, tt.want)
		}
	}
}

func TestNormalizeToSlotBase_Idempotent(t *testing.T) {
	t.Parallel()

	for _, cfg := range []Config{
		DefaultConfig(),
		{Duration: 90 * time.Minute, WindowStart: "08:30", DenseThreshold: 6, DenseWidth: 15 * time.Minute, SparseWidth: 20 * time.Minute, Gap: time.Minute},
		{Duration: 7 * time.Minute, WindowStart: "00:03", DenseThreshold: 6, DenseWidth: 15 * time.Minute, SparseWidth: 20 * time.Minute, Gap: time.Minute},
	} {
		e, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		for m := 0; m < 24*60; m++ {
			clock := fmt.Sprintf("%02d:%02d", m/60, m%60)
			once, err := e.NormalizeToSlotBase("2026-03-14", clock)
			if err != nil {
				t.Fatalf("normalize %s: %v", clock, err)
			}
			twice, err := e.NormalizeToSlotBase("2026-03-14", once)
			if err != nil {
				t.Fatalf("normalize %s: %v", once, err)
			}
			if once != twice {
				t.Fatalf("window %s/%s: normalize(%s)=%s but normalize(%s)=%s",
					cfg.WindowStart, cfg.Duration, clock, once, once, twice)
			}
		}
	}
}

func TestNormalizeToSlotBase_Invalid(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	for _, in := range [][2]string{{"2026-13-01", "09:00"}, {"2026-03-14", "9am"}, {"", "09:00"}} {
		if _, err := e.NormalizeToSlotBase(in[0], in[1]); !errors.Is(err, ErrInvalidTime) {
			t.Errorf("NormalizeToSlotBase(%q, %q) error = %v, want ErrInvalidTime", in[0], in[1], err)
		}
	}
}

func reservation(id, name string, kind models.Kind) models.Reservation {
	return models.Reservation{
		ID: id, SubjectID: "subj-" + id, Date: "2026-03-14", Time: "09:00", SlotTime: "09:00",
		Kind: kind, DisplayName: name,
	}
}

func TestPackSlot_SixEntriesDense(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	names := []string{"Frank", "Alice", "Eve", "Carol", "Dave", "Bob"}
	entries := make([]models.Reservation, len(names))
	for i, n := range names {
		entries[i] = reservation(fmt.Sprint(i), n, models.KindRegular)
	}

	packed, err := e.PackSlot(entries)
	if err != nil {
		t.Fatalf("PackSlot() error = %v", err)
	}
	if len(packed) != 6 {
		t.Fatalf("packed %d entries, want 6", len(packed))
	}

	wantOrder := []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Frank"}
	wantStarts := []string{"09:00", "09:16", "09:32", "09:48", "10:04", "10:20"}
	for i, p := range packed {
		if p.Reservation.DisplayName != wantOrder[i] {
			t.Errorf("position %d = %s, want %s", i, p.Reservation.DisplayName, wantOrder[i])
		}
		if got := p.Start.Format("15:04"); got != wantStarts[i] {
			t.Errorf("%s starts %s, want %s", p.Reservation.DisplayName, got, wantStarts[i])
		}
		if w := p.End.Sub(p.Start); w != 15*time.Minute {
			t.Errorf("%s width %s, want 15m", p.Reservation.DisplayName, w)
		}
	}
}

func TestPackSlot_SparseWidthAndKindOrder(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	entries := []models.Reservation{
		reservation("a", "Zed", models.KindRegular),
		reservation("b", "Amy", models.KindFollowUp),
		reservation("c", "Bea", models.KindRegular),
	}
	packed, err := e.PackSlot(entries)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Bea", "Zed", "Amy"}
	for i, p := range packed {
		if p.Reservation.DisplayName != want[i] {
			t.Errorf("position %d = %s, want %s", i, p.Reservation.DisplayName, want[i])
		}
		if w := p.End.Sub(p.Start); w != 20*time.Minute {
			t.Errorf("width %s, want 20m", w)
		}
	}
	if got := packed[1].Start.Format("15:04"); got != "09:21" {
		t.Errorf("second entry starts %s, want 09:21", got)
	}
}

func TestPackSlot_FiltersUnpackable(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	cancelled := reservation("x", "Cancelled", models.KindRegular)
	cancelled.Cancelled = true
	other := reservation("y", "Elsewhere", models.KindRegular)
	other.SlotTime = "11:00"

	packed, err := e.PackSlot([]models.Reservation{
		reservation("a", "Kept", models.KindRegular),
		reservation("n", "Fixed", models.KindNonMovable),
		cancelled,
		other,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(packed) != 1 || packed[0].Reservation.ID != "a" {
		t.Fatalf("packed = %+v, want only entry a", packed)
	}
}

func TestPackSlot_NonOverlapAndBounds(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	slotStart, _ := e.At("2026-03-14", "09:00")

	for n := 1; n <= 12; n++ {
		entries := make([]models.Reservation, n)
		for i := range entries {
			entries[i] = reservation(fmt.Sprintf("id-%02d", i), fmt.Sprintf("name-%d", n-i), models.Kind(i%2))
		}
		packed, err := e.PackSlot(entries)
		if err != nil {
			t.Fatal(err)
		}
		width := e.Width(n)
		upper := slotStart.Add(time.Duration(n) * (width + time.Minute))
		for i := range packed {
			if packed[i].Start.Before(slotStart) || packed[i].End.After(upper) {
				t.Errorf("n=%d entry %d [%s,%s] outside [%s,%s]", n, i,
					packed[i].Start.Format("15:04"), packed[i].End.Format("15:04"),
					slotStart.Format("15:04"), upper.Format("15:04"))
			}
			for j := i + 1; j < len(packed); j++ {
				if packed[i].Start.Before(packed[j].End) && packed[j].Start.Before(packed[i].End) {
					t.Errorf("n=%d entries %d and %d overlap", n, i, j)
				}
			}
		}
	}
}

func TestPackSlot_Deterministic(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	entries := []models.Reservation{
		reservation("1", "Mia", models.KindRegular),
		reservation("2", "Ann", models.KindFollowUp),
		reservation("3", "Ann", models.KindRegular),
		reservation("4", "Ann", models.KindRegular),
		reservation("5", "Lou", models.KindRegular),
		reservation("6", "Kim", models.KindRegular),
		reservation("7", "Joe", models.KindFollowUp),
	}
	first, err := e.PackSlot(entries)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		shuffled := append([]models.Reservation(nil), entries...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		again, err := e.PackSlot(shuffled)
		if err != nil {
			t.Fatal(err)
		}
		for i := range first {
			if first[i].Reservation.ID != again[i].Reservation.ID || !first[i].Start.Equal(again[i].Start) {
				t.Fatalf("round %d: position %d differs: %s vs %s", round, i, first[i].Reservation.ID, again[i].Reservation.ID)
			}
		}
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	bad := []Config{
		{Duration: 0, WindowStart: "09:00", DenseThreshold: 6, DenseWidth: time.Minute, SparseWidth: time.Minute},
		{Duration: time.Hour, WindowStart: "nine", DenseThreshold: 6, DenseWidth: time.Minute, SparseWidth: time.Minute},
		{Duration: time.Hour, WindowStart: "09:00", DenseThreshold: 0, DenseWidth: time.Minute, SparseWidth: time.Minute},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("config %d: expected error", i)
		}
	}
}
