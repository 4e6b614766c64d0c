// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

// Package blackout answers whether a calendar day is administratively blocked.
//
// Blocked days come from three sources: explicit YYYY-MM-DD dates, recurring
// weekdays, and the events of iCalendar (.ics) files. An event blocks every
// day it touches, so a three-day all-day VEVENT blocks three dates.
package blackout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tomtom215/slotsync/internal/logging"
)

const dateLayout = "2006-01-02"

// maxEventDays caps how many days a single calendar event may block.
const maxEventDays = 366

var (
	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidWeekday is returned for unknown weekday names.
	ErrInvalidWeekday = errors.New("invalid weekday")
)

// Config lists the blackout sources.
type Config struct {
	Dates    []string
	Weekdays []string
	ICSFiles []string

	// Location interprets floating iCalendar times. Nil means UTC.
	Location *time.Location
}

// Calendar is a set of blocked days. It is safe for concurrent use.
type Calendar struct {
	loc *time.Location

	mu       sync.RWMutex
	dates    map[string]struct{}
	weekdays map[time.Weekday]struct{}
}

// New builds a Calendar from cfg, reading every configured .ics file.
func New(cfg Config) (*Calendar, error) {
	c := NewEmpty(cfg.Location)

	for _, d := range cfg.Dates {
		if err := c.AddDate(d); err != nil {
			return nil, err
		}
	}
	for _, w := range cfg.Weekdays {
		if err := c.AddWeekday(w); err != nil {
			return nil, err
		}
	}
	for _, path := range cfg.ICSFiles {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewEmpty returns a Calendar that blocks nothing.
func NewEmpty(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{
		loc:      loc,
		dates:    make(map[string]struct{}),
		weekdays: make(map[time.Weekday]struct{}),
	}
}

// IsBlockedDate reports whether date (YYYY-MM-DD) is blocked. Unparseable
// dates are never blocked.
func (c *Calendar) IsBlockedDate(date string) bool {
	day, err := time.ParseInLocation(dateLayout, date, c.loc)
	if err != nil {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.dates[day.Format(dateLayout)]; ok {
		return true
	}
	_, ok := c.weekdays[day.Weekday()]
	return ok
}

// AddDate blocks a single YYYY-MM-DD day.
func (c *Calendar) AddDate(date string) error {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), c.loc)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidDate, date, err)
	}
	c.mu.Lock()
	c.dates[day.Format(dateLayout)] = struct{}{}
	c.mu.Unlock()
	return nil
}

// AddWeekday blocks every occurrence of an English weekday name.
func (c *Calendar) AddWeekday(name string) error {
	wd, err := parseWeekday(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.weekdays[wd] = struct{}{}
	c.mu.Unlock()
	return nil
}

// LoadFile blocks the days covered by the events of an .ics file.
func (c *Calendar) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open blackout calendar: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Debug().Err(cerr).Str("path", path).Msg("Failed to close blackout calendar")
		}
	}()

	n, err := c.LoadICS(f)
	if err != nil {
		return fmt.Errorf("load blackout calendar %s: %w", path, err)
	}
	logging.Info().Str("path", path).Int("days", n).Msg("Loaded blackout calendar")
	return nil
}

// LoadICS reads every VCALENDAR in r and blocks the days its events cover.
// It returns the number of days added.
func (c *Calendar) LoadICS(r io.Reader) (int, error) {
	dec := ical.NewDecoder(r)
	added := 0
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return added, nil
		}
		if err != nil {
			return added, fmt.Errorf("decode calendar: %w", err)
		}

		for _, ev := range cal.Events() {
			days, err := c.eventDays(&ev)
			if err != nil {
				uid, _ := ev.Props.Text(ical.PropUID)
				logging.Warn().Err(err).Str("uid", uid).Msg("Skipping unreadable blackout event")
				continue
			}
			c.mu.Lock()
			for _, d := range days {
				if _, ok := c.dates[d]; !ok {
					c.dates[d] = struct{}{}
					added++
				}
			}
			c.mu.Unlock()
		}
	}
}

// eventDays lists every day touched by ev. DTEND is exclusive.
func (c *Calendar) eventDays(ev *ical.Event) ([]string, error) {
	start, err := ev.DateTimeStart(c.loc)
	if err != nil {
		return nil, fmt.Errorf("event start: %w", err)
	}
	if start.IsZero() {
		return nil, errors.New("event has no start")
	}
	end, err := ev.DateTimeEnd(c.loc)
	if err != nil {
		return nil, fmt.Errorf("event end: %w", err)
	}

	first := dayOf(start.In(c.loc))
	last := first
	if end.After(start) {
		last = dayOf(end.In(c.loc).Add(-time.Nanosecond))
	}

	var days []string
	for d := first; !d.After(last) && len(days) < maxEventDays; d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dateLayout))
	}
	return days, nil
}

// Dates returns the explicitly blocked days in ascending order.
func (c *Calendar) Dates() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.dates))
	for d := range c.dates {
		out = append(out, d)
	}
	c.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Weekdays returns the blocked weekdays from Sunday to Saturday.
func (c *Calendar) Weekdays() []time.Weekday {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []time.Weekday
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if _, ok := c.weekdays[wd]; ok {
			out = append(out, wd)
		}
	}
	return out
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if n == full || n == full[:3] {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
}
