// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package autopilot defines the wire and storage types for autopilot
// outcome events: the event record itself, the bounded meta bag, the
// persisted summary, and the rolling-statistics shapes. Events are
// append-only; once written a record is never mutated.
package autopilot

import (
	"fmt"
	"time"
)

// DayFormat is the layout of a day partition key: the UTC calendar
// date of the event's timestamp.
const DayFormat = "2006-01-02"

// DayOf returns the day partition key for a timestamp.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// ParseDay parses a day partition key back into UTC midnight of that
// date.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayFormat, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("autopilot: bad day %q: %w", day, err)
	}
	return t.UTC(), nil
}

// Level classifies an event's severity.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Valid reports whether l is one of the three defined levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// Event is one outcome report from an autopilot. ID, Timestamp, and
// Day are server-assigned at ingest; Day is always the UTC date of
// Timestamp and serves purely as the partition key.
type Event struct {
	ID         string    `json:"id" cbor:"id"`
	Timestamp  time.Time `json:"timestamp" cbor:"timestamp"`
	Day        string    `json:"day" cbor:"day"`
	Autopilot  string    `json:"autopilot" cbor:"autopilot"`
	Task       string    `json:"task" cbor:"task"`
	Capability string    `json:"capability" cbor:"capability"`
	Level      Level     `json:"level" cbor:"level"`
	OK         bool      `json:"ok" cbor:"ok"`
	Meta       Meta      `json:"meta,omitempty" cbor:"meta,omitempty"`
}

// Payload is the producer-supplied portion of an event. Every field
// is optional: absent strings default to "unknown", an absent ok
// defaults to true, and an absent level is derived from ok.
type Payload struct {
	Autopilot  string `json:"autopilot"`
	Task       string `json:"task"`
	Capability string `json:"capability"`
	Level      Level  `json:"level"`
	OK         *bool  `json:"ok"`
	Meta       Meta   `json:"meta"`
}

// Validate rejects structurally invalid payloads before any write: an
// unknown level or an out-of-bounds meta bag.
func (p Payload) Validate() error {
	if p.Level != "" && !p.Level.Valid() {
		return fmt.Errorf("autopilot: invalid level %q", p.Level)
	}
	if err := p.Meta.Validate(); err != nil {
		return err
	}
	return nil
}

// Event materializes the payload into a full record with the
// server-assigned id and timestamp, applying the defaulting rules.
func (p Payload) Event(id string, at time.Time) Event {
	at = at.UTC()

	ok := true
	if p.OK != nil {
		ok = *p.OK
	}

	level := p.Level
	if level == "" {
		if ok {
			level = LevelInfo
		} else {
			level = LevelError
		}
	}

	return Event{
		ID:         id,
		Timestamp:  at,
		Day:        DayOf(at),
		Autopilot:  defaultUnknown(p.Autopilot),
		Task:       defaultUnknown(p.Task),
		Capability: defaultUnknown(p.Capability),
		Level:      level,
		OK:         ok,
		Meta:       p.Meta,
	}
}

func defaultUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// CompactEvent is the privacy-safe projection forwarded to the
// text-generation provider. It is a distinct type with no Meta field,
// so the stripping step cannot leak meta content by construction.
type CompactEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Autopilot  string    `json:"autopilot"`
	Task       string    `json:"task"`
	Capability string    `json:"capability"`
	OK         bool      `json:"ok"`
	Level      Level     `json:"level"`
}

// Compact strips an event down to the provider-visible fields.
func Compact(e Event) CompactEvent {
	return CompactEvent{
		Timestamp:  e.Timestamp,
		Autopilot:  e.Autopilot,
		Task:       e.Task,
		Capability: e.Capability,
		OK:         e.OK,
		Level:      e.Level,
	}
}
