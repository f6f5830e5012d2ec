// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron parses 5-field cron expressions and computes the next
// matching time. The nightly summarization schedule is configured as a
// cron expression; all evaluation is in UTC.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed cron expression. Use Parse to create one, then
// Next to compute the next firing time.
type Schedule struct {
	minute   fieldSet
	hour     fieldSet
	monthDay fieldSet
	month    fieldSet
	weekDay  fieldSet
}

// fieldSet is a compact set of integers 0-63 backed by a uint64.
type fieldSet uint64

func (s fieldSet) has(v int) bool { return s&(1<<uint(v)) != 0 }
func (s *fieldSet) add(v int)     { *s |= 1 << uint(v) }

// Parse parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func Parse(expression string) (Schedule, error) {
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return Schedule{}, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	var schedule Schedule
	for i, spec := range []struct {
		name     string
		min, max int
		dest     *fieldSet
	}{
		{"minute", 0, 59, &schedule.minute},
		{"hour", 0, 23, &schedule.hour},
		{"day-of-month", 1, 31, &schedule.monthDay},
		{"month", 1, 12, &schedule.month},
		{"day-of-week", 0, 6, &schedule.weekDay},
	} {
		set, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return Schedule{}, fmt.Errorf("cron: %s field: %w", spec.name, err)
		}
		*spec.dest = set
	}
	return schedule, nil
}

// Next returns the earliest time strictly after t that matches the
// schedule, in UTC. Returns an error if no match exists within 4
// years (impossible schedules like Feb 31).
func (s Schedule) Next(t time.Time) (time.Time, error) {
	t = t.UTC().Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		if !s.month.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
			continue
		}
		// Wildcard fields parse to all-bits-set, so checking both
		// day constraints with AND gives standard behavior for the
		// common case of at most one restricted day field.
		if !s.monthDay.has(t.Day()) || !s.weekDay.has(int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
			continue
		}
		if !s.hour.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, time.UTC)
			continue
		}
		if !s.minute.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cron: no matching time within 4 years of %s", t.Format(time.RFC3339))
}

// parseField parses one cron field: comma-separated terms, each a
// wildcard, single value, range, or stepped range/wildcard.
func parseField(field string, min, max int) (fieldSet, error) {
	var result fieldSet
	for _, term := range strings.Split(field, ",") {
		set, err := parseTerm(term, min, max)
		if err != nil {
			return 0, err
		}
		result |= set
	}
	if result == 0 {
		return 0, fmt.Errorf("field %q produces empty set", field)
	}
	return result, nil
}

// parseTerm parses a single term: *, */N, V, V-V, or V-V/N.
func parseTerm(term string, min, max int) (fieldSet, error) {
	parts := strings.SplitN(term, "/", 2)
	step := 1
	if len(parts) == 2 {
		parsed, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("invalid step %q: %w", parts[1], err)
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("step must be positive, got %d", parsed)
		}
		step = parsed
	}

	var lo, hi int
	switch expr := parts[0]; {
	case expr == "*":
		lo, hi = min, max
	case strings.ContainsRune(expr, '-'):
		dash := strings.IndexByte(expr, '-')
		var err error
		if lo, err = strconv.Atoi(expr[:dash]); err != nil {
			return 0, fmt.Errorf("invalid range start %q: %w", expr[:dash], err)
		}
		if hi, err = strconv.Atoi(expr[dash+1:]); err != nil {
			return 0, fmt.Errorf("invalid range end %q: %w", expr[dash+1:], err)
		}
		if lo > hi {
			return 0, fmt.Errorf("range start %d > end %d", lo, hi)
		}
	default:
		value, err := strconv.Atoi(expr)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q: %w", expr, err)
		}
		lo, hi = value, value
	}

	if lo < min || hi > max {
		return 0, fmt.Errorf("value out of range [%d-%d]: got %d-%d", min, max, lo, hi)
	}

	var result fieldSet
	for v := lo; v <= hi; v += step {
		result.add(v)
	}
	return result, nil
}
