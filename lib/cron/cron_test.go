// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package cron

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, expression string) Schedule {
	t.Helper()
	schedule, err := Parse(expression)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expression, err)
	}
	return schedule
}

func TestNext(t *testing.T) {
	tests := []struct {
		expression string
		from       string
		want       string
	}{
		// Nightly summarization default: 00:10 UTC every day.
		{"10 0 * * *", "2026-08-26T14:30:00Z", "2026-08-27T00:10:00Z"},
		{"10 0 * * *", "2026-08-27T00:09:59Z", "2026-08-27T00:10:00Z"},
		// Strictly-after semantics: an exact match moves to the next day.
		{"10 0 * * *", "2026-08-27T00:10:00Z", "2026-08-28T00:10:00Z"},
		// Every 15 minutes.
		{"*/15 * * * *", "2026-08-26T14:31:00Z", "2026-08-26T14:45:00Z"},
		// Hour range.
		{"0 9-17 * * *", "2026-08-26T18:30:00Z", "2026-08-27T09:00:00Z"},
		// Specific weekday (Monday).
		{"0 8 * * 1", "2026-08-26T00:00:00Z", "2026-08-31T08:00:00Z"},
		// Month rollover.
		{"0 0 1 * *", "2026-08-26T00:00:00Z", "2026-09-01T00:00:00Z"},
		// Comma lists.
		{"0,30 12 * * *", "2026-08-26T12:01:00Z", "2026-08-26T12:30:00Z"},
	}

	for _, tt := range tests {
		schedule := mustParse(t, tt.expression)
		from, err := time.Parse(time.RFC3339, tt.from)
		if err != nil {
			t.Fatal(err)
		}
		got, err := schedule.Next(from)
		if err != nil {
			t.Errorf("Next(%q from %s): %v", tt.expression, tt.from, err)
			continue
		}
		if got.Format(time.RFC3339) != tt.want {
			t.Errorf("Next(%q from %s) = %s, want %s",
				tt.expression, tt.from, got.Format(time.RFC3339), tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, expression := range []string{
		"",
		"* * * *",          // too few fields
		"* * * * * *",      // too many fields
		"60 * * * *",       // minute out of range
		"* 24 * * *",       // hour out of range
		"* * 0 * *",        // day-of-month below minimum
		"* * * 13 *",       // month out of range
		"* * * * 7",        // day-of-week out of range
		"*/0 * * * *",      // zero step
		"5-2 * * * *",      // inverted range
		"banana * * * *",   // not a number
	} {
		if _, err := Parse(expression); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", expression)
		}
	}
}

func TestImpossibleSchedule(t *testing.T) {
	schedule := mustParse(t, "0 0 31 2 *") // February 31st
	_, err := schedule.Next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Error("Next for Feb 31 succeeded, want error")
	}
}
