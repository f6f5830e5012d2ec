// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package autopilot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/flightlog-foundation/flightlog/lib/codec"
)

func boolPtr(b bool) *bool { return &b }

func TestPayloadDefaults(t *testing.T) {
	at := time.Date(2026, 8, 26, 23, 45, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload Payload
		want    Event
	}{
		{
			name:    "empty payload gets all defaults",
			payload: Payload{},
			want: Event{
				Autopilot:  "unknown",
				Task:       "unknown",
				Capability: "unknown",
				Level:      LevelInfo,
				OK:         true,
			},
		},
		{
			name:    "failure derives error level",
			payload: Payload{OK: boolPtr(false), Task: "dns-sync"},
			want: Event{
				Autopilot:  "unknown",
				Task:       "dns-sync",
				Capability: "unknown",
				Level:      LevelError,
				OK:         false,
			},
		},
		{
			name:    "explicit level wins over derivation",
			payload: Payload{OK: boolPtr(false), Level: LevelWarn},
			want: Event{
				Autopilot:  "unknown",
				Task:       "unknown",
				Capability: "unknown",
				Level:      LevelWarn,
				OK:         false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.payload.Event("feedbeef", at)

			if got.ID != "feedbeef" {
				t.Errorf("ID = %q", got.ID)
			}
			if !got.Timestamp.Equal(at) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, at)
			}
			if got.Day != "2026-08-26" {
				t.Errorf("Day = %q, want 2026-08-26", got.Day)
			}
			if got.Autopilot != tt.want.Autopilot || got.Task != tt.want.Task ||
				got.Capability != tt.want.Capability {
				t.Errorf("identity fields = %q/%q/%q, want %q/%q/%q",
					got.Autopilot, got.Task, got.Capability,
					tt.want.Autopilot, tt.want.Task, tt.want.Capability)
			}
			if got.Level != tt.want.Level {
				t.Errorf("Level = %q, want %q", got.Level, tt.want.Level)
			}
			if got.OK != tt.want.OK {
				t.Errorf("OK = %v, want %v", got.OK, tt.want.OK)
			}
		})
	}
}

func TestDayDerivedFromUTC(t *testing.T) {
	// 23:30 in UTC-5 is 04:30 the next day in UTC; the partition key
	// must follow UTC.
	local := time.Date(2026, 8, 26, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	event := Payload{}.Event("id", local)
	if event.Day != "2026-08-27" {
		t.Errorf("Day = %q, want 2026-08-27 (UTC date)", event.Day)
	}
}

func TestPayloadValidate(t *testing.T) {
	if err := (Payload{Level: "catastrophic"}).Validate(); err == nil {
		t.Error("invalid level accepted")
	}
	if err := (Payload{Level: LevelWarn}).Validate(); err != nil {
		t.Errorf("valid level rejected: %v", err)
	}
}

func TestEventCBORRoundTrip(t *testing.T) {
	in := Payload{
		Autopilot:  "checkout-bot",
		Task:       "reconcile",
		Capability: "payments",
		OK:         boolPtr(false),
		Meta:       Meta{"order": String("ord_123"), "retries": Number(2)},
	}.Event("0018deadbeef0018deadbeef", time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC))

	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Event
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if out.ID != in.ID || out.Day != in.Day || out.Level != in.Level || out.OK != in.OK {
		t.Errorf("round-trip mismatch: got %+v, want %+v", out, in)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
	if out.Meta["order"].Any() != "ord_123" {
		t.Errorf("meta order = %v", out.Meta["order"].Any())
	}
	if out.Meta["retries"].Any() != float64(2) {
		t.Errorf("meta retries = %v", out.Meta["retries"].Any())
	}
}

func TestCompactCarriesNoMeta(t *testing.T) {
	event := Payload{
		Autopilot: "lms-sync",
		Meta:      Meta{"student_email": String("a@example.com")},
	}.Event("id", time.Now())

	data, err := json.Marshal(Compact(event))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if _, leaked := fields["meta"]; leaked {
		t.Error("compact event serialized a meta field")
	}
	for _, value := range fields {
		if s, ok := value.(string); ok && s == "a@example.com" {
			t.Error("meta content leaked into compact event")
		}
	}
}

func TestRangeLabel(t *testing.T) {
	if got := RangeLabel("2026-08-26", "2026-08-26"); got != "2026-08-26" {
		t.Errorf("same-day label = %q", got)
	}
	if got := RangeLabel("2026-08-01", "2026-08-26"); got != "2026-08-01..2026-08-26" {
		t.Errorf("range label = %q", got)
	}
}

func TestFailRate(t *testing.T) {
	tests := []struct {
		ok, fail int
		want     float64
	}{
		{0, 0, 0},
		{2, 1, 33.3},
		{1, 2, 66.7},
		{0, 5, 100},
		{5, 0, 0},
		{997, 3, 0.3},
	}
	for _, tt := range tests {
		if got := FailRate(tt.ok, tt.fail); got != tt.want {
			t.Errorf("FailRate(%d, %d) = %v, want %v", tt.ok, tt.fail, got, tt.want)
		}
	}
}
