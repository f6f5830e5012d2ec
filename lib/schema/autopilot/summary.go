// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package autopilot

import "time"

// Counts tallies events by outcome. Total is always OK + Fail.
type Counts struct {
	Total int `json:"total" cbor:"total"`
	OK    int `json:"ok" cbor:"ok"`
	Fail  int `json:"fail" cbor:"fail"`
}

// TaskCount is one entry of a summary's per-task breakdown.
type TaskCount struct {
	Task  string `json:"task" cbor:"task"`
	Count int    `json:"count" cbor:"count"`
}

// AutopilotCount is one entry of a summary's per-autopilot breakdown.
type AutopilotCount struct {
	Autopilot string `json:"autopilot" cbor:"autopilot"`
	Count     int    `json:"count" cbor:"count"`
}

// Summary is the distilled narrative for one day or date range. It is
// keyed by Label and overwritten wholesale on recomputation; apart
// from Timestamp, recomputing over unchanged records yields the same
// summary. Counts and the breakdowns are computed locally and never
// depend on the text-generation provider; Highlights, NextActions,
// RiskScore, and SummaryText come from the provider or, on failure,
// from the fallback.
type Summary struct {
	Timestamp   time.Time        `json:"timestamp" cbor:"timestamp"`
	Label       string           `json:"label" cbor:"label"`
	Counts      Counts           `json:"counts" cbor:"counts"`
	ByTask      []TaskCount      `json:"byTask" cbor:"by_task"`
	ByAutopilot []AutopilotCount `json:"byAutopilot" cbor:"by_autopilot"`
	Highlights  []string         `json:"highlights" cbor:"highlights"`
	NextActions []string         `json:"next_actions" cbor:"next_actions"`
	RiskScore   int              `json:"risk_score" cbor:"risk_score"`
	SummaryText string           `json:"summary_text" cbor:"summary_text"`
}

// RangeLabel returns the summary label for a date range: the single
// date when from and to coincide, "from..to" otherwise.
func RangeLabel(from, to string) string {
	if from == to {
		return from
	}
	return from + ".." + to
}
