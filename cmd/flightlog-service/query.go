// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"sort"
	"time"

	"github.com/flightlog-foundation/flightlog/lib/schema/autopilot"
)

const (
	// queryBatchSize is the key-chunk size for record fetches on the
	// query path.
	queryBatchSize = 20

	// maxQueryResults caps a single list response.
	maxQueryResults = 1000
)

// queryResponse is the list endpoint's body. Events is never null.
type queryResponse struct {
	Events []autopilot.Event `json:"events"`
	Count  int               `json:"count"`
}

// handleQuery lists events over an inclusive UTC day range, newest
// first, optionally filtered by capability and task. Both range
// bounds default to today.
func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	today := autopilot.DayOf(s.clock.Now())

	from := query.Get("from")
	if from == "" {
		from = today
	}
	to := query.Get("to")
	if to == "" {
		to = today
	}

	fromDay, err := autopilot.ParseDay(from)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid from date: %v", err)
		return
	}
	toDay, err := autopilot.ParseDay(to)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid to date: %v", err)
		return
	}
	if fromDay.After(toDay) {
		s.sendError(w, http.StatusBadRequest, "from %s is after to %s", from, to)
		return
	}

	capability := query.Get("capability")
	task := query.Get("task")

	events := make([]autopilot.Event, 0)
	for day := fromDay; !day.After(toDay); day = day.AddDate(0, 0, 1) {
		dayEvents, err := s.collectDay(r.Context(), day.Format(autopilot.DayFormat), queryBatchSize)
		if err != nil {
			s.logger.Error("collecting day", "day", day.Format(autopilot.DayFormat), "error", err)
			s.sendError(w, http.StatusInternalServerError, "reading events")
			return
		}
		for _, event := range dayEvents {
			if capability != "" && event.Capability != capability {
				continue
			}
			if task != "" && event.Task != task {
				continue
			}
			events = append(events, event)
		}
	}

	sortEventsNewestFirst(events)
	if len(events) > maxQueryResults {
		events = events[:maxQueryResults]
	}

	s.writeJSON(w, queryResponse{Events: events, Count: len(events)})
}

// sortEventsNewestFirst orders events descending by timestamp, with
// the id as a stable tie-break for events sharing a timestamp.
func sortEventsNewestFirst(events []autopilot.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.After(events[j].Timestamp)
		}
		return events[i].ID > events[j].ID
	})
}

// dayRange returns the UTC days from from through to inclusive.
func dayRange(from, to time.Time) []string {
	var days []string
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		days = append(days, day.Format(autopilot.DayFormat))
	}
	return days
}
