// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/flightlog-foundation/flightlog/lib/schema/autopilot"
)

const (
	// statsBatchSize is the key-chunk size for record fetches on the
	// stats path.
	statsBatchSize = 25

	// defaultStatsDays is the rolling window when the request names
	// no window.
	defaultStatsDays = 30

	// maxStatsDays bounds the rolling window.
	maxStatsDays = 365

	// maxGroupEntries caps the per-task and per-autopilot breakdowns.
	maxGroupEntries = 20
)

// statsResponse is the stats endpoint's body. Series holds one bucket
// per day in the window, ascending, zero days included.
type statsResponse struct {
	Days        int                   `json:"days"`
	Series      []autopilot.DayBucket `json:"series"`
	ByTask      []autopilot.GroupStat `json:"byTask"`
	ByAutopilot []autopilot.GroupStat `json:"byAutopilot"`
	Totals      autopilot.Counts      `json:"totals"`
}

type groupTally struct {
	ok   int
	fail int
}

// handleStats aggregates outcomes over a rolling window of UTC days
// ending today.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	days := defaultStatsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid days parameter: %v", err)
			return
		}
		days = parsed
	}
	if days < 1 {
		days = 1
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}

	today := s.clock.Now().UTC()
	series := make([]autopilot.DayBucket, 0, days)
	byTask := make(map[string]*groupTally)
	byAutopilot := make(map[string]*groupTally)
	var totals autopilot.Counts

	for offset := days - 1; offset >= 0; offset-- {
		day := autopilot.DayOf(today.AddDate(0, 0, -offset))

		events, err := s.collectDay(r.Context(), day, statsBatchSize)
		if err != nil {
			s.logger.Error("collecting day", "day", day, "error", err)
			s.sendError(w, http.StatusInternalServerError, "reading events")
			return
		}

		bucket := autopilot.DayBucket{Day: day}
		for _, event := range events {
			if event.OK {
				bucket.OK++
				tallyGroup(byTask, event.Task).ok++
				tallyGroup(byAutopilot, event.Autopilot).ok++
			} else {
				bucket.Fail++
				tallyGroup(byTask, event.Task).fail++
				tallyGroup(byAutopilot, event.Autopilot).fail++
			}
		}
		bucket.Total = bucket.OK + bucket.Fail
		bucket.FailRate = autopilot.FailRate(bucket.OK, bucket.Fail)
		series = append(series, bucket)

		totals.OK += bucket.OK
		totals.Fail += bucket.Fail
	}
	totals.Total = totals.OK + totals.Fail

	s.writeJSON(w, statsResponse{
		Days:        days,
		Series:      series,
		ByTask:      topGroups(byTask),
		ByAutopilot: topGroups(byAutopilot),
		Totals:      totals,
	})
}

func tallyGroup(groups map[string]*groupTally, name string) *groupTally {
	tally := groups[name]
	if tally == nil {
		tally = &groupTally{}
		groups[name] = tally
	}
	return tally
}

// topGroups converts a tally map to a list sorted descending by
// total (name ascending on ties), truncated to maxGroupEntries.
func topGroups(groups map[string]*groupTally) []autopilot.GroupStat {
	stats := make([]autopilot.GroupStat, 0, len(groups))
	for name, tally := range groups {
		stats = append(stats, autopilot.GroupStat{
			Name:     name,
			OK:       tally.ok,
			Fail:     tally.fail,
			Total:    tally.ok + tally.fail,
			FailRate: autopilot.FailRate(tally.ok, tally.fail),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Total != stats[j].Total {
			return stats[i].Total > stats[j].Total
		}
		return stats[i].Name < stats[j].Name
	})
	if len(stats) > maxGroupEntries {
		stats = stats[:maxGroupEntries]
	}
	return stats
}
