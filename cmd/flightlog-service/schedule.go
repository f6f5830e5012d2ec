// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/flightlog-foundation/flightlog/lib/codec"
	"github.com/flightlog-foundation/flightlog/lib/cron"
	"github.com/flightlog-foundation/flightlog/lib/daystore"
	"github.com/flightlog-foundation/flightlog/lib/schema/autopilot"
)

// RunNightly drives the nightly summary job on the given cron
// schedule (evaluated in UTC) until ctx is cancelled. Each firing
// summarizes the previous UTC day and persists the result. All timing
// goes through the service clock so tests can drive the loop.
func (s *Service) RunNightly(ctx context.Context, schedule cron.Schedule) {
	for {
		now := s.clock.Now().UTC()
		next, err := schedule.Next(now)
		if err != nil {
			s.logger.Error("computing next nightly run", "error", err)
			return
		}
		s.logger.Info("nightly summary scheduled", "at", next)

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(next.Sub(now)):
		}

		yesterday := autopilot.DayOf(s.clock.Now().UTC().AddDate(0, 0, -1))
		if _, _, err := s.summarizeAndPersist(ctx, yesterday); err != nil {
			s.logger.Error("nightly summary failed", "day", yesterday, "error", err)
		}
	}
}

// summarizeAndPersist computes the summary for one day and writes it
// under summary:{day}, overwriting any prior value. A day with no
// records is skipped: nothing is written and ran is false. Re-running
// for the same day only overwrites.
func (s *Service) summarizeAndPersist(ctx context.Context, day string) (summary autopilot.Summary, ran bool, err error) {
	events, err := s.collectDay(ctx, day, queryBatchSize)
	if err != nil {
		return autopilot.Summary{}, false, err
	}
	if len(events) == 0 {
		s.logger.Info("nightly summary skipped, no events", "day", day)
		return autopilot.Summary{}, false, nil
	}

	summary = s.summarizer.Summarize(ctx, events, day)

	value, err := codec.Marshal(summary)
	if err != nil {
		return autopilot.Summary{}, false, err
	}
	if err := s.store.Put(ctx, daystore.SummaryKey(day), value); err != nil {
		return autopilot.Summary{}, false, err
	}

	s.logger.Info("nightly summary written",
		"day", day, "events", summary.Counts.Total, "risk", summary.RiskScore)
	return summary, true, nil
}

// nightlyRequest optionally overrides the day the nightly job
// summarizes. Used for backfill.
type nightlyRequest struct {
	Date string `json:"date"`
}

// handleNightly runs the nightly summary path on demand. Defaults to
// yesterday (UTC); an explicit date backfills that day instead.
func (s *Service) handleNightly(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var request nightlyRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		s.sendError(w, http.StatusBadRequest, "invalid request: %v", err)
		return
	}

	day := request.Date
	if day == "" {
		day = autopilot.DayOf(s.clock.Now().UTC().AddDate(0, 0, -1))
	} else if _, err := autopilot.ParseDay(day); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid date: %v", err)
		return
	}

	summary, ran, err := s.summarizeAndPersist(r.Context(), day)
	if err != nil {
		s.logger.Error("nightly summary failed", "day", day, "error", err)
		s.sendError(w, http.StatusInternalServerError, "summarizing %s", day)
		return
	}
	if !ran {
		s.writeJSON(w, map[string]any{"skipped": true, "day": day})
		return
	}
	s.writeJSON(w, summary)
}
