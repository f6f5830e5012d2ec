// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"net/http"

	"github.com/flightlog-foundation/flightlog/lib/codec"
	"github.com/flightlog-foundation/flightlog/lib/daystore"
	"github.com/flightlog-foundation/flightlog/lib/eventid"
	"github.com/flightlog-foundation/flightlog/lib/schema/autopilot"
)

// handleIngest accepts one outcome event. The payload is validated
// before any write; a malformed body never leaves a partial record.
// Timestamp, day, and id are server-assigned.
func (s *Service) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var payload autopilot.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid event payload: %v", err)
		return
	}
	if err := payload.Validate(); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid event payload: %v", err)
		return
	}

	now := s.clock.Now().UTC()
	id := eventid.New(now)
	event := payload.Event(id, now)

	value, err := codec.Marshal(event)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "encoding event: %v", err)
		return
	}
	if err := s.store.Put(r.Context(), daystore.RecordKey(event.Day, id), value); err != nil {
		s.logger.Error("storing event record", "day", event.Day, "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "storing event")
		return
	}
	if err := s.store.AppendIndex(r.Context(), event.Day, id); err != nil {
		s.logger.Error("appending day index", "day", event.Day, "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "storing event")
		return
	}

	s.logger.Info("event ingested",
		"id", id, "day", event.Day,
		"autopilot", event.Autopilot, "task", event.Task,
		"level", event.Level, "ok", event.OK)
	s.writeJSON(w, map[string]string{"id": id})
}
