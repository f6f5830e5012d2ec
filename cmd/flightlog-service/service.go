// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flightlog-foundation/flightlog/lib/clock"
	"github.com/flightlog-foundation/flightlog/lib/codec"
	"github.com/flightlog-foundation/flightlog/lib/daystore"
	"github.com/flightlog-foundation/flightlog/lib/schema/autopilot"
)

// maxRequestBodySize caps request bodies. Event payloads are small;
// anything near this limit is malformed or hostile.
const maxRequestBodySize = 1 << 20

// Service holds the shared state behind the HTTP handlers: the event
// store, the clock (injected so tests control time), and the
// summarizer.
type Service struct {
	store      *daystore.Store
	clock      clock.Clock
	logger     *slog.Logger
	summarizer *Summarizer
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Store      *daystore.Store
	Clock      clock.Clock
	Logger     *slog.Logger
	Summarizer *Summarizer
}

// NewService creates a Service from its dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("service: Store is required")
	}
	if cfg.Summarizer == nil {
		return nil, fmt.Errorf("service: Summarizer is required")
	}
	serviceClock := cfg.Clock
	if serviceClock == nil {
		serviceClock = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      cfg.Store,
		clock:      serviceClock,
		logger:     logger,
		summarizer: cfg.Summarizer,
	}, nil
}

// Routes builds the HTTP mux. Unknown routes get the mux's standard
// 404.
func (s *Service) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/events", s.handleIngest)
	mux.HandleFunc("GET /v1/events", s.handleQuery)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("POST /v1/summaries/run", s.handleSummarizeRun)
	mux.HandleFunc("POST /v1/summaries/nightly", s.handleNightly)
	mux.HandleFunc("GET /v1/summaries/{date}", s.handleGetSummary)
	return mux
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// collectDay loads and decodes all of a day's records via the day
// index, batch-fetching batchSize keys at a time. Undecodable or
// missing records are dropped with a warning; a partial index never
// fails the whole read.
func (s *Service) collectDay(ctx context.Context, day string, batchSize int) ([]autopilot.Event, error) {
	ids, err := s.store.ReadIndex(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = daystore.RecordKey(day, id)
	}

	events := make([]autopilot.Event, 0, len(keys))
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))
		chunk := keys[start:end]

		values, err := s.store.BatchGet(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for i, value := range values {
			if value == nil {
				s.logger.Warn("indexed record missing from partition", "key", chunk[i])
				continue
			}
			var event autopilot.Event
			if err := codec.Unmarshal(value, &event); err != nil {
				s.logger.Warn("dropping undecodable record", "key", chunk[i], "error", err)
				continue
			}
			events = append(events, event)
		}
	}
	return events, nil
}

func (s *Service) sendError(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": fmt.Sprintf(format, args...),
	}); err != nil {
		s.logger.Warn("writing JSON error response", "error", err, "status", status)
	}
}

// writeJSON encodes value as JSON into w, setting the Content-Type
// header. Encoding failures (usually a disconnected client) are
// logged; there is no client left to send a corrective response to.
func (s *Service) writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Warn("writing JSON response", "error", err)
	}
}
