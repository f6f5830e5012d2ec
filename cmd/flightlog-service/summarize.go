// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/flightlog-foundation/flightlog/lib/clock"
	"github.com/flightlog-foundation/flightlog/lib/codec"
	"github.com/flightlog-foundation/flightlog/lib/daystore"
	"github.com/flightlog-foundation/flightlog/lib/llm"
	"github.com/flightlog-foundation/flightlog/lib/schema/autopilot"
)

// summaryInputCap bounds how many records are sent to the provider.
// When a range holds more, only the most recent records go out; the
// counts still cover everything.
const summaryInputCap = 400

const summarySystemPrompt = `You are an operations analyst reviewing event logs from ` +
	`autonomous agents ("autopilots"). You receive a JSON object with outcome ` +
	`counts and a list of compact event records. Respond with ONLY a JSON object, ` +
	`no prose and no code fences, with exactly these fields:
  "highlights": array of short strings, the most notable observations
  "next_actions": array of short strings, concrete follow-ups for an operator
  "risk_score": integer 0-100, overall operational risk
  "summary_text": one paragraph of plain prose summarizing the period`

// Summarizer turns a batch of events into a Summary. The counts and
// breakdowns are always computed locally; only the narrative fields
// come from the provider, and any provider or parse failure degrades
// to a fallback narrative instead of an error.
type Summarizer struct {
	provider  llm.Provider // nil means always use the fallback
	model     string
	maxTokens int
	timeout   time.Duration
	clock     clock.Clock
	logger    *slog.Logger
}

// SummarizerConfig holds the parameters for creating a Summarizer.
type SummarizerConfig struct {
	// Provider generates the narrative fields. May be nil, in which
	// case every summary uses the fallback narrative.
	Provider llm.Provider

	Model     string
	MaxTokens int
	Timeout   time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(cfg SummarizerConfig) *Summarizer {
	serviceClock := cfg.Clock
	if serviceClock == nil {
		serviceClock = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Summarizer{
		provider:  cfg.Provider,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		clock:     serviceClock,
		logger:    logger,
	}
}

// narrative holds the provider-generated fields of a summary.
type narrative struct {
	Highlights  []string `json:"highlights"`
	NextActions []string `json:"next_actions"`
	RiskScore   int      `json:"risk_score"`
	SummaryText string   `json:"summary_text"`
}

// summaryPromptInput is the JSON object sent to the provider. Events
// are compact records only; meta never reaches the provider.
type summaryPromptInput struct {
	Label  string                   `json:"label"`
	Counts autopilot.Counts         `json:"counts"`
	Events []autopilot.CompactEvent `json:"events"`
}

// Summarize builds the summary for events under the given label. It
// never fails: provider and parse errors are logged and replaced by
// the fallback narrative.
func (sz *Summarizer) Summarize(ctx context.Context, events []autopilot.Event, label string) autopilot.Summary {
	recent := capToMostRecent(events, summaryInputCap)

	summary := autopilot.Summary{
		Timestamp: sz.clock.Now().UTC(),
		Label:     label,
	}
	summary.Counts, summary.ByTask, summary.ByAutopilot = tallyEvents(events)

	story, ok := sz.generate(ctx, recent, label, summary.Counts)
	if !ok {
		story = fallbackNarrative(label)
	}
	summary.Highlights = story.Highlights
	summary.NextActions = story.NextActions
	summary.RiskScore = story.RiskScore
	summary.SummaryText = story.SummaryText
	return summary
}

// generate asks the provider for the narrative fields. Returns false
// when there is no provider, the request fails, or the response does
// not parse.
func (sz *Summarizer) generate(ctx context.Context, events []autopilot.Event, label string, counts autopilot.Counts) (narrative, bool) {
	if sz.provider == nil {
		return narrative{}, false
	}

	compact := make([]autopilot.CompactEvent, len(events))
	for i, event := range events {
		compact[i] = autopilot.Compact(event)
	}
	input, err := json.Marshal(summaryPromptInput{
		Label:  label,
		Counts: counts,
		Events: compact,
	})
	if err != nil {
		sz.logger.Warn("encoding summary prompt", "label", label, "error", err)
		return narrative{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, sz.timeout)
	defer cancel()

	response, err := sz.provider.Complete(ctx, llm.Request{
		Model:     sz.model,
		MaxTokens: sz.maxTokens,
		System:    summarySystemPrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: string(input)}},
	})
	if err != nil {
		sz.logger.Warn("summary generation failed, using fallback", "label", label, "error", err)
		return narrative{}, false
	}

	story, ok := parseNarrative(response.Text)
	if !ok {
		sz.logger.Warn("summary response did not parse, using fallback",
			"label", label, "model", response.Model)
		return narrative{}, false
	}
	return story, true
}

// parseNarrative extracts the narrative payload from model output.
// Code fences are stripped and lenient JSON (comments, trailing
// commas) is normalized before the strict decode. Returns false when
// the text still does not parse.
func parseNarrative(text string) (narrative, bool) {
	trimmed := strings.TrimSpace(text)
	if after, found := strings.CutPrefix(trimmed, "```json"); found {
		trimmed = after
	} else if after, found := strings.CutPrefix(trimmed, "```"); found {
		trimmed = after
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	var story narrative
	if err := json.Unmarshal(jsonc.ToJSON([]byte(trimmed)), &story); err != nil {
		return narrative{}, false
	}
	if story.RiskScore < 0 {
		story.RiskScore = 0
	}
	if story.RiskScore > 100 {
		story.RiskScore = 100
	}
	if story.Highlights == nil {
		story.Highlights = []string{}
	}
	if story.NextActions == nil {
		story.NextActions = []string{}
	}
	return story, true
}

// fallbackNarrative is used whenever the provider is unavailable or
// unintelligible. The counts in the surrounding summary remain valid.
func fallbackNarrative(label string) narrative {
	return narrative{
		Highlights:  []string{},
		NextActions: []string{},
		RiskScore:   0,
		SummaryText: "Automatic summary unavailable for " + label + "; counts were computed locally.",
	}
}

// capToMostRecent returns up to limit events, preferring the newest.
// The input slice is not modified.
func capToMostRecent(events []autopilot.Event, limit int) []autopilot.Event {
	if len(events) <= limit {
		return events
	}
	recent := make([]autopilot.Event, len(events))
	copy(recent, events)
	sortEventsNewestFirst(recent)
	return recent[:limit]
}

// tallyEvents computes the locally derived parts of a summary.
func tallyEvents(events []autopilot.Event) (autopilot.Counts, []autopilot.TaskCount, []autopilot.AutopilotCount) {
	var counts autopilot.Counts
	taskCounts := make(map[string]int)
	autopilotCounts := make(map[string]int)
	for _, event := range events {
		counts.Total++
		if event.OK {
			counts.OK++
		} else {
			counts.Fail++
		}
		taskCounts[event.Task]++
		autopilotCounts[event.Autopilot]++
	}

	byTask := make([]autopilot.TaskCount, 0, len(taskCounts))
	for task, count := range taskCounts {
		byTask = append(byTask, autopilot.TaskCount{Task: task, Count: count})
	}
	sort.Slice(byTask, func(i, j int) bool {
		if byTask[i].Count != byTask[j].Count {
			return byTask[i].Count > byTask[j].Count
		}
		return byTask[i].Task < byTask[j].Task
	})
	if len(byTask) > maxGroupEntries {
		byTask = byTask[:maxGroupEntries]
	}

	byAutopilot := make([]autopilot.AutopilotCount, 0, len(autopilotCounts))
	for name, count := range autopilotCounts {
		byAutopilot = append(byAutopilot, autopilot.AutopilotCount{Autopilot: name, Count: count})
	}
	sort.Slice(byAutopilot, func(i, j int) bool {
		if byAutopilot[i].Count != byAutopilot[j].Count {
			return byAutopilot[i].Count > byAutopilot[j].Count
		}
		return byAutopilot[i].Autopilot < byAutopilot[j].Autopilot
	})
	if len(byAutopilot) > maxGroupEntries {
		byAutopilot = byAutopilot[:maxGroupEntries]
	}

	return counts, byTask, byAutopilot
}

// summarizeRunRequest is the on-demand summary request body. Both
// bounds default to today.
type summarizeRunRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// handleSummarizeRun computes and returns a summary for a date range
// without persisting it. Only the nightly path writes summaries.
func (s *Service) handleSummarizeRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var request summarizeRunRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		s.sendError(w, http.StatusBadRequest, "invalid request: %v", err)
		return
	}

	today := autopilot.DayOf(s.clock.Now())
	if request.From == "" {
		request.From = today
	}
	if request.To == "" {
		request.To = today
	}

	fromDay, err := autopilot.ParseDay(request.From)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid from date: %v", err)
		return
	}
	toDay, err := autopilot.ParseDay(request.To)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid to date: %v", err)
		return
	}
	if fromDay.After(toDay) {
		s.sendError(w, http.StatusBadRequest, "from %s is after to %s", request.From, request.To)
		return
	}

	var events []autopilot.Event
	for _, day := range dayRange(fromDay, toDay) {
		dayEvents, err := s.collectDay(r.Context(), day, queryBatchSize)
		if err != nil {
			s.logger.Error("collecting day", "day", day, "error", err)
			s.sendError(w, http.StatusInternalServerError, "reading events")
			return
		}
		events = append(events, dayEvents...)
	}

	label := autopilot.RangeLabel(request.From, request.To)
	summary := s.summarizer.Summarize(r.Context(), events, label)
	s.writeJSON(w, summary)
}

// handleGetSummary serves the persisted summary for one date.
func (s *Service) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := autopilot.ParseDay(date); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid date: %v", err)
		return
	}

	value, err := s.store.Get(r.Context(), daystore.SummaryKey(date))
	if errors.Is(err, daystore.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "no summary for %s", date)
		return
	}
	if err != nil {
		s.logger.Error("reading summary", "date", date, "error", err)
		s.sendError(w, http.StatusInternalServerError, "reading summary")
		return
	}

	var summary autopilot.Summary
	if err := codec.Unmarshal(value, &summary); err != nil {
		s.logger.Error("decoding stored summary", "date", date, "error", err)
		s.sendError(w, http.StatusInternalServerError, "decoding summary")
		return
	}
	s.writeJSON(w, summary)
}
