// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}

		var wireRequest anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&wireRequest); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if wireRequest.Model != "claude-test" {
			t.Errorf("model = %q", wireRequest.Model)
		}
		if wireRequest.System != "summarize" {
			t.Errorf("system = %q", wireRequest.System)
		}
		if len(wireRequest.Messages) != 1 || wireRequest.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", wireRequest.Messages)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContentBlock{
				{Type: "text", Text: "All "},
				{Type: "text", Text: "quiet."},
			},
			Model:      "claude-test",
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 10, OutputTokens: 4},
		})
	}))
	defer server.Close()

	provider, err := NewAnthropic(AnthropicConfig{APIKey: "test-key", Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}

	response, err := provider.Complete(context.Background(), Request{
		Model:     "claude-test",
		MaxTokens: 256,
		System:    "summarize",
		Messages:  []Message{{Role: RoleUser, Content: "events"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if response.Text != "All quiet." {
		t.Errorf("Text = %q", response.Text)
	}
	if response.StopReason != StopReasonEndTurn {
		t.Errorf("StopReason = %q", response.StopReason)
	}
	if response.Usage.OutputTokens != 4 {
		t.Errorf("OutputTokens = %d", response.Usage.OutputTokens)
	}
}

func TestAnthropicProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	provider, err := NewAnthropic(AnthropicConfig{APIKey: "test-key", Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}

	_, err = provider.Complete(context.Background(), Request{Model: "m", MaxTokens: 1})
	var providerError *ProviderError
	if !errors.As(err, &providerError) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if !providerError.IsRateLimited() {
		t.Errorf("IsRateLimited() = false for status %d", providerError.StatusCode)
	}
	if providerError.Type != "rate_limit_error" || providerError.Message != "slow down" {
		t.Errorf("error fields = %q/%q", providerError.Type, providerError.Message)
	}
}

func TestAnthropicErrorBodyFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	provider, err := NewAnthropic(AnthropicConfig{APIKey: "k", Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}

	_, err = provider.Complete(context.Background(), Request{Model: "m", MaxTokens: 1})
	var providerError *ProviderError
	if !errors.As(err, &providerError) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if providerError.Message != "upstream unavailable" {
		t.Errorf("Message = %q", providerError.Message)
	}
}

func TestNewAnthropicRequiresKey(t *testing.T) {
	if _, err := NewAnthropic(AnthropicConfig{}); err == nil {
		t.Error("NewAnthropic accepted empty API key")
	}
}
