// Copyright 2026 The Flightlog Authors
// SPDX-License-Identifier: Apache-2.0

// flightlog-service is the event log analyzer for autopilot fleets.
// It ingests outcome events over HTTP, serves range queries and
// rolling statistics, and writes an LLM-generated summary of each
// day's activity on a nightly schedule.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/flightlog-foundation/flightlog/lib/clock"
	"github.com/flightlog-foundation/flightlog/lib/config"
	"github.com/flightlog-foundation/flightlog/lib/cron"
	"github.com/flightlog-foundation/flightlog/lib/daystore"
	"github.com/flightlog-foundation/flightlog/lib/llm"
)

// version is stamped by the build.
var version = "devel"

func main() {
	configPath := pflag.String("config", "", "path to the config file (overrides FLIGHTLOG_CONFIG)")
	listen := pflag.String("listen", "", "listen address (overrides the config file)")
	showVersion := pflag.Bool("version", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("flightlog-service", version)
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := daystore.Open(daystore.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}

	serviceClock := clock.Real()
	summarizer := NewSummarizer(SummarizerConfig{
		Provider:  provider,
		Model:     cfg.Summarizer.Model,
		MaxTokens: cfg.Summarizer.MaxTokens,
		Timeout:   time.Duration(cfg.Summarizer.TimeoutSeconds) * time.Second,
		Clock:     serviceClock,
		Logger:    logger,
	})

	service, err := NewService(ServiceConfig{
		Store:      store,
		Clock:      serviceClock,
		Logger:     logger,
		Summarizer: summarizer,
	})
	if err != nil {
		return err
	}

	schedule, err := cron.Parse(cfg.Summarizer.Schedule)
	if err != nil {
		return fmt.Errorf("parsing summarizer schedule %q: %w", cfg.Summarizer.Schedule, err)
	}
	go service.RunNightly(ctx, schedule)

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      service.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("flightlog service listening", "address", cfg.Listen, "version", version)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildProvider constructs the LLM provider from the summarizer
// config. Returns nil (and no error) when the summarizer is disabled
// or no API key is present; the service then runs with fallback
// summaries only.
func buildProvider(cfg *config.Config, logger *slog.Logger) (llm.Provider, error) {
	if !cfg.Summarizer.Enabled {
		logger.Info("summarizer disabled, summaries use local counts only")
		return nil, nil
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		logger.Warn("summarizer enabled but API key is empty, summaries use the fallback",
			"env", cfg.Summarizer.APIKeyEnv)
		return nil, nil
	}

	provider, err := llm.NewAnthropic(llm.AnthropicConfig{
		APIKey:   apiKey,
		Endpoint: cfg.Summarizer.Endpoint,
		Timeout:  time.Duration(cfg.Summarizer.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("building summarizer provider: %w", err)
	}
	logger.Info("summarizer enabled", "model", cfg.Summarizer.Model)
	return provider, nil
}
