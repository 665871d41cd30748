// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command guardian starts the AleutianGuard session controller HTTP server.
//
// This is the main entry point for the containerized guardian service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - GUARDIAN_PORT: HTTP server port (default: 12230)
//   - GUARDIAN_WEBHOOK_URL: webhook notification endpoint (optional)
//   - GUARDIAN_MAX_SESSION_MINUTES: dangerous-mode session cap (default: 30)
//   - GUARDIAN_LOG_DIR: directory for daily JSON log files (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//   - OTEL_SDK_DISABLED: set "true" to skip trace export
//
// # Usage
//
//	# Build
//	go build -o guardian ./cmd/guardian
//
//	# Run
//	./guardian
//
//	# Or via container
//	podman-compose up guardian
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/logging"
	"github.com/AleutianAI/AleutianGuard/services/guardian"
	"github.com/AleutianAI/AleutianGuard/services/guardian/dangerous"
)

func main() {
	// Setup structured logging; stderr JSON plus an optional daily file
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "guardian",
		JSON:    true,
		LogDir:  os.Getenv("GUARDIAN_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := guardian.Config{
		Port:           getEnvInt("GUARDIAN_PORT", 12230),
		OTelEndpoint:   getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
		DisableTracing: os.Getenv("OTEL_SDK_DISABLED") == "true",
		WebhookURL:     os.Getenv("GUARDIAN_WEBHOOK_URL"),
	}

	if minutes := getEnvInt("GUARDIAN_MAX_SESSION_MINUTES", 0); minutes > 0 {
		session := dangerous.DefaultConfig()
		session.MaxDuration = time.Duration(minutes) * time.Minute
		cfg.Session = &session
	}

	slog.Info("Starting guardian",
		"port", cfg.Port,
		"webhook_url", cfg.WebhookURL,
	)

	// Create guardian with default (no-op) extension options
	// Enterprise builds will pass custom ServiceOptions here
	svc, err := guardian.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create guardian: %v", err)
	}

	// Stop background sweeps cleanly on SIGINT/SIGTERM
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc.Shutdown(ctx)
		logger.Close()
		os.Exit(0)
	}()

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Guardian error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
