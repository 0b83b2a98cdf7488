// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command viva starts the oral-assessment HTTP server.
//
// This is the main entry point for the containerized assessment service.
// Settings come from an optional YAML config file layered under
// environment variables.
//
// # Environment Variables
//
//   - VIVA_PORT: HTTP server port (default: 12310)
//   - VIVA_CONFIG: Path to the YAML config file (optional)
//   - LLM_BACKEND_TYPE: Completion provider - openai, claude (default: openai)
//   - POSTGRES_DSN: Durable transcript store DSN (optional)
//   - READINGS_DIR: Directory of pre-extracted reading text (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: viva-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o viva ./cmd/viva
//
//	# Run
//	./viva
//
//	# Or via container
//	podman-compose up viva
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jinterlante1206/VivaLocal/pkg/config"
	"github.com/jinterlante1206/VivaLocal/services/viva"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	fileCfg, err := config.Load(os.Getenv("VIVA_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	// Environment variables win over file values
	cfg := viva.Config{
		Port:                getEnvInt("VIVA_PORT", pickInt(fileCfg.Port, 12310)),
		LLMBackend:          getEnvString("LLM_BACKEND_TYPE", pickString(fileCfg.LLMBackend, "openai")),
		PostgresDSN:         getEnvString("POSTGRES_DSN", fileCfg.PostgresDSN),
		ReadingsDir:         getEnvString("READINGS_DIR", fileCfg.ReadingsDir),
		DefaultDocumentRefs: fileCfg.DefaultDocumentRefs,
		OTelEndpoint:        getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", pickString(fileCfg.OTelEndpoint, "viva-otel-collector:4317")),
		SessionSeconds:      fileCfg.SessionSeconds,
	}
	if fileCfg.ReaperIdleMinutes > 0 {
		cfg.ReaperIdleTTL = time.Duration(fileCfg.ReaperIdleMinutes) * time.Minute
	}

	slog.Info("Starting assessment service",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"readings_dir", cfg.ReadingsDir,
		"postgres", cfg.PostgresDSN != "",
	)

	svc, err := viva.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create assessment service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Assessment service error: %v", err)
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

func pickInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func pickString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
