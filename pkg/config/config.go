// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the optional YAML service configuration.
//
// Environment variables always win over file values; the file exists so
// deployments can keep non-secret settings (ports, directories, prompt
// overrides) in version control.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration.
type FileConfig struct {
	// Port is the HTTP server port.
	Port int `yaml:"port"`

	// LLMBackend is the completion provider: openai, claude, anthropic.
	LLMBackend string `yaml:"llm_backend"`

	// PostgresDSN is the durable transcript store connection string.
	PostgresDSN string `yaml:"postgres_dsn"`

	// ReadingsDir serves pre-extracted reading text.
	ReadingsDir string `yaml:"readings_dir"`

	// DefaultDocumentRefs ground auto-recovered sessions.
	DefaultDocumentRefs []string `yaml:"default_document_refs"`

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// SessionSeconds overrides the total session length.
	SessionSeconds int `yaml:"session_seconds"`

	// ReaperIdleMinutes is the idle TTL for abandoned sessions.
	ReaperIdleMinutes int `yaml:"reaper_idle_minutes"`
}

// Load reads and parses the YAML config at path.
//
// # Outputs
//
//   - *FileConfig: Parsed configuration. Zero-valued when the file does
//     not exist, so callers can layer env overrides unconditionally.
//   - error: Non-nil on read or parse failure for an existing file.
func Load(path string) (*FileConfig, error) {
	var cfg FileConfig
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return &cfg, nil
}
