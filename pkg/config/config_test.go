// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the YAML config loader

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viva.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
llm_backend: claude
readings_dir: /data/readings
default_document_refs:
  - week1/reading1.txt
  - week1/reading2.txt
session_seconds: 300
reaper_idle_minutes: 15
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "claude", cfg.LLMBackend)
	assert.Equal(t, "/data/readings", cfg.ReadingsDir)
	assert.Equal(t, []string{"week1/reading1.txt", "week1/reading2.txt"}, cfg.DefaultDocumentRefs)
	assert.Equal(t, 300, cfg.SessionSeconds)
	assert.Equal(t, 15, cfg.ReaperIdleMinutes)
}

func TestLoad_EmptyPathIsZeroConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, cfg.Port)
	assert.Empty(t, cfg.LLMBackend)
}

func TestLoad_MissingFileIsZeroConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Port)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not an int"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
