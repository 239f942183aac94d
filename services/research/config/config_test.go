// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "12230", cfg.Server.Port)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, float64(2), cfg.LLM.RequestsPerSecond)
	assert.True(t, cfg.Store.SyncWrites)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
llm:
  backend: openai
  requests_per_second: 0.5
corpus:
  weaviate_url: http://weaviate:8080
pipeline:
  max_iterations: 3
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Backend)
	assert.Equal(t, 0.5, cfg.LLM.RequestsPerSecond)
	assert.Equal(t, "http://weaviate:8080", cfg.Corpus.WeaviateURL)
	assert.Equal(t, 3, cfg.Pipeline.MaxIterations)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RESEARCH_PORT", "8088")
	t.Setenv("LLM_BACKEND_TYPE", "template")
	t.Setenv("WEAVIATE_SERVICE_URL", "http://weaviate:8080")
	t.Setenv("RESEARCH_STORE_PATH", "/var/lib/research")
	t.Setenv("RESEARCH_LOG_LEVEL", "debug")
	t.Setenv("RESEARCH_MAX_ITERATIONS", "7")
	t.Setenv("RESEARCH_MAX_REPAIR_ATTEMPTS", "4")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8088", cfg.Server.Port)
	assert.Equal(t, "template", cfg.LLM.Backend)
	assert.Equal(t, "http://weaviate:8080", cfg.Corpus.WeaviateURL)
	assert.Equal(t, "/var/lib/research", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 7, cfg.Pipeline.MaxIterations)
	assert.Equal(t, 4, cfg.Pipeline.MaxRepairAttempts)
}

func TestLoad_BadEnvNumbersIgnored(t *testing.T) {
	t.Setenv("RESEARCH_MAX_ITERATIONS", "lots")
	t.Setenv("RESEARCH_MAX_REPAIR_ATTEMPTS", "-1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, cfg.Pipeline.MaxIterations)
	assert.Zero(t, cfg.Pipeline.MaxRepairAttempts)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".aleutian/logs"), ExpandPath("~/.aleutian/logs"))
	assert.Equal(t, "/var/lib/research", ExpandPath("/var/lib/research"))
	assert.Equal(t, "relative/path", ExpandPath("relative/path"))
}

func TestLoadScenarios(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenant_id: acme
scenarios:
  - query: effects of sleep deprivation
    goal: clinical overview
    constraints:
      population: adults
    max_iterations: 3
  - query: caffeine and attention
`), 0600))

	sf, err := LoadScenarios(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", sf.TenantID)
	require.Len(t, sf.Scenarios, 2)
	assert.Equal(t, "effects of sleep deprivation", sf.Scenarios[0].Query)
	assert.Equal(t, "clinical overview", sf.Scenarios[0].Goal)
	assert.Equal(t, map[string]string{"population": "adults"}, sf.Scenarios[0].Constraints)
	assert.Equal(t, 3, sf.Scenarios[0].MaxIterations)
	assert.Equal(t, "caffeine and attention", sf.Scenarios[1].Query)
}

func TestLoadScenarios_Validation(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0600))
		return path
	}

	_, err := LoadScenarios(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	_, err = LoadScenarios(write("no_tenant.yaml", "scenarios:\n  - query: q1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id is required")

	_, err = LoadScenarios(write("no_scenarios.yaml", "tenant_id: acme\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenarios")

	_, err = LoadScenarios(write("no_query.yaml", "tenant_id: acme\nscenarios:\n  - goal: g\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario 1 has no query")
}
