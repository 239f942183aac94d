// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads research service configuration.
//
// Configuration comes from two places: a YAML file for stable deployment
// settings and environment variables for per-container overrides. Env vars
// win, because that is how podman-compose injects differences between
// stacks.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResearchConfig is the top-level service configuration.
type ResearchConfig struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Store    StoreConfig    `yaml:"store"`
	Vetting  VettingConfig  `yaml:"vetting"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LLMConfig struct {
	// Backend selects "openai", "ollama", or "template" (deterministic
	// fallbacks only, no generation).
	Backend string `yaml:"backend"`

	// RequestsPerSecond rate-limits generation calls. Zero disables the
	// limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type CorpusConfig struct {
	// WeaviateURL points at the corpus backend. Empty runs the in-memory
	// searcher (tests, demos, air-gapped).
	WeaviateURL string `yaml:"weaviate_url"`
}

type StoreConfig struct {
	Path       string `yaml:"path"`
	SyncWrites bool   `yaml:"sync_writes"`
}

type VettingConfig struct {
	KeepTop             int      `yaml:"keep_top"`
	MinScore            float64  `yaml:"min_score"`
	PrimaryConnector    string   `yaml:"primary_connector"`
	SecondaryConnectors []string `yaml:"secondary_connectors"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type PipelineConfig struct {
	MaxIterations     int `yaml:"max_iterations"`
	MaxRepairAttempts int `yaml:"max_repair_attempts"`
}

// Default returns the configuration used when no file exists.
func Default() ResearchConfig {
	return ResearchConfig{
		Server: ServerConfig{Port: "12230"},
		LLM:    LLMConfig{Backend: "ollama", RequestsPerSecond: 2, Burst: 4},
		Store:  StoreConfig{Path: "~/.aleutian/research/runs", SyncWrites: true},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.aleutian/logs",
		},
	}
}

// Load reads the YAML file at path when it exists, then applies env
// overrides. A missing file is not an error; the defaults apply.
func Load(path string) (ResearchConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded configuration.
func applyEnv(cfg *ResearchConfig) {
	if v := os.Getenv("RESEARCH_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LLM_BACKEND_TYPE"); v != "" {
		cfg.LLM.Backend = v
	}
	if v := os.Getenv("WEAVIATE_SERVICE_URL"); v != "" {
		cfg.Corpus.WeaviateURL = v
	}
	if v := os.Getenv("RESEARCH_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("RESEARCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RESEARCH_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Pipeline.MaxIterations = n
		}
	}
	if v := os.Getenv("RESEARCH_MAX_REPAIR_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Pipeline.MaxRepairAttempts = n
		}
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// =============================================================================
// Batch scenarios
// =============================================================================

// Scenario describes one batch research request.
type Scenario struct {
	Query             string            `yaml:"query"`
	Goal              string            `yaml:"goal"`
	Constraints       map[string]string `yaml:"constraints"`
	MaxIterations     int               `yaml:"max_iterations"`
	MaxRepairAttempts int               `yaml:"max_repair_attempts"`
}

// ScenarioFile is the batch input format: one tenant, many queries.
type ScenarioFile struct {
	TenantID  string     `yaml:"tenant_id"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios parses a batch scenario file.
func LoadScenarios(path string) (*ScenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file %s: %w", path, err)
	}
	var sf ScenarioFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse scenario file %s: %w", path, err)
	}
	if sf.TenantID == "" {
		return nil, fmt.Errorf("scenario file %s: tenant_id is required", path)
	}
	if len(sf.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario file %s: no scenarios", path)
	}
	for i, s := range sf.Scenarios {
		if s.Query == "" {
			return nil, fmt.Errorf("scenario file %s: scenario %d has no query", path, i+1)
		}
	}
	return &sf, nil
}
