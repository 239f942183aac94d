// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianResearch/pkg/logging"
	"github.com/AleutianAI/AleutianResearch/services/research/config"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/llm"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/pipeline"
	"github.com/AleutianAI/AleutianResearch/services/research/retrieval"
)

// loadCorpus reads a JSON array of corpus documents for the in-memory
// searcher.
func loadCorpus(path string) ([]retrieval.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	var docs []retrieval.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("corpus %s is empty", path)
	}
	return docs, nil
}

// buildCLIPipeline wires the collaborators for in-process execution. Metrics
// are nil for one-shot commands; the serve command passes the registered
// bundle.
func buildCLIPipeline(logger *logging.Logger, metrics *observability.PipelineMetrics) (*pipeline.Pipeline, error) {
	if corpusPath == "" {
		return nil, fmt.Errorf("--corpus is required: the CLI runs against a local corpus file")
	}
	docs, err := loadCorpus(corpusPath)
	if err != nil {
		return nil, err
	}
	searcher := retrieval.NewMemorySearcher(docs...)

	var client llm.LLMClient
	switch backendType {
	case "openai":
		client, err = llm.NewOpenAIClient()
	case "ollama":
		client, err = llm.NewOllamaClient()
	case "template":
		client = llm.NewTemplateClient()
	default:
		return nil, fmt.Errorf("unknown backend %q (want openai, ollama, or template)", backendType)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s backend: %w", backendType, err)
	}
	if rpsLimit > 0 {
		client = llm.NewRateLimitedClient(client, rpsLimit, 1)
	}

	return pipeline.NewPipeline(pipeline.Config{
		Searcher: searcher,
		LLM:      client,
		Emitter:  observability.NewLogEmitter(logger.Slog()),
		Metrics:  metrics,
		Logger:   logger.Slog(),
	})
}

// writeArtifacts saves each exported artifact under <out>/<run_id>/.
func writeArtifacts(state *datatypes.RunState) error {
	dir := filepath.Join(outDir, state.RunID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	for name, body := range state.Artifacts {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0640); err != nil {
			return fmt.Errorf("write artifact %s: %w", path, err)
		}
		fmt.Println("wrote", path)
	}
	return nil
}

func runResearch(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevel),
		Service: "research-cli",
	})
	defer logger.Close()

	pipe, err := buildCLIPipeline(logger, nil)
	if err != nil {
		return err
	}

	state := datatypes.NewRunState(tenantID, args[0])
	state.Goal = goalText
	if maxIterations > 0 {
		state.MaxIterations = maxIterations
	}
	if maxRepairs > 0 {
		state.MaxRepairAttempts = maxRepairs
	}

	final, err := pipe.Run(cmd.Context(), state)
	if err != nil {
		// A failed run can still carry partial artifacts worth keeping.
		if final != nil && len(final.Artifacts) > 0 {
			if writeErr := writeArtifacts(final); writeErr != nil {
				logger.Error("Failed to write partial artifacts", "error", writeErr)
			}
		}
		return fmt.Errorf("run %s failed: %w", state.RunID, err)
	}

	logger.Info("Run finished",
		"run_id", final.RunID,
		"status", final.Status,
		"iterations", final.IterationCount,
		"repairs", final.RepairAttempts,
	)
	return writeArtifacts(final)
}

// runOne executes one batch scenario with an already-built pipeline.
func runOne(ctx context.Context, pipe *pipeline.Pipeline, tenant string, sc config.Scenario) (*datatypes.RunState, error) {
	state := datatypes.NewRunState(tenant, sc.Query)
	state.Goal = sc.Goal
	state.Constraints = sc.Constraints
	if sc.MaxIterations > 0 {
		state.MaxIterations = sc.MaxIterations
	}
	if sc.MaxRepairAttempts > 0 {
		state.MaxRepairAttempts = sc.MaxRepairAttempts
	}
	return pipe.Run(ctx, state)
}
