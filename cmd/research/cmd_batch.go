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
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianResearch/pkg/logging"
	"github.com/AleutianAI/AleutianResearch/services/research/config"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// runBatch executes every scenario in the file with bounded concurrency.
// One failed scenario does not cancel the rest; failures are collected and
// reported at the end.
func runBatch(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevel),
		Service: "research-cli",
	})
	defer logger.Close()

	scenarios, err := config.LoadScenarios(args[0])
	if err != nil {
		return err
	}

	pipe, err := buildCLIPipeline(logger, nil)
	if err != nil {
		return err
	}

	conc := batchConc
	if conc < 1 {
		conc = 1
	}

	var (
		mu     sync.Mutex
		failed []string
	)

	g := new(errgroup.Group)
	g.SetLimit(conc)
	for i, sc := range scenarios.Scenarios {
		g.Go(func() error {
			logger.Info("Scenario started", "index", i+1, "query", sc.Query)
			final, runErr := runOne(cmd.Context(), pipe, scenarios.TenantID, sc)
			if runErr != nil {
				logger.Error("Scenario failed", "index", i+1, "error", runErr)
				mu.Lock()
				failed = append(failed, sc.Query)
				mu.Unlock()
				return nil
			}
			if final.Status == datatypes.RunStatusFailed {
				logger.Warn("Scenario finished without a report",
					"index", i+1, "reason", final.FailureReason)
			}
			if writeErr := writeArtifacts(final); writeErr != nil {
				logger.Error("Failed to write artifacts", "index", i+1, "error", writeErr)
				mu.Lock()
				failed = append(failed, sc.Query)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d scenarios failed: %v",
			len(failed), len(scenarios.Scenarios), failed)
	}
	logger.Info("Batch complete", "scenarios", len(scenarios.Scenarios))
	return nil
}
