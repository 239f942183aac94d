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

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// --- Global Command Variables ---
var (
	backendType    string
	corpusPath     string
	outDir         string
	tenantID       string
	goalText       string
	maxIterations  int
	maxRepairs     int
	rpsLimit       float64
	batchConc      int
	logLevel       string
	servePort      string
	storePath      string

	rootCmd = &cobra.Command{
		Use:   "research",
		Short: "A cli to run iterative, citation-checked research reports",
		Long: `Research runs a multi-stage pipeline: retrieve sources, vet them,
				outline, draft, extract claims, validate citations, fact check,
				and repair until the report passes or the budget runs out.`,
	}

	runCmd = &cobra.Command{
		Use:   "run [query]",
		Short: "Run one research query and write the report artifacts",
		Args:  cobra.ExactArgs(1),
		RunE:  runResearch, // Defined in cmd_run.go
	}

	batchCmd = &cobra.Command{
		Use:   "batch [scenario_file]",
		Short: "Run every scenario in a YAML file, bounded concurrency",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch, // Defined in cmd_batch.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the driver API against a local corpus",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the research CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("research", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&backendType, "backend", "template",
		"LLM backend: openai, ollama, or template (deterministic, no generation)")
	rootCmd.PersistentFlags().StringVar(&corpusPath, "corpus", "",
		"Path to a JSON corpus file for the in-memory searcher")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "out",
		"Directory for report artifacts")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "cli",
		"Tenant id recorded on the run")
	rootCmd.PersistentFlags().Float64Var(&rpsLimit, "rps", 0,
		"Rate limit on LLM calls in requests per second (0 disables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	runCmd.Flags().StringVar(&goalText, "goal", "", "Report goal shown in the export")
	runCmd.Flags().IntVar(&maxIterations, "max-iterations", 0,
		"Evaluator iteration budget (0 uses the default)")
	runCmd.Flags().IntVar(&maxRepairs, "max-repairs", 0,
		"Repair attempt budget (0 uses the default)")

	batchCmd.Flags().IntVar(&batchConc, "concurrency", 2,
		"How many scenarios run at once")

	serveCmd.Flags().StringVar(&servePort, "port", "12230", "Listen port")
	serveCmd.Flags().StringVar(&storePath, "store", "",
		"BadgerDB directory for run state (empty keeps runs in memory)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
