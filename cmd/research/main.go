// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command research runs the iterative research pipeline from the terminal.
//
// # Usage
//
//	# One query against a local corpus file, report written to ./out
//	research run "effects of sleep deprivation on memory" --corpus corpus.json
//
//	# A batch of queries from a scenario file, four at a time
//	research batch scenarios.yaml --concurrency 4
//
//	# The driver API on a local corpus, runs queryable over HTTP
//	research serve --corpus corpus.json --port 12230
//
// The run and batch commands execute the pipeline in-process and need no
// server. The containerized deployment entrypoint (services/research) adds
// tracing and the Weaviate corpus.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
