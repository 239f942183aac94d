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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianResearch/pkg/logging"
	"github.com/AleutianAI/AleutianResearch/services/research/handlers"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/store"
)

// runServe starts the driver API against the local corpus. The containerized
// deployment entrypoint under services/research adds tracing and the Weaviate
// corpus; this command is for local and air-gapped use.
func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevel),
		Service: "research-serve",
	})
	defer logger.Close()
	logger.SetAsDefault()

	metrics := observability.InitMetrics()

	pipe, err := buildCLIPipeline(logger, metrics)
	if err != nil {
		return err
	}

	cfg := store.InMemoryConfig()
	if storePath != "" {
		cfg = store.DefaultConfig(storePath)
		cfg.Logger = logger.Slog()
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer st.Close()

	svc := handlers.NewRunService(pipe, st, logger.Slog())
	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.SetupRoutes(router, svc)

	logger.Info("Driver API listening", "port", servePort, "store", storePath)
	return router.Run(":" + servePort)
}
