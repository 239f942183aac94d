// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP request handlers for the research driver API.
//
// # Description
//
// The driver boundary: start a run, poll its state, fetch the exported
// report, cancel. Runs execute asynchronously; the handler returns 202 with
// the run id and the pipeline goroutine persists state transitions to the
// run store.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/pipeline"
	"github.com/AleutianAI/AleutianResearch/services/research/store"
)

// =============================================================================
// Service
// =============================================================================

// RunService owns run execution on behalf of the HTTP boundary.
//
// # Thread Safety
//
// Safe for concurrent use. The active-run map is mutex-guarded; the
// pipeline and store are safe for concurrent use by contract.
type RunService struct {
	pipeline *pipeline.Pipeline
	store    *store.RunStore
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewRunService wires the pipeline and store. Logger defaults to
// slog.Default().
func NewRunService(p *pipeline.Pipeline, s *store.RunStore, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		pipeline: p,
		store:    s,
		logger:   logger,
		active:   make(map[string]context.CancelFunc),
	}
}

// Start launches a run asynchronously and returns its initial state.
func (s *RunService) Start(state *datatypes.RunState) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.active[state.RunID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, state.RunID)
			s.mu.Unlock()
			cancel()
		}()

		final, err := s.pipeline.Run(ctx, state)
		if err != nil {
			s.logger.Error("Run finished with error", "run_id", state.RunID, "error", err)
		}
		if saveErr := s.store.SaveRun(context.Background(), final); saveErr != nil {
			s.logger.Error("Failed to persist terminal run state",
				"run_id", state.RunID, "error", saveErr)
		}
	}()
}

// Cancel cancels an active run. Returns false when the run is not active.
func (s *RunService) Cancel(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.active[runID]
	if ok {
		cancel()
	}
	return ok
}

// IsActive reports whether the run is still executing.
func (s *RunService) IsActive(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[runID]
	return ok
}

// =============================================================================
// Requests
// =============================================================================

// StartRunRequest is the POST /v1/research/runs payload.
type StartRunRequest struct {
	TenantID          string            `json:"tenant_id" binding:"required"`
	Query             string            `json:"query" binding:"required,min=3"`
	Goal              string            `json:"goal"`
	Constraints       map[string]string `json:"constraints"`
	MaxIterations     int               `json:"max_iterations" binding:"omitempty,min=1,max=20"`
	MaxRepairAttempts int               `json:"max_repair_attempts" binding:"omitempty,min=1,max=10"`
}

// =============================================================================
// Handlers
// =============================================================================

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StartRun accepts a research request and launches the pipeline.
func StartRun(svc *RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		state := datatypes.NewRunState(req.TenantID, req.Query)
		state.Goal = req.Goal
		state.Constraints = req.Constraints
		if req.MaxIterations > 0 {
			state.MaxIterations = req.MaxIterations
		}
		if req.MaxRepairAttempts > 0 {
			state.MaxRepairAttempts = req.MaxRepairAttempts
		}

		// Persist the initial record before launching, so a poll right
		// after the 202 finds the run.
		if err := svc.store.SaveRun(c.Request.Context(), state); err != nil {
			slog.Error("Failed to persist new run", "run_id", state.RunID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist run"})
			return
		}
		svc.Start(state)

		slog.Info("Run accepted", "run_id", state.RunID, "tenant_id", state.TenantID)
		c.JSON(http.StatusAccepted, gin.H{
			"run_id":    state.RunID,
			"tenant_id": state.TenantID,
			"status":    state.Status,
		})
	}
}

// GetRun returns the stored state of one run.
func GetRun(svc *RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Query("tenant_id")
		if tenantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter is required"})
			return
		}
		runID := c.Param("runId")

		state, err := svc.store.GetRun(c.Request.Context(), tenantID, runID)
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		if err != nil {
			slog.Error("Failed to load run", "run_id", runID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run"})
			return
		}
		if svc.IsActive(runID) {
			// The stored record trails the live run; report it as running.
			state.Status = datatypes.RunStatusRunning
		}
		c.JSON(http.StatusOK, state)
	}
}

// ListRuns returns all runs of a tenant.
func ListRuns(svc *RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Query("tenant_id")
		if tenantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter is required"})
			return
		}
		runs, err := svc.store.ListRuns(c.Request.Context(), tenantID)
		if err != nil {
			slog.Error("Failed to list runs", "tenant_id", tenantID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
	}
}

// GetReport returns an exported artifact of a finished run. The format query
// parameter selects "markdown" (default) or "json".
func GetReport(svc *RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Query("tenant_id")
		if tenantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter is required"})
			return
		}
		runID := c.Param("runId")

		state, err := svc.store.GetRun(c.Request.Context(), tenantID, runID)
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		if err != nil {
			slog.Error("Failed to load run", "run_id", runID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run"})
			return
		}
		if svc.IsActive(runID) || !state.Terminal() {
			c.JSON(http.StatusConflict, gin.H{"error": "Run has not finished yet"})
			return
		}

		artifact := pipeline.ArtifactReportMarkdown
		contentType := "text/markdown; charset=utf-8"
		if c.Query("format") == "json" {
			artifact = pipeline.ArtifactReportJSON
			contentType = "application/json"
		}
		body, ok := state.Artifacts[artifact]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error":  "Run produced no report",
				"status": state.Status,
				"reason": state.FailureReason,
			})
			return
		}
		c.Data(http.StatusOK, contentType, []byte(body))
	}
}

// CancelRun requests cancellation of an active run.
func CancelRun(svc *RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("runId")
		if !svc.Cancel(runID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run is not active"})
			return
		}
		slog.Info("Run cancellation requested", "run_id", runID)
		c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "canceling"})
	}
}

// SetupRoutes registers the driver API on the router.
func SetupRoutes(router *gin.Engine, svc *RunService) {
	router.GET("/healthz", HealthCheck)

	v1 := router.Group("/v1/research")
	{
		runs := v1.Group("/runs")
		{
			runs.POST("", StartRun(svc))
			runs.GET("", ListRuns(svc))
			runs.GET("/:runId", GetRun(svc))
			runs.GET("/:runId/report", GetReport(svc))
			runs.DELETE("/:runId", CancelRun(svc))
		}
	}
}
