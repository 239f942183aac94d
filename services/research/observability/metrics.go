// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and progress instrumentation for
// the research pipeline.
//
// # Description
//
// This package implements Prometheus metrics for monitoring pipeline runs.
// Metrics include:
//   - Run counters (by terminal status and final decision)
//   - Per-stage latency histograms
//   - Active run gauge
//   - Repair attempt counter
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every helper method is nil-safe, so callers wired without metrics pay
// nothing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for pipeline metrics
const researchSubsystem = "research"

// PipelineMetrics holds all Prometheus metrics for pipeline runs.
//
// # Fields
//
//   - RunsTotal: Counter of completed runs by status and decision
//   - StageDurationSeconds: Histogram of per-stage wall time
//   - ActiveRuns: Gauge of runs currently executing
//   - RepairAttemptsTotal: Counter of RepairAgent invocations
//
// # Thread Safety
//
// All operations are thread-safe.
type PipelineMetrics struct {
	// RunsTotal counts completed runs.
	// Labels: status (succeeded, failed, canceled), decision (stop_success, ...)
	RunsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage wall time.
	// Labels: stage (retriever, source_vetter, ...)
	StageDurationSeconds *prometheus.HistogramVec

	// ActiveRuns tracks runs currently executing.
	ActiveRuns prometheus.Gauge

	// RepairAttemptsTotal counts RepairAgent invocations across all runs.
	RepairAttemptsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics creates and registers all pipeline metrics. Call once at
// application startup; a second call panics on duplicate registration.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: researchSubsystem,
				Name:      "runs_total",
				Help:      "Total completed pipeline runs by status and final decision",
			},
			[]string{"status", "decision"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: researchSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Wall time per pipeline stage in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 120.0},
			},
			[]string{"stage"},
		),

		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: researchSubsystem,
				Name:      "active_runs",
				Help:      "Number of pipeline runs currently executing",
			},
		),

		RepairAttemptsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: researchSubsystem,
				Name:      "repair_attempts_total",
				Help:      "Total RepairAgent invocations across all runs",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RunStarted increments the active run gauge.
func (m *PipelineMetrics) RunStarted() {
	if m == nil {
		return
	}
	m.ActiveRuns.Inc()
}

// RunFinished decrements the active run gauge.
func (m *PipelineMetrics) RunFinished() {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()
}

// RunCompleted records a run reaching a terminal status.
//
// # Inputs
//
//   - status: terminal status label
//   - decision: final Evaluator decision, empty for failed/canceled runs
func (m *PipelineMetrics) RunCompleted(status, decision string) {
	if m == nil {
		return
	}
	if decision == "" {
		decision = "none"
	}
	m.RunsTotal.WithLabelValues(status, decision).Inc()
}

// ObserveStage records one stage execution's wall time.
func (m *PipelineMetrics) ObserveStage(stage string, took time.Duration) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.WithLabelValues(stage).Observe(took.Seconds())
}

// RepairAttempt increments the repair counter.
func (m *PipelineMetrics) RepairAttempt() {
	if m == nil {
		return
	}
	m.RepairAttemptsTotal.Inc()
}
