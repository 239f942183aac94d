// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// LogEmitter writes progress events to structured logs. It is the default
// progress sink when no external one is configured.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps the logger; nil falls back to slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// EmitProgress logs one stage-boundary event.
func (e *LogEmitter) EmitProgress(ctx context.Context, ev datatypes.ProgressEvent) {
	e.logger.LogAttrs(ctx, slog.LevelInfo, "pipeline progress",
		slog.String("run_id", ev.RunID),
		slog.String("stage", ev.Stage),
		slog.Int("iteration", ev.Iteration),
		slog.Int("repair_attempts", ev.RepairAttempts),
		slog.Int("sources", ev.SourceCount),
		slog.Int("snippets", ev.SnippetCount),
		slog.Int("claims", ev.ClaimCount),
		slog.Int("errors", ev.ErrorCount),
		slog.Int("warnings", ev.WarningCount),
		slog.Int64("duration_ms", ev.DurationMs),
	)
}
