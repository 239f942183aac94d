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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

func TestLogEmitter_EmitProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	e := NewLogEmitter(logger)

	e.EmitProgress(context.Background(), datatypes.ProgressEvent{
		RunID:          "run-1",
		Stage:          "retriever",
		Iteration:      2,
		RepairAttempts: 1,
		SourceCount:    12,
		SnippetCount:   30,
		ClaimCount:     8,
		ErrorCount:     1,
		WarningCount:   3,
		DurationMs:     42,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "pipeline progress", line["msg"])
	assert.Equal(t, "run-1", line["run_id"])
	assert.Equal(t, "retriever", line["stage"])
	assert.Equal(t, float64(2), line["iteration"])
	assert.Equal(t, float64(12), line["sources"])
	assert.Equal(t, float64(42), line["duration_ms"])
}

func TestNewLogEmitter_NilLoggerDefaults(t *testing.T) {
	e := NewLogEmitter(nil)
	require.NotNil(t, e)
	// Must not panic with the default logger.
	e.EmitProgress(context.Background(), datatypes.ProgressEvent{RunID: "run-1", Stage: "writer"})
}

func TestPipelineMetrics_NilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.RunStarted()
	m.RunFinished()
	m.RunCompleted("succeeded", "stop_success")
	m.ObserveStage("retriever", time.Millisecond)
	m.RepairAttempt()
}
