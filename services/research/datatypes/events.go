// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// ProgressEvent is emitted at every stage boundary.
//
// # Description
//
// Events feed the external observability sink; they are not required for
// correctness. They carry counters only, never draft text or snippet
// contents, so sinks can be lower-trust than the run store.
type ProgressEvent struct {
	TenantID       string    `json:"tenant_id"`
	RunID          string    `json:"run_id"`
	Stage          string    `json:"stage"`
	Iteration      int       `json:"iteration"`
	RepairAttempts int       `json:"repair_attempts"`
	SourceCount    int       `json:"source_count"`
	SnippetCount   int       `json:"snippet_count"`
	ClaimCount     int       `json:"claim_count"`
	ErrorCount     int       `json:"error_count"`
	WarningCount   int       `json:"warning_count"`
	DurationMs     int64     `json:"duration_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewProgressEvent snapshots the counters of a run after a stage completed.
func NewProgressEvent(s *RunState, stage string, took time.Duration) ProgressEvent {
	return ProgressEvent{
		TenantID:       s.TenantID,
		RunID:          s.RunID,
		Stage:          stage,
		Iteration:      s.IterationCount,
		RepairAttempts: s.RepairAttempts,
		SourceCount:    len(s.VettedSources),
		SnippetCount:   len(s.EvidenceSnippets),
		ClaimCount:     len(s.ExtractedClaims),
		ErrorCount:     s.CriticalErrorCount(),
		WarningCount:   s.WarningCount(),
		DurationMs:     took.Milliseconds(),
		Timestamp:      time.Now().UTC(),
	}
}
