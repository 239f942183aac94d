// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline execution.
var (
	// ErrEmptyDraft is returned when the ClaimExtractor is invoked with an
	// empty draft. This is a precondition failure: fatal to the run and
	// non-retryable, the Writer must have produced text first.
	ErrEmptyDraft = errors.New("claim extractor: draft text is empty")

	// ErrEmptyQuery is returned when a run is started without a user query.
	ErrEmptyQuery = errors.New("pipeline: run state has no query")

	// ErrUnknownStage is returned when routing produces a stage the
	// dispatch table does not know. Indicates a programming error.
	ErrUnknownStage = errors.New("pipeline: unknown stage")

	// ErrNilCollaborator is returned by NewPipeline when a required
	// collaborator (searcher, LLM client) is missing.
	ErrNilCollaborator = errors.New("pipeline: required collaborator is nil")

	// ErrNoEvidence is returned by the Retriever when the retrieval
	// collaborator yields no sources at all for any generated query.
	ErrNoEvidence = errors.New("retriever: no sources returned for any query")
)

// StageError wraps a fatal error with the stage it occurred in. The driver
// records stage and reason on the RunState before returning it.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}
