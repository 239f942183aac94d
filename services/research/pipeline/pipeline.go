// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline implements the research-report state machine: a directed
// graph of processing stages sharing one mutable RunState, with conditional
// branching decided by the Evaluator, bounded retry/repair cycles, and
// fail-closed validation gates.
//
// # Description
//
// The graph is deliberately not a workflow framework. It is a dispatch table
// keyed by the current stage plus a pure routing function; the driver loop
// owns the RunState and all counters. Fixed edges:
//
//	Retriever -> SourceVetter -> Outliner -> Writer -> ClaimExtractor
//	          -> CitationValidator -> FactChecker -> Evaluator
//
// The Evaluator is the only branch point. It routes to the Exporter
// (terminal), the RepairAgent (which always returns to the ClaimExtractor
// for re-validation), back to the Retriever (more evidence), or back to the
// Writer (redraft). IterationCount increments exactly once per Evaluator
// visit regardless of the route taken.
//
// # Thread Safety
//
// A Pipeline value is safe for concurrent use across runs: it holds only
// immutable configuration and thread-safe collaborators. A single run is
// strictly sequential; no two stages of the same run ever overlap.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/llm"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("aleutian.research.pipeline")

// =============================================================================
// Stages
// =============================================================================

// Stage names a node of the pipeline graph.
type Stage string

const (
	StageRetriever         Stage = "retriever"
	StageSourceVetter      Stage = "source_vetter"
	StageOutliner          Stage = "outliner"
	StageWriter            Stage = "writer"
	StageClaimExtractor    Stage = "claim_extractor"
	StageCitationValidator Stage = "citation_validator"
	StageFactChecker       Stage = "fact_checker"
	StageEvaluator         Stage = "evaluator"
	StageRepairAgent       Stage = "repair_agent"
	StageExporter          Stage = "exporter"
)

// StageFunc is a synchronous, blocking transformation of the RunState.
type StageFunc func(ctx context.Context, state *datatypes.RunState) error

// linearNext holds the fixed (non-branching) edges of the graph.
var linearNext = map[Stage]Stage{
	StageRetriever:         StageSourceVetter,
	StageSourceVetter:      StageOutliner,
	StageOutliner:          StageWriter,
	StageWriter:            StageClaimExtractor,
	StageClaimExtractor:    StageCitationValidator,
	StageCitationValidator: StageFactChecker,
	StageFactChecker:       StageEvaluator,
	StageRepairAgent:       StageClaimExtractor,
}

// decisionNext maps the Evaluator's verdict to the next stage.
var decisionNext = map[datatypes.Decision]Stage{
	datatypes.DecisionStopSuccess:      StageExporter,
	datatypes.DecisionContinueRepair:   StageRepairAgent,
	datatypes.DecisionContinueRetrieve: StageRetriever,
	datatypes.DecisionContinueRewrite:  StageWriter,
}

// =============================================================================
// Collaborator contracts
// =============================================================================

// Searcher is the retrieval collaborator boundary.
//
// # Description
//
// Failures surface as an empty result plus an error the driver may log; the
// pipeline core never retries or rate-limits retrieval itself. Its only
// resilience mechanism is the iteration/repair bound.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use across runs.
type Searcher interface {
	// Search resolves queries to candidate sources.
	Search(ctx context.Context, queries []string) ([]datatypes.SourceRef, error)

	// Snippets produces evidence snippets for the given sources.
	Snippets(ctx context.Context, sources []datatypes.SourceRef) ([]datatypes.EvidenceSnippetRef, error)
}

// Emitter receives progress events at stage boundaries. Emitters must not
// block for long; they are on the run's critical path.
type Emitter interface {
	EmitProgress(ctx context.Context, ev datatypes.ProgressEvent)
}

// =============================================================================
// Pipeline
// =============================================================================

// Config wires a Pipeline's collaborators and policy knobs.
type Config struct {
	// Searcher is required: the retrieval collaborator.
	Searcher Searcher

	// LLM is required: the generation collaborator. Stages that use it
	// (QueryPlanner, Outliner, Writer) fall back to deterministic template
	// logic when generation fails, so a permanently failing client still
	// yields a runnable pipeline.
	LLM llm.LLMClient

	// Emitter is optional; nil disables progress events.
	Emitter Emitter

	// Metrics is optional; nil disables prometheus instrumentation.
	Metrics *observability.PipelineMetrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Vetting policy; zero values take the documented defaults.
	Vetting VettingPolicy
}

// Pipeline executes research runs. Construct with NewPipeline.
type Pipeline struct {
	searcher Searcher
	llm      llm.LLMClient
	emitter  Emitter
	metrics  *observability.PipelineMetrics
	logger   *slog.Logger
	vetting  VettingPolicy
	stages   map[Stage]StageFunc
}

// NewPipeline validates collaborators and builds the dispatch table.
//
// # Inputs
//
//   - cfg: collaborators and policy. Searcher and LLM are required.
//
// # Outputs
//
//   - *Pipeline: ready for concurrent Run calls
//   - error: ErrNilCollaborator when a required collaborator is missing
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Searcher == nil || cfg.LLM == nil {
		return nil, ErrNilCollaborator
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Pipeline{
		searcher: cfg.Searcher,
		llm:      cfg.LLM,
		emitter:  cfg.Emitter,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		vetting:  cfg.Vetting.withDefaults(),
	}
	p.stages = map[Stage]StageFunc{
		StageRetriever:         p.runRetriever,
		StageSourceVetter:      p.runSourceVetter,
		StageOutliner:          p.runOutliner,
		StageWriter:            p.runWriter,
		StageClaimExtractor:    p.runClaimExtractor,
		StageCitationValidator: p.runCitationValidator,
		StageFactChecker:       p.runFactChecker,
		StageEvaluator:         p.runEvaluator,
		StageRepairAgent:       p.runRepairAgent,
		StageExporter:          p.runExporter,
	}
	return p, nil
}

// Run drives the state machine to a terminal state.
//
// # Description
//
// Executes stages strictly sequentially, checking for cancellation between
// stages (never mid-stage). On cancellation the run transitions to the
// canceled terminal status without invoking the Exporter. A fatal stage
// error records the failing stage and reason on the state and is returned
// wrapped in a StageError. Validation findings are not errors; they route
// through the Evaluator.
//
// # Inputs
//
//   - ctx: cancellation signal, checked at stage boundaries
//   - state: the run to execute; mutated in place, also returned
//
// # Outputs
//
//   - *datatypes.RunState: the same state, at a terminal status
//   - error: nil on stop_success; ctx error on cancellation; StageError
//     on fatal stage failure
func (p *Pipeline) Run(ctx context.Context, state *datatypes.RunState) (*datatypes.RunState, error) {
	if state.Query == "" {
		state.Status = datatypes.RunStatusFailed
		state.FailureReason = ErrEmptyQuery.Error()
		return state, ErrEmptyQuery
	}
	p.metrics.RunStarted()
	defer p.metrics.RunFinished()

	log := p.logger.With("run_id", state.RunID, "tenant_id", state.TenantID)
	log.Info("pipeline run starting", "query", state.Query,
		"max_iterations", state.MaxIterations, "max_repair_attempts", state.MaxRepairAttempts)

	current := StageRetriever
	for {
		select {
		case <-ctx.Done():
			state.Status = datatypes.RunStatusCanceled
			state.FailureReason = ctx.Err().Error()
			state.CompletedAt = time.Now().UTC()
			log.Warn("pipeline run canceled", "at_stage", string(current))
			p.metrics.RunCompleted(string(state.Status), "")
			return state, ctx.Err()
		default:
		}

		fn, ok := p.stages[current]
		if !ok {
			state.Status = datatypes.RunStatusFailed
			state.FailureReason = ErrUnknownStage.Error()
			state.FailedStage = string(current)
			return state, &StageError{Stage: current, Err: ErrUnknownStage}
		}

		// Counters are owned by this loop, not by the stages: the iteration
		// counter lands before the Evaluator reads it, and the repair budget
		// is spent before the RepairAgent edits anything.
		switch current {
		case StageEvaluator:
			state.IterationCount++
		case StageRepairAgent:
			state.RepairAttempts++
			p.metrics.RepairAttempt()
		}

		start := time.Now()
		stageCtx, span := tracer.Start(ctx, "pipeline."+string(current))
		span.SetAttributes(
			attribute.String("run.id", state.RunID),
			attribute.Int("run.iteration", state.IterationCount),
		)
		err := fn(stageCtx, state)
		took := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		p.metrics.ObserveStage(string(current), took)
		if p.emitter != nil {
			p.emitter.EmitProgress(ctx, datatypes.NewProgressEvent(state, string(current), took))
		}

		if err != nil {
			state.Status = datatypes.RunStatusFailed
			state.FailureReason = err.Error()
			state.FailedStage = string(current)
			state.CompletedAt = time.Now().UTC()
			log.Error("pipeline stage failed", "stage", string(current), "error", err)
			p.metrics.RunCompleted(string(state.Status), "")
			return state, &StageError{Stage: current, Err: err}
		}

		if current == StageExporter {
			state.Status = datatypes.RunStatusSucceeded
			state.CompletedAt = time.Now().UTC()
			log.Info("pipeline run complete",
				"iterations", state.IterationCount,
				"repair_attempts", state.RepairAttempts,
				"reason", state.EvaluationReason)
			p.metrics.RunCompleted(string(state.Status), string(state.EvaluatorDecision))
			return state, nil
		}

		current = p.next(current, state)
	}
}

// next is the routing function: pure given (stage, state).
func (p *Pipeline) next(current Stage, state *datatypes.RunState) Stage {
	if current == StageEvaluator {
		if s, ok := decisionNext[state.EvaluatorDecision]; ok {
			return s
		}
		// A total Evaluator never leaves the decision unset; exporting is
		// the safe terminal if it somehow does.
		return StageExporter
	}
	return linearNext[current]
}
