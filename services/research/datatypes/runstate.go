// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the data model shared by the research pipeline
// stages, the driver API, and the run store.
//
// # Description
//
// The central type is RunState: the single mutable record threaded through
// every pipeline stage. A RunState is created once per pipeline invocation,
// mutated in place by exactly one stage at a time, and persisted externally
// once it reaches a terminal status.
//
// # Ownership Model
//
// RunState has a single owner: the pipeline driver loop. Stages receive a
// pointer and mutate it synchronously; no two stages of the same run ever
// run concurrently. Different runs are fully independent and may execute in
// parallel; nothing in this package holds cross-run state.
package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Budgets and Status
// =============================================================================

const (
	// DefaultMaxIterations bounds full passes through the stage sequence.
	DefaultMaxIterations = 5

	// DefaultMaxRepairAttempts bounds RepairAgent invocations per run.
	DefaultMaxRepairAttempts = 3

	// MaxGeneratedQueries caps the search queries derived from one request.
	MaxGeneratedQueries = 20
)

// RunStatus is the lifecycle status of a pipeline run.
type RunStatus string

const (
	// RunStatusRunning marks a run currently executing stages.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded marks a run that reached the Exporter, possibly
	// with residual warnings (best-effort exits land here too).
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed marks a run aborted by a fatal stage error.
	RunStatusFailed RunStatus = "failed"

	// RunStatusCanceled marks a run stopped by context cancellation
	// between stages. No artifact is exported.
	RunStatusCanceled RunStatus = "canceled"
)

// Decision is the Evaluator's routing verdict.
type Decision string

const (
	// DecisionStopSuccess terminates the run via the Exporter.
	DecisionStopSuccess Decision = "stop_success"

	// DecisionContinueRepair routes to the RepairAgent.
	DecisionContinueRepair Decision = "continue_repair"

	// DecisionContinueRetrieve loops back to the Retriever for more evidence.
	DecisionContinueRetrieve Decision = "continue_retrieve"

	// DecisionContinueRewrite loops back to the Writer for a fresh draft.
	DecisionContinueRewrite Decision = "continue_rewrite"
)

// =============================================================================
// Sources, Evidence, Outline
// =============================================================================

// SourceRef identifies one retrieved source document.
//
// # Fields
//
//   - ID: stable identifier assigned by the retrieval collaborator
//   - CanonicalID: cross-connector identity (DOI or similar) used for
//     duplicate merging; may be empty
//   - QualityScore: vetting score in [0,1], written by the SourceVetter
type SourceRef struct {
	ID           string   `json:"id"`
	CanonicalID  string   `json:"canonical_id,omitempty"`
	Title        string   `json:"title"`
	Authors      []string `json:"authors,omitempty"`
	Year         int      `json:"year,omitempty"`
	URL          string   `json:"url,omitempty"`
	PDFURL       string   `json:"pdf_url,omitempty"`
	Connector    string   `json:"connector"`
	QualityScore float64  `json:"quality_score"`
}

// EvidenceSnippetRef is a character-offset-addressable excerpt from a vetted
// source. Snippets are immutable once produced by retrieval; they are the
// unit of citation for the whole pipeline.
type EvidenceSnippetRef struct {
	ID        string `json:"id"`
	SourceID  string `json:"source_id"`
	Text      string `json:"text"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
}

// OutlineSection is one planned report section.
//
// SectionID uses dotted numbering ("1", "1.2", ...) matching the "## " draft
// markers the ClaimExtractor recognizes.
type OutlineSection struct {
	SectionID       string   `json:"section_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	EvidenceQueries []string `json:"evidence_queries,omitempty"`
}

// =============================================================================
// Claims and Validation Findings
// =============================================================================

// Claim is an atomic, citation-taggable sentence extracted from a draft.
type Claim struct {
	ClaimID          string   `json:"claim_id"`
	Text             string   `json:"text"`
	SectionID        string   `json:"section_id,omitempty"`
	CitationIDs      []string `json:"citation_ids,omitempty"`
	RequiresEvidence bool     `json:"requires_evidence"`
}

// ErrorKind classifies a validation finding.
type ErrorKind string

const (
	// ErrorMissingCitation marks an evidence-requiring claim with no citations.
	ErrorMissingCitation ErrorKind = "missing_citation"

	// ErrorInvalidCitation marks a citation id that resolves to no known snippet.
	ErrorInvalidCitation ErrorKind = "invalid_citation"

	// ErrorUnsupportedClaim marks a claim whose evidence does not reach the
	// support threshold (warning severity).
	ErrorUnsupportedClaim ErrorKind = "unsupported_claim"

	// ErrorContradictedClaim marks a claim whose cited evidence contradicts it.
	ErrorContradictedClaim ErrorKind = "contradicted_claim"
)

// Severity ranks a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IsCritical reports whether the kind blocks export until repaired.
func (k ErrorKind) IsCritical() bool {
	switch k {
	case ErrorMissingCitation, ErrorInvalidCitation, ErrorContradictedClaim:
		return true
	default:
		return false
	}
}

// ValidationError is a first-class validation finding. Findings are data, not
// Go errors: they flow through the Evaluator and are recoverable via the
// RepairAgent.
type ValidationError struct {
	Kind        ErrorKind `json:"kind"`
	ClaimID     string    `json:"claim_id"`
	SectionID   string    `json:"section_id,omitempty"`
	CitationID  string    `json:"citation_id,omitempty"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
}

// FactStatus is the FactChecker's verdict for one claim.
type FactStatus string

const (
	FactSupported    FactStatus = "supported"
	FactContradicted FactStatus = "contradicted"
	FactInsufficient FactStatus = "insufficient"
	FactNotChecked   FactStatus = "not_checked"
)

// FactCheckResult records keyword-overlap support scoring for one claim.
type FactCheckResult struct {
	ClaimID               string     `json:"claim_id"`
	Status                FactStatus `json:"status"`
	Confidence            float64    `json:"confidence"`
	SupportingSnippetIDs  []string   `json:"supporting_snippet_ids,omitempty"`
	ContradictingSnippets []string   `json:"contradicting_snippet_ids,omitempty"`
	Explanation           string     `json:"explanation,omitempty"`
}

// RepairPlan collects the targets of one RepairAgent pass.
type RepairPlan struct {
	TargetClaimIDs           []string `json:"target_claim_ids"`
	TargetSectionIDs         []string `json:"target_section_ids"`
	Strategy                 string   `json:"strategy"`
	AdditionalEvidenceNeeded bool     `json:"additional_evidence_needed"`
}

// =============================================================================
// RunState
// =============================================================================

// RunState is the single mutable record threaded through every stage.
//
// # Description
//
// Identity fields (TenantID, RunID, ProjectID) are immutable after creation.
// Counters are monotonic and never reset within a run. EvidenceSnippets are
// append-only: retrieval may add, nothing ever removes or rewrites one.
//
// # Thread Safety
//
// NOT safe for concurrent use. The pipeline driver is the single owner;
// stages mutate it strictly sequentially.
type RunState struct {
	// --- identity (immutable after creation) ---
	TenantID  string `json:"tenant_id"`
	RunID     string `json:"run_id"`
	ProjectID string `json:"project_id,omitempty"`

	// --- input ---
	Query       string            `json:"query"`
	Goal        string            `json:"goal,omitempty"`
	Constraints map[string]string `json:"constraints,omitempty"`

	// --- working data ---
	GeneratedQueries []string             `json:"generated_queries,omitempty"`
	RetrievedSources []SourceRef          `json:"retrieved_sources,omitempty"`
	VettedSources    []SourceRef          `json:"vetted_sources,omitempty"`
	EvidenceSnippets []EvidenceSnippetRef `json:"evidence_snippets,omitempty"`
	Outline          []OutlineSection     `json:"outline,omitempty"`
	DraftText        string               `json:"draft_text,omitempty"`
	DraftVersion     int                  `json:"draft_version"`
	ExtractedClaims  []Claim              `json:"extracted_claims,omitempty"`
	CitationErrors   []ValidationError    `json:"citation_errors,omitempty"`
	FactCheckResults []FactCheckResult    `json:"fact_check_results,omitempty"`
	RepairPlan       *RepairPlan          `json:"repair_plan,omitempty"`

	// --- budgets and counters (monotonic, owned by the driver loop) ---
	IterationCount    int `json:"iteration_count"`
	MaxIterations     int `json:"max_iterations"`
	RepairAttempts    int `json:"repair_attempts"`
	MaxRepairAttempts int `json:"max_repair_attempts"`

	// --- evaluation output ---
	EvaluatorDecision Decision `json:"evaluator_decision,omitempty"`
	EvaluationReason  string   `json:"evaluation_reason,omitempty"`

	// --- lifecycle ---
	Status        RunStatus `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	FailedStage   string    `json:"failed_stage,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`

	// --- exports (populated only by the Exporter) ---
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// NewRunState creates a RunState with defaults applied.
//
// # Inputs
//
//   - tenantID: owning tenant (required by the driver, not validated here)
//   - query: the user's research question
//
// # Outputs
//
//   - *RunState: status running, budgets at defaults, fresh run id
func NewRunState(tenantID, query string) *RunState {
	return &RunState{
		TenantID:          tenantID,
		RunID:             uuid.NewString(),
		Query:             query,
		MaxIterations:     DefaultMaxIterations,
		MaxRepairAttempts: DefaultMaxRepairAttempts,
		Status:            RunStatusRunning,
		CreatedAt:         time.Now().UTC(),
	}
}

// AddGeneratedQueries appends queries, deduplicating (case-sensitive, exact)
// and preserving insertion order, capped at MaxGeneratedQueries.
func (s *RunState) AddGeneratedQueries(queries ...string) {
	seen := make(map[string]bool, len(s.GeneratedQueries))
	for _, q := range s.GeneratedQueries {
		seen[q] = true
	}
	for _, q := range queries {
		if q == "" || seen[q] {
			continue
		}
		if len(s.GeneratedQueries) >= MaxGeneratedQueries {
			return
		}
		s.GeneratedQueries = append(s.GeneratedQueries, q)
		seen[q] = true
	}
}

// SnippetIDSet returns the set of known evidence snippet ids. This is the
// reference set the CitationValidator checks citations against.
func (s *RunState) SnippetIDSet() map[string]bool {
	set := make(map[string]bool, len(s.EvidenceSnippets))
	for _, sn := range s.EvidenceSnippets {
		set[sn.ID] = true
	}
	return set
}

// SnippetByID returns the snippet with the given id, if known.
func (s *RunState) SnippetByID(id string) (EvidenceSnippetRef, bool) {
	for _, sn := range s.EvidenceSnippets {
		if sn.ID == id {
			return sn, true
		}
	}
	return EvidenceSnippetRef{}, false
}

// ClaimByID returns the extracted claim with the given id, if present.
func (s *RunState) ClaimByID(id string) (Claim, bool) {
	for _, c := range s.ExtractedClaims {
		if c.ClaimID == id {
			return c, true
		}
	}
	return Claim{}, false
}

// CriticalErrorCount counts findings whose kind blocks export.
func (s *RunState) CriticalErrorCount() int {
	n := 0
	for _, e := range s.CitationErrors {
		if e.Kind.IsCritical() {
			n++
		}
	}
	return n
}

// WarningCount counts unsupported_claim warnings.
func (s *RunState) WarningCount() int {
	n := 0
	for _, e := range s.CitationErrors {
		if e.Kind == ErrorUnsupportedClaim {
			n++
		}
	}
	return n
}

// Terminal reports whether the run reached a terminal status.
func (s *RunState) Terminal() bool {
	return s.Status != RunStatusRunning
}
