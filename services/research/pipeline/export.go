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
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// Artifact names produced by the exporter.
const (
	ArtifactReportMarkdown = "report.md"
	ArtifactReportJSON     = "report.json"
)

// reportDocument is the machine-readable export shape.
type reportDocument struct {
	RunID            string                       `json:"run_id"`
	TenantID         string                       `json:"tenant_id"`
	Query            string                       `json:"query"`
	Goal             string                       `json:"goal,omitempty"`
	GeneratedAt      time.Time                    `json:"generated_at"`
	DraftVersion     int                          `json:"draft_version"`
	Iterations       int                          `json:"iterations"`
	RepairAttempts   int                          `json:"repair_attempts"`
	EvaluationReason string                       `json:"evaluation_reason"`
	Draft            string                       `json:"draft"`
	Sources          []datatypes.SourceRef        `json:"sources"`
	Claims           []datatypes.Claim            `json:"claims"`
	FactChecks       []datatypes.FactCheckResult  `json:"fact_checks"`
	ResidualFindings []datatypes.ValidationError  `json:"residual_findings,omitempty"`
	Snippets         []datatypes.EvidenceSnippetRef `json:"snippets"`
}

// runExporter renders the final report artifacts into state.Artifacts.
//
// # Description
//
// Produces two artifacts: a human-readable markdown report (draft body,
// numbered reference list from the vetted sources, and a residual-findings
// appendix when the run stopped best-effort) and a machine-readable JSON
// document carrying the full provenance chain from claims to snippets to
// sources. Exporting never fails the run short of a marshaling bug.
func (p *Pipeline) runExporter(_ context.Context, state *datatypes.RunState) error {
	doc := reportDocument{
		RunID:            state.RunID,
		TenantID:         state.TenantID,
		Query:            state.Query,
		Goal:             state.Goal,
		GeneratedAt:      time.Now().UTC(),
		DraftVersion:     state.DraftVersion,
		Iterations:       state.IterationCount,
		RepairAttempts:   state.RepairAttempts,
		EvaluationReason: state.EvaluationReason,
		Draft:            state.DraftText,
		Sources:          state.VettedSources,
		Claims:           state.ExtractedClaims,
		FactChecks:       state.FactCheckResults,
		ResidualFindings: state.CitationErrors,
		Snippets:         state.EvidenceSnippets,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("exporter: marshal report: %w", err)
	}

	if state.Artifacts == nil {
		state.Artifacts = make(map[string]string, 2)
	}
	state.Artifacts[ArtifactReportJSON] = string(raw)
	state.Artifacts[ArtifactReportMarkdown] = renderMarkdown(state)

	p.logger.Info("report exported",
		"run_id", state.RunID,
		"markdown_bytes", len(state.Artifacts[ArtifactReportMarkdown]),
		"json_bytes", len(raw))
	return nil
}

// renderMarkdown builds the human-readable report.
func renderMarkdown(state *datatypes.RunState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", state.Query)
	if state.Goal != "" {
		fmt.Fprintf(&b, "*Goal: %s*\n\n", state.Goal)
	}
	b.WriteString(state.DraftText)
	b.WriteString("\n")

	if len(state.VettedSources) > 0 {
		b.WriteString("\n## References\n\n")
		for i, src := range state.VettedSources {
			fmt.Fprintf(&b, "%d. %s", i+1, src.Title)
			if len(src.Authors) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(src.Authors, ", "))
			}
			if src.Year > 0 {
				fmt.Fprintf(&b, ", %d", src.Year)
			}
			if src.URL != "" {
				fmt.Fprintf(&b, ". %s", src.URL)
			}
			b.WriteString("\n")
		}
	}

	if len(state.CitationErrors) > 0 {
		b.WriteString("\n## Residual Findings\n\n")
		fmt.Fprintf(&b, "Exported with %d unresolved findings (%s).\n\n",
			len(state.CitationErrors), state.EvaluationReason)
		for _, f := range state.CitationErrors {
			fmt.Fprintf(&b, "- [%s/%s] %s: %s\n", f.Severity, f.Kind, f.ClaimID, f.Description)
		}
	}

	fmt.Fprintf(&b, "\n---\nGenerated in %d iteration(s), %d repair pass(es). Draft v%d.\n",
		state.IterationCount, state.RepairAttempts, state.DraftVersion)
	return b.String()
}
