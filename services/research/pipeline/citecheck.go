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
	"fmt"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// runCitationValidator checks every claim's citations against the evidence.
//
// # Description
//
// Fail-closed for evidence-requiring claims: a citation is valid only when
// its id resolves to a known evidence snippet. Anything unresolvable is an
// invalid_citation error, and a claim with no citations at all is a
// missing_citation error. Both are critical. Claims that do not require
// evidence are skipped entirely and never produce a finding.
// The stage replaces CitationErrors wholesale on
// every visit so stale findings from a previous draft never linger; the
// FactChecker appends to the fresh list afterwards.
func (p *Pipeline) runCitationValidator(_ context.Context, state *datatypes.RunState) error {
	known := state.SnippetIDSet()

	var findings []datatypes.ValidationError
	for _, claim := range state.ExtractedClaims {
		if !claim.RequiresEvidence {
			continue
		}
		if len(claim.CitationIDs) == 0 {
			findings = append(findings, datatypes.ValidationError{
				Kind:        datatypes.ErrorMissingCitation,
				ClaimID:     claim.ClaimID,
				SectionID:   claim.SectionID,
				Description: "claim requires evidence but cites nothing",
				Severity:    datatypes.SeverityError,
			})
		}
		for _, cid := range claim.CitationIDs {
			if known[cid] {
				continue
			}
			findings = append(findings, datatypes.ValidationError{
				Kind:        datatypes.ErrorInvalidCitation,
				ClaimID:     claim.ClaimID,
				SectionID:   claim.SectionID,
				CitationID:  cid,
				Description: fmt.Sprintf("citation %q resolves to no known evidence snippet", cid),
				Severity:    datatypes.SeverityError,
			})
		}
	}
	state.CitationErrors = findings

	p.logger.Debug("citations validated",
		"run_id", state.RunID,
		"claims", len(state.ExtractedClaims),
		"findings", len(findings))
	return nil
}
