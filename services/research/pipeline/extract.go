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
	"regexp"
	"strconv"

	"github.com/AleutianAI/AleutianResearch/services/research/claims"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// factualIndicatorPattern flags sentences that assert empirical findings and
// therefore require evidence even without a citation marker present.
var factualIndicatorPattern = regexp.MustCompile(`(?i)\b(research|stud(?:y|ies)|evidence|results?|findings?|shows?|showed|shown|demonstrates?|demonstrated|indicates?|indicated|suggests?|suggested|prove[sdn]?|reports?|reported|according to|data|observed|measured|increase[sd]?|decrease[sd]?|significant)\b`)

const (
	// minClaimLen discards trailing fragments below this length.
	minClaimLen = 20

	// shortClaimLen marks sentences that never require evidence on length
	// grounds alone.
	shortClaimLen = 40
)

// runClaimExtractor decomposes the draft into atomic claims.
//
// # Description
//
// Deterministic and idempotent: the same draft always yields the same claim
// list with the same sequential ids, so re-running after a repair pass
// produces stable targets for validation. Sentences under 20 characters are
// dropped as fragments. A claim requires evidence when it carries a citation
// marker or matches the factual-indicator lexicon; headers and sentences
// under 40 characters never require evidence.
//
// # Outputs
//
//   - error: ErrEmptyDraft when the Writer left no text (fatal precondition)
func (p *Pipeline) runClaimExtractor(_ context.Context, state *datatypes.RunState) error {
	if state.DraftText == "" {
		return ErrEmptyDraft
	}

	draft := claims.ParseDraft(state.DraftText)
	var extracted []datatypes.Claim
	for _, sec := range draft.Sections {
		for _, sent := range sec.Sentences {
			if sent.IsHeader() {
				continue
			}
			text := sent.Text
			if len(claims.StripCitations(text)) < minClaimLen {
				continue
			}
			extracted = append(extracted, datatypes.Claim{
				ClaimID:          "claim_" + strconv.Itoa(len(extracted)+1),
				Text:             text,
				SectionID:        sec.ID,
				CitationIDs:      sent.Citations(),
				RequiresEvidence: requiresEvidence(sent),
			})
		}
	}
	state.ExtractedClaims = extracted

	p.logger.Debug("claims extracted",
		"run_id", state.RunID,
		"draft_version", state.DraftVersion,
		"claims", len(extracted))
	return nil
}

// requiresEvidence applies the evidence heuristic to one sentence.
func requiresEvidence(sent claims.Sentence) bool {
	if sent.IsHeader() {
		return false
	}
	plain := claims.StripCitations(sent.Text)
	if len(plain) < shortClaimLen {
		return false
	}
	if len(sent.Citations()) > 0 {
		return true
	}
	return factualIndicatorPattern.MatchString(plain)
}
