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
	"strings"

	"github.com/AleutianAI/AleutianResearch/services/research/claims"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// hedgePrefixes soften unsupported or contradicted claims. Selection is
// deterministic: always the first prefix the sentence does not already carry,
// so repeated repairs of the same draft are reproducible.
var hedgePrefixes = []string{
	"Preliminary evidence suggests ",
	"Some findings indicate ",
	"It has been reported that ",
}

// matchFloor is the keyword-overlap ratio a snippet must exceed to be
// spliced in as a citation for an uncited claim.
const matchFloor = 0.2

// runRepairAgent edits the draft to address the current validation findings.
//
// # Description
//
// The draft is parsed once into the sentence model, each finding is applied
// as a targeted sentence edit, and the model is rendered back:
//
//   - missing_citation: cite the best keyword-matching evidence snippet. When
//     no snippet clears the match floor, the claim stays uncited and the plan
//     flags that more evidence is needed.
//   - invalid_citation: remove the exact offending marker.
//   - unsupported_claim / contradicted_claim: prefix a hedge.
//
// Always increments DraftVersion, even when no edit landed, so downstream
// stages can tell drafts apart. The graph routes back to the ClaimExtractor
// afterwards; repairs are never trusted without re-validation.
func (p *Pipeline) runRepairAgent(_ context.Context, state *datatypes.RunState) error {
	draft := claims.ParseDraft(state.DraftText)
	plan := &datatypes.RepairPlan{Strategy: "targeted_sentence_edits"}

	edits := 0
	targetClaims := make(map[string]bool)
	targetSections := make(map[string]bool)
	for _, finding := range state.CitationErrors {
		claim, ok := state.ClaimByID(finding.ClaimID)
		if !ok {
			continue
		}
		si, ti, ok := claims.FindSentence(draft, claim.Text)
		if !ok {
			// Sentence already rewritten by an earlier edit this pass.
			continue
		}
		sentence := draft.Sections[si].Sentences[ti].Text

		var edited string
		switch finding.Kind {
		case datatypes.ErrorMissingCitation:
			snippetID, found := p.bestSnippet(claim, state.EvidenceSnippets)
			if !found {
				plan.AdditionalEvidenceNeeded = true
				continue
			}
			edited = claims.InsertCitation(sentence, snippetID)
		case datatypes.ErrorInvalidCitation:
			edited = claims.RemoveCitation(sentence, finding.CitationID)
		case datatypes.ErrorUnsupportedClaim, datatypes.ErrorContradictedClaim:
			edited = hedge(sentence)
		default:
			continue
		}
		if edited == sentence {
			continue
		}
		draft.Sections[si].Sentences[ti].Text = edited
		edits++
		targetClaims[finding.ClaimID] = true
		if finding.SectionID != "" {
			targetSections[finding.SectionID] = true
		}
	}

	for id := range targetClaims {
		plan.TargetClaimIDs = append(plan.TargetClaimIDs, id)
	}
	for id := range targetSections {
		plan.TargetSectionIDs = append(plan.TargetSectionIDs, id)
	}
	state.RepairPlan = plan
	state.DraftText = claims.Render(draft)
	state.DraftVersion++

	p.logger.Info("repair pass complete",
		"run_id", state.RunID,
		"repair_attempt", state.RepairAttempts,
		"findings", len(state.CitationErrors),
		"edits", edits,
		"needs_more_evidence", plan.AdditionalEvidenceNeeded)
	return nil
}

// bestSnippet picks the evidence snippet with the highest keyword overlap
// against the claim, requiring the ratio to clear the match floor. Ties keep
// evidence order.
func (p *Pipeline) bestSnippet(claim datatypes.Claim, snippets []datatypes.EvidenceSnippetRef) (string, bool) {
	claimKeywords := repairKeywords(claims.StripCitations(claim.Text))
	if len(claimKeywords) == 0 {
		return "", false
	}

	bestID, bestRatio := "", matchFloor
	for _, sn := range snippets {
		snKeywords := repairKeywords(sn.Text)
		matched := 0
		for w := range claimKeywords {
			if snKeywords[w] {
				matched++
			}
		}
		ratio := float64(matched) / float64(len(claimKeywords))
		if ratio > bestRatio {
			bestID, bestRatio = sn.ID, ratio
		}
	}
	return bestID, bestID != ""
}

// repairKeywords keeps only substantial tokens (length > 4); citation
// splicing wants topic words, not the broader vocabulary fact checking uses.
func repairKeywords(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(w) <= 4 || stopwords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

// hedge prefixes the sentence with the first hedge in the list, lowercasing
// the original lead. An already-hedged sentence is returned unchanged so
// repeated repairs never stack qualifiers.
func hedge(sentence string) string {
	for _, prefix := range hedgePrefixes {
		if strings.HasPrefix(sentence, prefix) {
			return sentence
		}
	}
	return hedgePrefixes[0] + lowerFirst(sentence)
}
