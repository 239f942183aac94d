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
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianResearch/services/research/claims"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// =============================================================================
// Keyword scoring
// =============================================================================

// negationPattern flags evidence whose overlap with the claim is polarized:
// shared vocabulary plus a negation reads as contradiction, not support.
var negationPattern = regexp.MustCompile(`(?i)\b(not|never|no|false|incorrect|contrary)\b`)

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// stopwords are excluded from overlap scoring. Deliberately small: the goal
// is removing glue words, not full NLP normalization.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "are": true, "was": true, "were": true,
	"have": true, "has": true, "had": true, "been": true, "its": true,
	"their": true, "which": true, "these": true, "those": true,
	"into": true, "than": true, "more": true, "most": true, "also": true,
	"can": true, "may": true, "will": true, "would": true, "could": true,
	"such": true, "other": true, "some": true, "all": true, "but": true,
	"when": true, "where": true, "while": true, "over": true, "about": true,
}

// keywordSet lowercases the text and returns its non-stopword tokens of
// length > 3.
func keywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(w) <= 3 || stopwords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

// overlapRatio scores how much of the claim's vocabulary the evidence covers:
// matched claim keywords over total claim keywords, in [0,1].
func overlapRatio(claimKeywords, evidenceKeywords map[string]bool) float64 {
	if len(claimKeywords) == 0 {
		return 0
	}
	matched := 0
	for w := range claimKeywords {
		if evidenceKeywords[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(claimKeywords))
}

// =============================================================================
// Thresholds
// =============================================================================

const (
	// supportVote is the per-snippet overlap ratio counting as support.
	supportVote = 0.4

	// contradictionVote is the per-snippet overlap ratio that, combined
	// with a negation term in the evidence, counts as contradiction.
	contradictionVote = 0.3

	// verdictThreshold is the aggregate score a verdict must exceed.
	verdictThreshold = 0.5
)

// =============================================================================
// Stage
// =============================================================================

// runFactChecker scores each evidence-requiring claim against its cited
// snippets.
//
// # Description
//
// Purely lexical: support is the fraction of cited snippets whose keyword
// overlap with the claim exceeds the support vote threshold; contradiction is
// the fraction whose overlap exceeds the contradiction vote threshold while
// the snippet carries a negation term. Each snippet casts at most one vote,
// with contradiction checked first: a snippet clearing both thresholds counts
// only as contradiction, never additionally as support. Verdicts:
//
//	contradiction > 0.5          -> contradicted (critical finding appended)
//	else support > 0.5           -> supported
//	else                         -> insufficient (warning finding appended)
//
// Claims with requires_evidence=false are recorded not_checked with full
// confidence. Claims whose citations all failed validation get status
// insufficient with zero confidence but no unsupported_claim warning: the
// invalid_citation errors already cover them and a duplicate warning would
// double-penalize the Evaluator's tally.
//
// FactCheckResults is replaced wholesale; findings append to the
// CitationValidator's fresh list.
func (p *Pipeline) runFactChecker(_ context.Context, state *datatypes.RunState) error {
	results := make([]datatypes.FactCheckResult, 0, len(state.ExtractedClaims))

	for _, claim := range state.ExtractedClaims {
		if !claim.RequiresEvidence {
			results = append(results, datatypes.FactCheckResult{
				ClaimID:    claim.ClaimID,
				Status:     datatypes.FactNotChecked,
				Confidence: 1.0,
			})
			continue
		}

		result, finding := p.checkClaim(state, claim)
		results = append(results, result)
		if finding != nil {
			state.CitationErrors = append(state.CitationErrors, *finding)
		}
	}
	state.FactCheckResults = results

	p.logger.Debug("fact check complete",
		"run_id", state.RunID,
		"claims", len(state.ExtractedClaims),
		"critical_errors", state.CriticalErrorCount(),
		"warnings", state.WarningCount())
	return nil
}

// checkClaim scores one claim and returns the result plus an optional
// validation finding.
func (p *Pipeline) checkClaim(state *datatypes.RunState, claim datatypes.Claim) (datatypes.FactCheckResult, *datatypes.ValidationError) {
	claimKeywords := keywordSet(claims.StripCitations(claim.Text))

	var supporting, contradicting []string
	resolvable := 0
	for _, cid := range claim.CitationIDs {
		sn, ok := state.SnippetByID(cid)
		if !ok {
			continue
		}
		resolvable++
		ratio := overlapRatio(claimKeywords, keywordSet(sn.Text))
		switch {
		case ratio > contradictionVote && negationPattern.MatchString(sn.Text):
			contradicting = append(contradicting, cid)
		case ratio > supportVote:
			supporting = append(supporting, cid)
		}
	}

	if resolvable == 0 {
		// All citations were invalid or absent; the validator already
		// reported those findings.
		return datatypes.FactCheckResult{
			ClaimID:     claim.ClaimID,
			Status:      datatypes.FactInsufficient,
			Confidence:  0,
			Explanation: "no resolvable citations to score against",
		}, nil
	}

	supportScore := float64(len(supporting)) / float64(resolvable)
	contradictionScore := float64(len(contradicting)) / float64(resolvable)

	if contradictionScore > verdictThreshold {
		return datatypes.FactCheckResult{
				ClaimID:               claim.ClaimID,
				Status:                datatypes.FactContradicted,
				Confidence:            contradictionScore,
				SupportingSnippetIDs:  supporting,
				ContradictingSnippets: contradicting,
				Explanation:           fmt.Sprintf("%d of %d cited snippets contradict the claim", len(contradicting), resolvable),
			}, &datatypes.ValidationError{
				Kind:        datatypes.ErrorContradictedClaim,
				ClaimID:     claim.ClaimID,
				SectionID:   claim.SectionID,
				Description: "cited evidence contradicts the claim",
				Severity:    datatypes.SeverityError,
			}
	}

	if supportScore > verdictThreshold {
		return datatypes.FactCheckResult{
			ClaimID:              claim.ClaimID,
			Status:               datatypes.FactSupported,
			Confidence:           supportScore,
			SupportingSnippetIDs: supporting,
		}, nil
	}

	return datatypes.FactCheckResult{
			ClaimID:              claim.ClaimID,
			Status:               datatypes.FactInsufficient,
			Confidence:           supportScore,
			SupportingSnippetIDs: supporting,
			Explanation:          fmt.Sprintf("%d of %d cited snippets support the claim", len(supporting), resolvable),
		}, &datatypes.ValidationError{
			Kind:        datatypes.ErrorUnsupportedClaim,
			ClaimID:     claim.ClaimID,
			SectionID:   claim.SectionID,
			Description: "cited evidence does not sufficiently support the claim",
			Severity:    datatypes.SeverityWarning,
		}
}
