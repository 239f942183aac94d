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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

func TestKeywordSet(t *testing.T) {
	set := keywordSet("The sleep deprivation study shows that memory declines")
	assert.True(t, set["sleep"])
	assert.True(t, set["deprivation"])
	assert.True(t, set["study"])
	assert.True(t, set["memory"])
	assert.True(t, set["declines"])
	assert.True(t, set["shows"])
	// Stopwords and short tokens are excluded.
	assert.False(t, set["the"])
	assert.False(t, set["that"])
}

func TestOverlapRatio(t *testing.T) {
	claim := keywordSet("sleep deprivation impairs memory consolidation")
	evidence := keywordSet("sleep deprivation reduces attention and memory")

	// claim keywords: sleep deprivation impairs memory consolidation (5);
	// matched: sleep deprivation memory (3).
	assert.InDelta(t, 3.0/5.0, overlapRatio(claim, evidence), 1e-9)

	assert.Zero(t, overlapRatio(map[string]bool{}, evidence))
	assert.Zero(t, overlapRatio(claim, map[string]bool{}))
}

// factState builds a state with one claim citing the given snippets.
func factState(claimText string, snippets []datatypes.EvidenceSnippetRef, citations []string) *datatypes.RunState {
	s := datatypes.NewRunState("t", "q")
	s.EvidenceSnippets = snippets
	s.ExtractedClaims = []datatypes.Claim{{
		ClaimID:          "claim_1",
		Text:             claimText,
		SectionID:        "1",
		CitationIDs:      citations,
		RequiresEvidence: true,
	}}
	return s
}

func TestRunFactChecker_Supported(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := factState(
		"Sleep deprivation impairs memory consolidation in adults [CITE:s1].",
		[]datatypes.EvidenceSnippetRef{
			{ID: "s1", Text: "Chronic sleep deprivation impairs memory consolidation across adults."},
		},
		[]string{"s1"},
	)

	require.NoError(t, p.runFactChecker(context.Background(), s))

	require.Len(t, s.FactCheckResults, 1)
	result := s.FactCheckResults[0]
	assert.Equal(t, datatypes.FactSupported, result.Status)
	assert.Equal(t, []string{"s1"}, result.SupportingSnippetIDs)
	assert.Greater(t, result.Confidence, 0.5)
	assert.Empty(t, s.CitationErrors)
}

func TestRunFactChecker_Contradicted(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := factState(
		"Sleep deprivation impairs memory consolidation [CITE:s1].",
		[]datatypes.EvidenceSnippetRef{
			{ID: "s1", Text: "Sleep deprivation does not impair memory consolidation in this cohort."},
		},
		[]string{"s1"},
	)

	require.NoError(t, p.runFactChecker(context.Background(), s))

	require.Len(t, s.FactCheckResults, 1)
	assert.Equal(t, datatypes.FactContradicted, s.FactCheckResults[0].Status)

	require.Len(t, s.CitationErrors, 1)
	assert.Equal(t, datatypes.ErrorContradictedClaim, s.CitationErrors[0].Kind)
	assert.Equal(t, datatypes.SeverityError, s.CitationErrors[0].Severity)
}

func TestRunFactChecker_ContradictionBeatsSupport(t *testing.T) {
	// High overlap plus a negation classifies as contradiction, never as
	// support, even though the overlap clears the support threshold too.
	p := newTestPipeline(t, &mockSearcher{})
	s := factState(
		"Sleep deprivation impairs memory consolidation [CITE:s1].",
		[]datatypes.EvidenceSnippetRef{
			{ID: "s1", Text: "Sleep deprivation never impairs memory consolidation."},
		},
		[]string{"s1"},
	)

	require.NoError(t, p.runFactChecker(context.Background(), s))
	assert.Equal(t, datatypes.FactContradicted, s.FactCheckResults[0].Status)
}

func TestRunFactChecker_Insufficient(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := factState(
		"Sleep deprivation impairs memory consolidation in adults [CITE:s1].",
		[]datatypes.EvidenceSnippetRef{
			{ID: "s1", Text: "Unrelated material about oceanic plankton blooms."},
		},
		[]string{"s1"},
	)

	require.NoError(t, p.runFactChecker(context.Background(), s))

	require.Len(t, s.FactCheckResults, 1)
	assert.Equal(t, datatypes.FactInsufficient, s.FactCheckResults[0].Status)

	require.Len(t, s.CitationErrors, 1)
	assert.Equal(t, datatypes.ErrorUnsupportedClaim, s.CitationErrors[0].Kind)
	assert.Equal(t, datatypes.SeverityWarning, s.CitationErrors[0].Severity)
}

func TestRunFactChecker_NoResolvableCitations(t *testing.T) {
	// Every citation is invalid: the validator already reported those, so
	// the checker records insufficient without adding a duplicate warning.
	p := newTestPipeline(t, &mockSearcher{})
	s := factState(
		"Sleep deprivation impairs memory consolidation in adults [CITE:ghost].",
		nil,
		[]string{"ghost"},
	)

	require.NoError(t, p.runFactChecker(context.Background(), s))

	require.Len(t, s.FactCheckResults, 1)
	result := s.FactCheckResults[0]
	assert.Equal(t, datatypes.FactInsufficient, result.Status)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, s.CitationErrors)
}

func TestRunFactChecker_NotRequiredSkipped(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := datatypes.NewRunState("t", "q")
	s.ExtractedClaims = []datatypes.Claim{{
		ClaimID: "claim_1", Text: "Short transition.", RequiresEvidence: false,
	}}

	require.NoError(t, p.runFactChecker(context.Background(), s))

	require.Len(t, s.FactCheckResults, 1)
	assert.Equal(t, datatypes.FactNotChecked, s.FactCheckResults[0].Status)
	assert.Equal(t, 1.0, s.FactCheckResults[0].Confidence)
}

func TestRunFactChecker_ReplacesResultsAppendsFindings(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := factState(
		"Sleep deprivation impairs memory consolidation in adults [CITE:s1].",
		[]datatypes.EvidenceSnippetRef{
			{ID: "s1", Text: "Unrelated material about oceanic plankton blooms."},
		},
		[]string{"s1"},
	)
	// Stale result from a previous visit, and a fresh validator finding.
	s.FactCheckResults = []datatypes.FactCheckResult{{ClaimID: "stale"}}
	s.CitationErrors = []datatypes.ValidationError{{
		Kind: datatypes.ErrorMissingCitation, ClaimID: "claim_0",
	}}

	require.NoError(t, p.runFactChecker(context.Background(), s))

	require.Len(t, s.FactCheckResults, 1)
	assert.Equal(t, "claim_1", s.FactCheckResults[0].ClaimID)

	// The validator's finding survives; the checker appended one warning.
	require.Len(t, s.CitationErrors, 2)
	assert.Equal(t, datatypes.ErrorMissingCitation, s.CitationErrors[0].Kind)
	assert.Equal(t, datatypes.ErrorUnsupportedClaim, s.CitationErrors[1].Kind)
}
