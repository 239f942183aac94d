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

	"github.com/AleutianAI/AleutianResearch/services/research/claims"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

func sentenceOf(text string) claims.Sentence {
	return claims.Sentence{Text: text}
}

const extractDraft = "## 1. Background\n\n" +
	"Research shows that sleep deprivation impairs memory consolidation in adults [CITE:s1]. " +
	"Short note. " +
	"A purely descriptive sentence about the overall structure of the document.\n\n" +
	"## 2. Findings\n\n" +
	"Observed attention deficits increased significantly after one sleepless night [CITE:s2]."

func TestRunClaimExtractor_EmptyDraftFails(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := datatypes.NewRunState("t", "q")

	err := p.runClaimExtractor(context.Background(), s)
	assert.ErrorIs(t, err, ErrEmptyDraft)
}

func TestRunClaimExtractor_Basics(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := datatypes.NewRunState("t", "q")
	s.DraftText = extractDraft

	require.NoError(t, p.runClaimExtractor(context.Background(), s))

	// "Short note." is under 20 characters and dropped; headers never
	// become claims.
	require.Len(t, s.ExtractedClaims, 3)

	first := s.ExtractedClaims[0]
	assert.Equal(t, "claim_1", first.ClaimID)
	assert.Equal(t, "1", first.SectionID)
	assert.Equal(t, []string{"s1"}, first.CitationIDs)
	assert.True(t, first.RequiresEvidence)

	second := s.ExtractedClaims[1]
	assert.Equal(t, "claim_2", second.ClaimID)
	assert.Empty(t, second.CitationIDs)
	// No citation and no factual indicator: evidence not required.
	assert.False(t, second.RequiresEvidence)

	third := s.ExtractedClaims[2]
	assert.Equal(t, "claim_3", third.ClaimID)
	assert.Equal(t, "2", third.SectionID)
	assert.True(t, third.RequiresEvidence)
}

func TestRunClaimExtractor_Idempotent(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := datatypes.NewRunState("t", "q")
	s.DraftText = extractDraft

	require.NoError(t, p.runClaimExtractor(context.Background(), s))
	first := s.ExtractedClaims

	require.NoError(t, p.runClaimExtractor(context.Background(), s))
	assert.Equal(t, first, s.ExtractedClaims)
}

func TestRequiresEvidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "header never requires evidence",
			text: "## 1. A header that is well over forty characters long in total",
			want: false,
		},
		{
			name: "short sentence never requires evidence",
			text: "Research shows gains.",
			want: false,
		},
		{
			name: "citation forces requirement",
			text: "This longer sentence carries an explicit marker somewhere [CITE:s1].",
			want: true,
		},
		{
			name: "factual indicator forces requirement",
			text: "The study demonstrated a significant increase in recall errors.",
			want: true,
		},
		{
			name: "prove stem forces requirement",
			text: "These experiments prove a causal link between exposure and outcome rates.",
			want: true,
		},
		{
			name: "long but non-factual",
			text: "We now turn to the broader organization of the remaining chapters.",
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := requiresEvidence(sentenceOf(tt.text))
			assert.Equal(t, tt.want, got)
		})
	}
}
