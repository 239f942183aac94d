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

func TestRunCitationValidator(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := datatypes.NewRunState("t", "q")
	s.EvidenceSnippets = []datatypes.EvidenceSnippetRef{
		{ID: "s1"}, {ID: "s2"},
	}
	s.ExtractedClaims = []datatypes.Claim{
		{ClaimID: "claim_1", SectionID: "1", CitationIDs: []string{"s1"}, RequiresEvidence: true},
		{ClaimID: "claim_2", SectionID: "1", RequiresEvidence: true},
		{ClaimID: "claim_3", SectionID: "2", CitationIDs: []string{"s2", "ghost"}, RequiresEvidence: true},
		{ClaimID: "claim_4", SectionID: "2", RequiresEvidence: false},
	}

	require.NoError(t, p.runCitationValidator(context.Background(), s))

	require.Len(t, s.CitationErrors, 2)

	missing := s.CitationErrors[0]
	assert.Equal(t, datatypes.ErrorMissingCitation, missing.Kind)
	assert.Equal(t, "claim_2", missing.ClaimID)
	assert.Equal(t, datatypes.SeverityError, missing.Severity)

	invalid := s.CitationErrors[1]
	assert.Equal(t, datatypes.ErrorInvalidCitation, invalid.Kind)
	assert.Equal(t, "claim_3", invalid.ClaimID)
	assert.Equal(t, "ghost", invalid.CitationID)
	assert.Equal(t, datatypes.SeverityError, invalid.Severity)
}

func TestRunCitationValidator_NonRequiredClaimsSkippedEntirely(t *testing.T) {
	// A claim outside the evidence requirement never yields a finding, even
	// when it carries an unresolvable marker.
	p := newTestPipeline(t, &mockSearcher{})
	s := datatypes.NewRunState("t", "q")
	s.ExtractedClaims = []datatypes.Claim{
		{ClaimID: "claim_1", CitationIDs: []string{"ghost"}, RequiresEvidence: false},
		{ClaimID: "claim_2", RequiresEvidence: false},
	}

	require.NoError(t, p.runCitationValidator(context.Background(), s))
	assert.Empty(t, s.CitationErrors)
}

func TestRunCitationValidator_ReplacesStaleFindings(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	s := datatypes.NewRunState("t", "q")
	s.EvidenceSnippets = []datatypes.EvidenceSnippetRef{{ID: "s1"}}
	s.ExtractedClaims = []datatypes.Claim{
		{ClaimID: "claim_1", CitationIDs: []string{"s1"}, RequiresEvidence: true},
	}
	s.CitationErrors = []datatypes.ValidationError{
		{Kind: datatypes.ErrorMissingCitation, ClaimID: "stale"},
	}

	require.NoError(t, p.runCitationValidator(context.Background(), s))
	assert.Empty(t, s.CitationErrors)
}
