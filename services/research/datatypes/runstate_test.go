// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunState_Defaults(t *testing.T) {
	s := NewRunState("acme", "effects of sleep deprivation")

	assert.Equal(t, "acme", s.TenantID)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, "effects of sleep deprivation", s.Query)
	assert.Equal(t, DefaultMaxIterations, s.MaxIterations)
	assert.Equal(t, DefaultMaxRepairAttempts, s.MaxRepairAttempts)
	assert.Equal(t, RunStatusRunning, s.Status)
	assert.False(t, s.CreatedAt.IsZero())
	assert.False(t, s.Terminal())
}

func TestNewRunState_UniqueRunIDs(t *testing.T) {
	a := NewRunState("acme", "q")
	b := NewRunState("acme", "q")
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestAddGeneratedQueries_Dedup(t *testing.T) {
	s := NewRunState("acme", "q")
	s.AddGeneratedQueries("alpha", "beta", "alpha", "", "beta")
	assert.Equal(t, []string{"alpha", "beta"}, s.GeneratedQueries)

	// A later call keeps insertion order and still deduplicates.
	s.AddGeneratedQueries("beta", "gamma")
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, s.GeneratedQueries)
}

func TestAddGeneratedQueries_Cap(t *testing.T) {
	s := NewRunState("acme", "q")
	for i := 0; i < MaxGeneratedQueries+10; i++ {
		s.AddGeneratedQueries(fmt.Sprintf("query %d", i))
	}
	assert.Len(t, s.GeneratedQueries, MaxGeneratedQueries)
}

func TestSnippetLookups(t *testing.T) {
	s := NewRunState("acme", "q")
	s.EvidenceSnippets = []EvidenceSnippetRef{
		{ID: "src1:s1", SourceID: "src1", Text: "first"},
		{ID: "src1:s2", SourceID: "src1", Text: "second"},
	}

	set := s.SnippetIDSet()
	assert.True(t, set["src1:s1"])
	assert.True(t, set["src1:s2"])
	assert.False(t, set["src2:s1"])

	sn, ok := s.SnippetByID("src1:s2")
	require.True(t, ok)
	assert.Equal(t, "second", sn.Text)

	_, ok = s.SnippetByID("missing")
	assert.False(t, ok)
}

func TestClaimByID(t *testing.T) {
	s := NewRunState("acme", "q")
	s.ExtractedClaims = []Claim{
		{ClaimID: "claim_1", Text: "a"},
		{ClaimID: "claim_2", Text: "b"},
	}

	c, ok := s.ClaimByID("claim_2")
	require.True(t, ok)
	assert.Equal(t, "b", c.Text)

	_, ok = s.ClaimByID("claim_9")
	assert.False(t, ok)
}

func TestErrorKind_IsCritical(t *testing.T) {
	assert.True(t, ErrorMissingCitation.IsCritical())
	assert.True(t, ErrorInvalidCitation.IsCritical())
	assert.True(t, ErrorContradictedClaim.IsCritical())
	assert.False(t, ErrorUnsupportedClaim.IsCritical())
}

func TestFindingCounts(t *testing.T) {
	s := NewRunState("acme", "q")
	s.CitationErrors = []ValidationError{
		{Kind: ErrorMissingCitation, Severity: SeverityError},
		{Kind: ErrorInvalidCitation, Severity: SeverityError},
		{Kind: ErrorContradictedClaim, Severity: SeverityError},
		{Kind: ErrorUnsupportedClaim, Severity: SeverityWarning},
		{Kind: ErrorUnsupportedClaim, Severity: SeverityWarning},
	}

	assert.Equal(t, 3, s.CriticalErrorCount())
	assert.Equal(t, 2, s.WarningCount())
}

func TestTerminal(t *testing.T) {
	s := NewRunState("acme", "q")
	assert.False(t, s.Terminal())

	for _, status := range []RunStatus{RunStatusSucceeded, RunStatusFailed, RunStatusCanceled} {
		s.Status = status
		assert.True(t, s.Terminal(), string(status))
	}
}
