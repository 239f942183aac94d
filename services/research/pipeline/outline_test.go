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
	"github.com/AleutianAI/AleutianResearch/services/research/llm"
)

func TestParseOutline(t *testing.T) {
	text := "1. Background | prevalence and definitions\n" +
		"2) Mechanisms | neural evidence\n" +
		"not an outline line\n" +
		"3. Open Questions\n"

	outline := parseOutline(text, "sleep deprivation")
	require.Len(t, outline, 3)

	assert.Equal(t, "1", outline[0].SectionID)
	assert.Equal(t, "Background", outline[0].Title)
	assert.Equal(t, "prevalence and definitions", outline[0].Description)
	assert.Equal(t, []string{"Background sleep deprivation"}, outline[0].EvidenceQueries)

	assert.Equal(t, "2", outline[1].SectionID)
	assert.Equal(t, "Mechanisms", outline[1].Title)

	// No description is fine.
	assert.Equal(t, "3", outline[2].SectionID)
	assert.Empty(t, outline[2].Description)
}

func TestParseOutline_CapsSections(t *testing.T) {
	text := ""
	for i := 1; i <= maxOutlineSections+4; i++ {
		text += string(rune('0'+i%10)) + ". Section\n"
	}
	outline := parseOutline(text, "q")
	assert.Len(t, outline, maxOutlineSections)
}

func TestRunOutliner_LLMPath(t *testing.T) {
	client := &mockLLM{
		generateFn: func(context.Context, string, llm.GenerationParams) (string, error) {
			return "1. Background | context\n2. Findings | core results", nil
		},
	}
	p, err := NewPipeline(Config{Searcher: &mockSearcher{}, LLM: client, Logger: quietLogger()})
	require.NoError(t, err)

	state := datatypes.NewRunState("t", "sleep deprivation")
	require.NoError(t, p.runOutliner(context.Background(), state))

	require.Len(t, state.Outline, 2)
	assert.Equal(t, "Background", state.Outline[0].Title)
	assert.Equal(t, "Findings", state.Outline[1].Title)
}

func TestRunOutliner_FallbackOnGenerationFailure(t *testing.T) {
	p := newTestPipeline(t, &mockSearcher{})
	state := datatypes.NewRunState("t", "sleep deprivation")
	state.AddGeneratedQueries("sleep deprivation memory", "sleep deprivation attention")

	require.NoError(t, p.runOutliner(context.Background(), state))

	require.Len(t, state.Outline, 2)
	assert.Equal(t, "1", state.Outline[0].SectionID)
	assert.Equal(t, "Sleep Deprivation Memory", state.Outline[0].Title)
	assert.Equal(t, []string{"sleep deprivation memory"}, state.Outline[0].EvidenceQueries)
}

func TestRunOutliner_FallbackOnUnparseableOutput(t *testing.T) {
	client := &mockLLM{
		generateFn: func(context.Context, string, llm.GenerationParams) (string, error) {
			return "Sure! Here is a great outline for you.", nil
		},
	}
	p, err := NewPipeline(Config{Searcher: &mockSearcher{}, LLM: client, Logger: quietLogger()})
	require.NoError(t, err)

	state := datatypes.NewRunState("t", "sleep deprivation")
	require.NoError(t, p.runOutliner(context.Background(), state))

	// Falls back to one section per query; no queries means the raw query.
	require.Len(t, state.Outline, 1)
	assert.Equal(t, "Sleep Deprivation", state.Outline[0].Title)
}
