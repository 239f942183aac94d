// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkDocument_ShortBodyIsOneSnippet(t *testing.T) {
	doc := Document{
		ID:       "src1",
		Title:    "Sleep and memory",
		Abstract: "Sleep deprivation impairs memory consolidation in adults.",
	}

	snippets, err := ChunkDocument(doc)
	require.NoError(t, err)
	require.Len(t, snippets, 1)

	sn := snippets[0]
	assert.Equal(t, "src1:s1", sn.ID)
	assert.Equal(t, "src1", sn.SourceID)
	assert.Equal(t, doc.Abstract, sn.Text)
	assert.Equal(t, 0, sn.CharStart)
	assert.Equal(t, len(doc.Abstract), sn.CharEnd)
}

func TestChunkDocument_EmptyBody(t *testing.T) {
	snippets, err := ChunkDocument(Document{ID: "src1", Title: "No text"})
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestChunkDocument_FullTextPreferredOverAbstract(t *testing.T) {
	doc := Document{
		ID:       "src1",
		Abstract: "The abstract.",
		FullText: "The full text of the paper.",
	}
	snippets, err := ChunkDocument(doc)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, doc.FullText, snippets[0].Text)
}

func TestChunkDocument_LongBodyOffsets(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 40; i++ {
		fmt.Fprintf(&b, "Sentence number %d reports an effect of sleep loss on recall. ", i)
	}
	body := strings.TrimSpace(b.String())
	doc := Document{ID: "src1", FullText: body}

	snippets, err := ChunkDocument(doc)
	require.NoError(t, err)
	require.Greater(t, len(snippets), 1)

	for i, sn := range snippets {
		assert.Equal(t, fmt.Sprintf("src1:s%d", i+1), sn.ID)
		require.GreaterOrEqual(t, sn.CharStart, 0)
		require.LessOrEqual(t, sn.CharEnd, len(body))
		// Offsets must locate the snippet text exactly, overlap included.
		assert.Equal(t, sn.Text, body[sn.CharStart:sn.CharEnd])
	}
}
