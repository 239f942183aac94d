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
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

var memoryWordPattern = regexp.MustCompile(`[a-z0-9]+`)

// MemorySearcher is a keyword-overlap corpus index held in process memory.
//
// # Description
//
// Intended for tests, demos, and air-gapped deployments where no Weaviate
// instance exists. Ranking is a plain keyword-overlap count between the
// query terms and each document's title plus body; deterministic given the
// same corpus and queries.
//
// # Thread Safety
//
// Safe for concurrent use. Add locks for writes; Search and Snippets take
// the read lock.
type MemorySearcher struct {
	mu   sync.RWMutex
	docs []Document

	// MaxResults caps Search output per call. Default 25.
	MaxResults int
}

// NewMemorySearcher indexes the given corpus.
func NewMemorySearcher(docs ...Document) *MemorySearcher {
	return &MemorySearcher{docs: docs, MaxResults: 25}
}

// Add appends documents to the corpus.
func (m *MemorySearcher) Add(docs ...Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, docs...)
}

// Search ranks documents by keyword overlap against all queries combined.
// Documents with zero overlap are excluded.
func (m *MemorySearcher) Search(_ context.Context, queries []string) ([]datatypes.SourceRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]bool)
	for _, q := range queries {
		for _, w := range memoryWordPattern.FindAllString(strings.ToLower(q), -1) {
			if len(w) > 2 {
				want[w] = true
			}
		}
	}
	if len(want) == 0 {
		return nil, nil
	}

	type scored struct {
		doc   Document
		score int
	}
	var ranked []scored
	for _, doc := range m.docs {
		text := strings.ToLower(doc.Title + " " + doc.body())
		score := 0
		for w := range want {
			if strings.Contains(text, w) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{doc: doc, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	limit := m.MaxResults
	if limit <= 0 {
		limit = 25
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]datatypes.SourceRef, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.doc.SourceRef())
	}
	return out, nil
}

// Snippets chunks the bodies of the requested sources.
func (m *MemorySearcher) Snippets(_ context.Context, sources []datatypes.SourceRef) ([]datatypes.EvidenceSnippetRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := make(map[string]Document, len(m.docs))
	for _, doc := range m.docs {
		byID[doc.ID] = doc
	}

	var out []datatypes.EvidenceSnippetRef
	for _, src := range sources {
		doc, ok := byID[src.ID]
		if !ok {
			continue
		}
		snippets, err := ChunkDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, snippets...)
	}
	return out, nil
}
