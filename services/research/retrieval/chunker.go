// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval implements the evidence collaborators: corpus search and
// snippet extraction, backed by Weaviate in production and an in-memory
// index for tests and air-gapped runs.
package retrieval

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

var (
	CHUNK_SIZE        = 600
	CHUNK_OVERLAP     = int(float64(CHUNK_SIZE) * 0.10) // Chunk_overlap is 10% of the CHUNK_SIZE
	defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}
)

// Document is one corpus entry: source metadata plus the full text snippets
// are cut from.
type Document struct {
	ID          string   `json:"id"`
	CanonicalID string   `json:"canonical_id,omitempty"`
	Title       string   `json:"title"`
	Abstract    string   `json:"abstract,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Year        int      `json:"year,omitempty"`
	URL         string   `json:"url,omitempty"`
	PDFURL      string   `json:"pdf_url,omitempty"`
	Connector   string   `json:"connector"`
	FullText    string   `json:"full_text,omitempty"`
}

// SourceRef maps the document to the pipeline's source shape.
func (d Document) SourceRef() datatypes.SourceRef {
	return datatypes.SourceRef{
		ID:          d.ID,
		CanonicalID: d.CanonicalID,
		Title:       d.Title,
		Authors:     d.Authors,
		Year:        d.Year,
		URL:         d.URL,
		PDFURL:      d.PDFURL,
		Connector:   d.Connector,
	}
}

// body returns the text snippets are cut from: full text when present,
// otherwise the abstract.
func (d Document) body() string {
	if d.FullText != "" {
		return d.FullText
	}
	return d.Abstract
}

func newSnippetSplitter() textsplitter.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(CHUNK_SIZE),
		textsplitter.WithChunkOverlap(CHUNK_OVERLAP),
		textsplitter.WithSeparators(defaultSeparators),
	)
}

// ChunkDocument splits a document's body into evidence snippets with stable
// ids and character offsets.
//
// # Description
//
// Snippet ids are "<source_id>:s<n>" with n following chunk order, so a
// given document always yields the same ids and citations stay resolvable
// across retrieval revisits. Offsets are located by scanning forward from
// the previous chunk's start, which keeps them correct when chunks overlap.
func ChunkDocument(doc Document) ([]datatypes.EvidenceSnippetRef, error) {
	body := doc.body()
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	chunks, err := newSnippetSplitter().SplitText(body)
	if err != nil {
		return nil, fmt.Errorf("failed to split document %s: %w", doc.ID, err)
	}

	snippets := make([]datatypes.EvidenceSnippetRef, 0, len(chunks))
	searchFrom := 0
	for i, chunk := range chunks {
		start := strings.Index(body[searchFrom:], chunk)
		if start < 0 {
			// Splitter trimmed whitespace; fall back to a whole-body scan.
			start = strings.Index(body, chunk)
			if start < 0 {
				slog.Warn("Could not locate chunk in document body", "source", doc.ID, "chunk", i)
				continue
			}
		} else {
			start += searchFrom
		}
		snippets = append(snippets, datatypes.EvidenceSnippetRef{
			ID:        fmt.Sprintf("%s:s%d", doc.ID, i+1),
			SourceID:  doc.ID,
			Text:      chunk,
			CharStart: start,
			CharEnd:   start + len(chunk),
		})
		searchFrom = start + 1
	}
	return snippets, nil
}
