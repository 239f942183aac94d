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
	"strings"

	"github.com/AleutianAI/AleutianResearch/services/research/claims"
	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/llm"
)

const draftPrompt = `Write a research report in markdown for the question below.
Use exactly these "## <number>. <title>" section headers:
%s

Rules:
  - Every factual statement must cite evidence with a [CITE:<snippet_id>]
    marker placed before the sentence's terminating period.
  - Only cite snippet ids from the evidence list. Never invent ids.
  - Plain declarative sentences, no bullet lists.

Question: %s
Goal: %s

Evidence snippets:
%s`

// snippetsPerSection bounds how much evidence the fallback writer cites in
// one section.
const snippetsPerSection = 3

// runWriter produces DraftText from the outline and evidence.
//
// # Description
//
// The draft is markdown with "## <number>. <title>" section headers and
// inline [CITE:<snippet_id>] markers. The LLM path prompts with the outline
// and the full snippet list; when generation fails or returns something with
// no recognizable section structure, a deterministic template writer builds
// the draft directly from the evidence, citing the best-matching snippets per
// section. Either path increments DraftVersion.
func (p *Pipeline) runWriter(ctx context.Context, state *datatypes.RunState) error {
	if len(state.Outline) == 0 {
		state.Outline = p.fallbackOutline(state)
	}

	draft, err := p.generateDraft(ctx, state)
	if err != nil || !strings.Contains(draft, "## ") {
		if err != nil {
			p.logger.Warn("draft generation failed, using template writer",
				"run_id", state.RunID, "error", err)
		}
		draft = p.templateDraft(state)
	}

	state.DraftText = draft
	state.DraftVersion++
	p.logger.Debug("draft written",
		"run_id", state.RunID,
		"draft_version", state.DraftVersion,
		"draft_bytes", len(draft))
	return nil
}

func (p *Pipeline) generateDraft(ctx context.Context, state *datatypes.RunState) (string, error) {
	var headers strings.Builder
	for _, sec := range state.Outline {
		fmt.Fprintf(&headers, "## %s. %s\n", sec.SectionID, sec.Title)
	}

	var evidence strings.Builder
	for _, sn := range state.EvidenceSnippets {
		fmt.Fprintf(&evidence, "[%s] %s\n", sn.ID, sn.Text)
	}

	prompt := fmt.Sprintf(draftPrompt, headers.String(), state.Query, state.Goal, evidence.String())
	return p.llm.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: llm.Float32(0.3),
		MaxTokens:   llm.Int(4096),
	})
}

// templateDraft is the deterministic fallback writer. Each outline section
// gets one topic sentence plus one cited sentence per matched snippet, ranked
// by keyword overlap with the section's evidence queries.
func (p *Pipeline) templateDraft(state *datatypes.RunState) string {
	var b strings.Builder
	for i, sec := range state.Outline {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s. %s\n\n", sec.SectionID, sec.Title)
		fmt.Fprintf(&b, "This section reviews the available evidence on %s.",
			strings.ToLower(sec.Title))

		for _, sn := range p.matchSnippets(sec, state.EvidenceSnippets, snippetsPerSection) {
			sentence := snippetSentence(sn)
			b.WriteString(" ")
			b.WriteString(claims.InsertCitation(sentence, sn.ID))
		}
	}
	return b.String()
}

// matchSnippets ranks snippets by keyword overlap with the section's evidence
// queries and returns the top n with a nonzero score. Ties keep evidence
// order, so the output is stable across visits.
func (p *Pipeline) matchSnippets(sec datatypes.OutlineSection, snippets []datatypes.EvidenceSnippetRef, n int) []datatypes.EvidenceSnippetRef {
	query := sec.Title + " " + strings.Join(sec.EvidenceQueries, " ")
	want := keywordSet(query)
	if len(want) == 0 {
		return nil
	}

	type scored struct {
		snippet datatypes.EvidenceSnippetRef
		score   int
	}
	var ranked []scored
	for _, sn := range snippets {
		score := 0
		for w := range keywordSet(sn.Text) {
			if want[w] {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{snippet: sn, score: score})
		}
	}

	// Insertion-stable selection of the n best.
	var out []datatypes.EvidenceSnippetRef
	used := make(map[int]bool, n)
	for len(out) < n {
		best, bestScore := -1, 0
		for i, r := range ranked {
			if !used[i] && r.score > bestScore {
				best, bestScore = i, r.score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		out = append(out, ranked[best].snippet)
	}
	return out
}

// snippetSentence turns a snippet excerpt into one declarative draft
// sentence, truncating long excerpts at a word boundary.
func snippetSentence(sn datatypes.EvidenceSnippetRef) string {
	text := strings.Join(strings.Fields(sn.Text), " ")
	const maxLen = 240
	if len(text) > maxLen {
		if cut := strings.LastIndex(text[:maxLen], " "); cut > 0 {
			text = text[:cut]
		} else {
			text = text[:maxLen]
		}
	}
	text = strings.TrimRight(text, ".,;: ")
	return "Reported findings indicate that " + lowerFirst(text) + "."
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
