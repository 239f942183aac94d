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
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/llm"
)

const outlinePrompt = `Plan a research report answering the question below.
Output one line per section in the form "<number>. <title> | <what evidence the section needs>".
Use at most %d sections.

Question: %s
Goal: %s
Search queries already planned:
%s`

// maxOutlineSections bounds the outline whichever path produced it.
const maxOutlineSections = 6

var outlineLinePattern = regexp.MustCompile(`^(\d+(?:\.\d+)*)[.)]?\s+(.+)$`)

// runOutliner plans the report sections.
//
// The LLM proposes numbered sections; unparseable or failed generations fall
// back to a deterministic outline derived from the generated queries, so the
// pipeline stays runnable without a working model.
func (p *Pipeline) runOutliner(ctx context.Context, state *datatypes.RunState) error {
	prompt := fmt.Sprintf(outlinePrompt, maxOutlineSections, state.Query, state.Goal,
		strings.Join(state.GeneratedQueries, "\n"))

	out, err := p.llm.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: llm.Float32(0.2),
		MaxTokens:   llm.Int(768),
	})
	if err != nil {
		p.logger.Warn("outline generation failed, using template outline",
			"run_id", state.RunID, "error", err)
		state.Outline = p.fallbackOutline(state)
		return nil
	}

	outline := parseOutline(out, state.Query)
	if len(outline) == 0 {
		state.Outline = p.fallbackOutline(state)
		return nil
	}
	state.Outline = outline
	return nil
}

// parseOutline reads "<number>. <title> | <description>" lines.
func parseOutline(text, query string) []datatypes.OutlineSection {
	var outline []datatypes.OutlineSection
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		m := outlineLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title, desc, _ := strings.Cut(m[2], "|")
		title = strings.TrimSpace(title)
		desc = strings.TrimSpace(desc)
		if title == "" {
			continue
		}
		outline = append(outline, datatypes.OutlineSection{
			SectionID:       m[1],
			Title:           title,
			Description:     desc,
			EvidenceQueries: []string{title + " " + query},
		})
		if len(outline) >= maxOutlineSections {
			break
		}
	}
	return outline
}

// fallbackOutline derives one section per generated query, capped.
func (p *Pipeline) fallbackOutline(state *datatypes.RunState) []datatypes.OutlineSection {
	queries := state.GeneratedQueries
	if len(queries) == 0 {
		queries = []string{state.Query}
	}
	if len(queries) > maxOutlineSections {
		queries = queries[:maxOutlineSections]
	}
	outline := make([]datatypes.OutlineSection, 0, len(queries))
	for i, q := range queries {
		outline = append(outline, datatypes.OutlineSection{
			SectionID:       strconv.Itoa(i + 1),
			Title:           titleCase(q),
			Description:     "Evidence review for: " + q,
			EvidenceQueries: []string{q},
		})
	}
	return outline
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
