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
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
	"github.com/AleutianAI/AleutianResearch/services/research/llm"
)

// =============================================================================
// Query planning
// =============================================================================

const queryPlanPrompt = `Expand the research question below into at most %d short,
self-contained search queries, one per line, no numbering.

Research question: %s
Research goal: %s`

// planQueries derives search queries from the user query via the LLM,
// falling back to deterministic permutations of query, goal, and constraints
// when generation fails or yields nothing usable.
func (p *Pipeline) planQueries(ctx context.Context, state *datatypes.RunState) []string {
	prompt := fmt.Sprintf(queryPlanPrompt, datatypes.MaxGeneratedQueries, state.Query, state.Goal)
	out, err := p.llm.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: llm.Float32(0.2),
		MaxTokens:   llm.Int(512),
	})
	if err != nil {
		p.logger.Warn("query generation failed, using template queries",
			"run_id", state.RunID, "error", err)
		return p.fallbackQueries(state)
	}

	var queries []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" {
			continue
		}
		queries = append(queries, line)
	}
	if len(queries) == 0 {
		return p.fallbackQueries(state)
	}
	return queries
}

// fallbackQueries is the deterministic template planner.
func (p *Pipeline) fallbackQueries(state *datatypes.RunState) []string {
	queries := []string{state.Query}
	if state.Goal != "" {
		queries = append(queries, state.Query+" "+state.Goal)
	}
	queries = append(queries,
		state.Query+" evidence",
		state.Query+" systematic review",
	)
	for _, k := range sortedKeys(state.Constraints) {
		if v := state.Constraints[k]; v != "" {
			queries = append(queries, state.Query+" "+v)
		}
	}
	return queries
}

// =============================================================================
// Stage
// =============================================================================

// runRetriever populates RetrievedSources and EvidenceSnippets.
//
// # Description
//
// On the first visit it plans search queries (GeneratedQueries). Every visit
// asks the retrieval collaborator for sources and snippets. Duplicate
// sources (same canonical id, or same id) are merged keeping the copy from
// the higher-trust connector; ties keep the first seen. Evidence snippets
// are append-only: a snippet id never changes or disappears once recorded,
// because validated citations reference it.
//
// Collaborator failure is not retried here. It surfaces as an empty result
// plus a logged error, except when the run has no evidence at all yet, in
// which case it is a run-level failure.
func (p *Pipeline) runRetriever(ctx context.Context, state *datatypes.RunState) error {
	if len(state.GeneratedQueries) == 0 {
		state.AddGeneratedQueries(p.planQueries(ctx, state)...)
	}

	sources, err := p.searcher.Search(ctx, state.GeneratedQueries)
	if err != nil {
		if len(state.RetrievedSources) == 0 {
			return fmt.Errorf("%w: %v", ErrNoEvidence, err)
		}
		p.logger.Warn("retrieval failed, continuing with existing evidence",
			"run_id", state.RunID, "error", err)
		sources = nil
	}

	fresh := p.mergeSources(state, sources)

	if len(fresh) > 0 {
		snippets, err := p.searcher.Snippets(ctx, fresh)
		if err != nil {
			p.logger.Warn("snippet extraction failed",
				"run_id", state.RunID, "error", err)
		}
		known := state.SnippetIDSet()
		for _, sn := range snippets {
			if sn.ID == "" || known[sn.ID] {
				continue
			}
			state.EvidenceSnippets = append(state.EvidenceSnippets, sn)
			known[sn.ID] = true
		}
	}

	p.logger.Debug("retrieval complete",
		"run_id", state.RunID,
		"queries", len(state.GeneratedQueries),
		"sources", len(state.RetrievedSources),
		"snippets", len(state.EvidenceSnippets))
	return nil
}

// mergeSources folds newly retrieved sources into the state, deduplicating
// by canonical id (falling back to source id). Returns the sources that were
// actually added, so snippet extraction only runs for new material.
func (p *Pipeline) mergeSources(state *datatypes.RunState, incoming []datatypes.SourceRef) []datatypes.SourceRef {
	index := make(map[string]int, len(state.RetrievedSources))
	for i, src := range state.RetrievedSources {
		index[sourceKey(src)] = i
	}

	var fresh []datatypes.SourceRef
	for _, src := range incoming {
		key := sourceKey(src)
		if key == "" {
			continue
		}
		i, exists := index[key]
		if !exists {
			index[key] = len(state.RetrievedSources)
			state.RetrievedSources = append(state.RetrievedSources, src)
			fresh = append(fresh, src)
			continue
		}
		// Duplicate: keep the copy from the higher-trust connector,
		// first-seen wins a tie.
		if p.vetting.connectorTrust(src.Connector) > p.vetting.connectorTrust(state.RetrievedSources[i].Connector) {
			state.RetrievedSources[i] = src
		}
	}
	return fresh
}

func sourceKey(src datatypes.SourceRef) string {
	if src.CanonicalID != "" {
		return "c:" + src.CanonicalID
	}
	if src.ID != "" {
		return "i:" + src.ID
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
