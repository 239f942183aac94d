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
	"sort"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

// =============================================================================
// Vetting policy
// =============================================================================

// VettingPolicy holds the SourceVetter's scoring knobs.
//
// The score model is additive and capped at 1.0:
//
//	recency:   <=2y 0.4, <=5y 0.3, <=10y 0.2, older 0.1, unknown year 0
//	pdf url:   +0.2
//	authors:   +0.1 when at least one author is known
//	connector: +0.2 primary trusted, +0.1 secondary trusted
//	any url:   +0.1
type VettingPolicy struct {
	// KeepTop caps the vetted source list. Default 15.
	KeepTop int

	// MinScore is exclusive: sources scoring at or below it are dropped.
	// Default 0.3.
	MinScore float64

	// PrimaryConnector is the highest-trust connector name. Default "openalex".
	PrimaryConnector string

	// SecondaryConnectors are trusted but not primary. Default pubmed, arxiv.
	SecondaryConnectors []string
}

func (v VettingPolicy) withDefaults() VettingPolicy {
	if v.KeepTop == 0 {
		v.KeepTop = 15
	}
	if v.MinScore == 0 {
		v.MinScore = 0.3
	}
	if v.PrimaryConnector == "" {
		v.PrimaryConnector = "openalex"
	}
	if v.SecondaryConnectors == nil {
		v.SecondaryConnectors = []string{"pubmed", "arxiv"}
	}
	return v
}

// connectorTrust ranks a connector: 2 primary, 1 secondary, 0 untrusted.
func (v VettingPolicy) connectorTrust(connector string) int {
	if connector == v.PrimaryConnector {
		return 2
	}
	for _, c := range v.SecondaryConnectors {
		if connector == c {
			return 1
		}
	}
	return 0
}

// Score computes the quality score for one source, in [0,1].
// Deterministic given identical inputs and the current calendar year.
// Terms accumulate in integer tenths so a composite landing exactly on the
// MinScore boundary compares exactly, with no float drift.
func (v VettingPolicy) Score(src datatypes.SourceRef, nowYear int) float64 {
	tenths := 0
	if src.Year > 0 {
		switch age := nowYear - src.Year; {
		case age <= 2:
			tenths += 4
		case age <= 5:
			tenths += 3
		case age <= 10:
			tenths += 2
		default:
			tenths += 1
		}
	}
	if src.PDFURL != "" {
		tenths += 2
	}
	if len(src.Authors) >= 1 {
		tenths += 1
	}
	switch v.connectorTrust(src.Connector) {
	case 2:
		tenths += 2
	case 1:
		tenths += 1
	}
	if src.URL != "" || src.PDFURL != "" {
		tenths += 1
	}
	if tenths > 10 {
		tenths = 10
	}
	return float64(tenths) / 10
}

// =============================================================================
// Stage
// =============================================================================

// runSourceVetter scores and filters retrieved sources into VettedSources.
//
// Sorting is stable: equal scores preserve retrieval order. Sources scoring
// at or below MinScore are dropped, then the list is truncated to KeepTop.
// No side effects beyond the state mutation; deterministic given identical
// inputs.
func (p *Pipeline) runSourceVetter(_ context.Context, state *datatypes.RunState) error {
	nowYear := time.Now().UTC().Year()

	scored := make([]datatypes.SourceRef, 0, len(state.RetrievedSources))
	for _, src := range state.RetrievedSources {
		src.QualityScore = p.vetting.Score(src, nowYear)
		if src.QualityScore <= p.vetting.MinScore {
			continue
		}
		scored = append(scored, src)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].QualityScore > scored[j].QualityScore
	})

	if len(scored) > p.vetting.KeepTop {
		scored = scored[:p.vetting.KeepTop]
	}
	state.VettedSources = scored

	p.logger.Debug("source vetting complete",
		"run_id", state.RunID,
		"retrieved", len(state.RetrievedSources),
		"vetted", len(scored))
	return nil
}
