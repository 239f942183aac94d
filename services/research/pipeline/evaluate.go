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

	"github.com/AleutianAI/AleutianResearch/services/research/datatypes"
)

const (
	// minSourcePool is the vetted-source count below which critical errors
	// route to retrieval instead of repair: thin evidence means the fix is
	// more sources, not more editing.
	minSourcePool = 10

	// warningTolerance is the unsupported-claim warning count above which a
	// clean-of-critical draft still goes back for repair.
	warningTolerance = 5
)

// Evaluate is the routing decision function, pure over the state.
//
// # Description
//
// Decisions are checked in strict priority order; the first rule that fires
// wins:
//
//  1. Iteration budget exhausted: stop with whatever exists (best-effort
//     exit, still a success).
//  2. Repair budget spent: stop unconditionally, any residual findings ship
//     in the report appendix. No route can raise RepairAttempts past the cap.
//  3. No critical errors and warnings within tolerance: stop clean.
//  4. Critical errors with a thin vetted-source pool: retrieve more.
//  5. Critical errors otherwise: repair.
//  6. Warnings above tolerance: repair.
//
// The returned reason is a human-readable audit string stored on the state
// and surfaced in the exported report.
func Evaluate(state *datatypes.RunState) (datatypes.Decision, string) {
	critical := state.CriticalErrorCount()
	warnings := state.WarningCount()

	if state.IterationCount >= state.MaxIterations {
		return datatypes.DecisionStopSuccess,
			fmt.Sprintf("iteration budget exhausted (%d/%d), exporting best effort with %d critical errors and %d warnings",
				state.IterationCount, state.MaxIterations, critical, warnings)
	}
	if state.RepairAttempts >= state.MaxRepairAttempts {
		return datatypes.DecisionStopSuccess,
			fmt.Sprintf("repair budget exhausted (%d/%d), exporting with %d residual critical errors and %d warnings",
				state.RepairAttempts, state.MaxRepairAttempts, critical, warnings)
	}
	if critical == 0 {
		if warnings > warningTolerance {
			return datatypes.DecisionContinueRepair,
				fmt.Sprintf("no critical errors but %d warnings exceed tolerance of %d", warnings, warningTolerance)
		}
		if warnings > 0 {
			return datatypes.DecisionStopSuccess,
				fmt.Sprintf("no critical errors, %d warnings within tolerance", warnings)
		}
		return datatypes.DecisionStopSuccess, "no validation findings"
	}
	if len(state.VettedSources) < minSourcePool {
		return datatypes.DecisionContinueRetrieve,
			fmt.Sprintf("%d critical errors with only %d vetted sources, widening the evidence pool",
				critical, len(state.VettedSources))
	}
	return datatypes.DecisionContinueRepair,
		fmt.Sprintf("%d critical errors with sufficient evidence, repairing the draft", critical)
}

// runEvaluator applies Evaluate and records the verdict. The driver loop has
// already incremented IterationCount for this visit.
func (p *Pipeline) runEvaluator(_ context.Context, state *datatypes.RunState) error {
	decision, reason := Evaluate(state)
	state.EvaluatorDecision = decision
	state.EvaluationReason = reason

	p.logger.Info("evaluation complete",
		"run_id", state.RunID,
		"iteration", state.IterationCount,
		"decision", string(decision),
		"reason", reason)
	return nil
}
