// internal/eligibility/score.go
package eligibility

import "math"

/*
 * Confidence scoring.
 *
 * Deterministic integer arithmetic, clamped to [0, 100]. The published
 * invariants:
 *
 *   - complete, clearly-qualifying input      => score >= 90
 *   - complete, clearly-disqualifying input   => score <= 10
 *   - missing required fields                 => score < 50 regardless of gate
 *
 * Boundary proximity pulls scores toward 50 from both sides: an applicant
 * one cent over the threshold should read as borderline, not as a confident
 * rejection. The adjustment window is 25% relative margin with a maximum
 * pull of 40 points, so clear cases keep the 95/5 extremes.
 */

const (
	scoreGatePassed = 95
	scoreGateFailed = 5

	// Required inputs missing: capped below 50 regardless of the gate.
	scoreIncompletePassed = 45
	scoreIncompleteFailed = 25

	boundaryWindow  = 0.25
	boundaryMaxPull = 40

	// Unresolved verification-dependent factors clamp into this band:
	// below the PossiblyEligible ceiling, above rock bottom.
	unresolvedFloor   = 20
	unresolvedCeiling = 45
)

// scoreInput carries everything scoring needs, precomputed by the engine.
type scoreInput struct {
	gatePassed      bool
	requiredMissing int     // referenced non-verification keys absent from snapshot
	unresolved      int     // referenced verification keys absent from input
	incomeGated     bool    // rule references an income/threshold key
	boundaryMargin  float64 // |annualIncome - threshold| / threshold
}

// confidenceScore computes the 0-100 confidence value.
func confidenceScore(in scoreInput) int {
	if in.requiredMissing > 0 {
		if in.gatePassed {
			return clampScore(scoreIncompletePassed)
		}
		return clampScore(scoreIncompleteFailed)
	}

	score := scoreGateFailed
	if in.gatePassed {
		score = scoreGatePassed
	}

	if in.incomeGated {
		pull := boundaryPull(in.boundaryMargin)
		if in.gatePassed {
			score -= pull
		} else {
			score += pull
		}
	}

	if in.unresolved > 0 {
		if score > unresolvedCeiling {
			score = unresolvedCeiling
		}
		if score < unresolvedFloor {
			score = unresolvedFloor
		}
	}

	return clampScore(score)
}

// boundaryPull maps a relative margin to the points pulled toward 50.
// Margin at or beyond the window pulls nothing; margin zero pulls the
// maximum.
func boundaryPull(margin float64) int {
	if margin < 0 {
		margin = 0
	}
	if margin >= boundaryWindow {
		return 0
	}
	return int(math.Round((boundaryWindow - margin) / boundaryWindow * boundaryMaxPull))
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
